// Package wallet implements the Wallet/Margin Refresher (§4.5): after
// each collection cycle, upserts balance rows for the home chain and the
// perpetual venue's margin account.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
)

// Balance is one chain's balance snapshot (§3.4).
type Balance struct {
	Chain         string
	WalletAddress string
	NativeBalance float64
	USDCBalance   float64
	BalanceUSD    float64
	LastUpdated   time.Time
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS wallet_balances (
	chain          TEXT PRIMARY KEY,
	wallet_address TEXT NOT NULL DEFAULT '',
	balance        REAL NOT NULL DEFAULT 0,
	usdc_balance   REAL NOT NULL DEFAULT 0,
	balance_usd    REAL NOT NULL DEFAULT 0,
	last_updated   TEXT NOT NULL
);
`

// Store persists wallet_balances, one row per chain, upserted (§4.5).
type Store struct {
	db *database.DB
}

// New opens the wallet balance store at path.
func New(path string) (*Store, error) {
	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "wallet"})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(schemaSQL); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying database, for integrity checks and backups.
func (s *Store) DB() *database.DB { return s.db }

// Upsert writes a single balance row, single-writer-per-chain (§5).
func (s *Store) Upsert(b Balance) error {
	_, err := s.db.Exec(`
		INSERT INTO wallet_balances (chain, wallet_address, balance, usdc_balance, balance_usd, last_updated)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(chain) DO UPDATE SET
			wallet_address = excluded.wallet_address,
			balance = excluded.balance,
			usdc_balance = excluded.usdc_balance,
			balance_usd = excluded.balance_usd,
			last_updated = excluded.last_updated`,
		b.Chain, b.WalletAddress, b.NativeBalance, b.USDCBalance, b.BalanceUSD,
		b.LastUpdated.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert wallet balance: %w", err)
	}
	return nil
}

// Get returns the balance row for chain.
func (s *Store) Get(chain string) (Balance, bool, error) {
	row := s.db.QueryRow(`
		SELECT chain, wallet_address, balance, usdc_balance, balance_usd, last_updated
		FROM wallet_balances WHERE chain = ?`, chain)
	var b Balance
	var lastUpdated string
	if err := row.Scan(&b.Chain, &b.WalletAddress, &b.NativeBalance, &b.USDCBalance, &b.BalanceUSD, &lastUpdated); err != nil {
		return Balance{}, false, nil
	}
	b.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return b, true, nil
}

// ChainRPC is the §6.3 wallet/chain RPC contract: get_balance(chain,
// token_address_or_none). nil tokenAddress returns the native balance.
type ChainRPC interface {
	GetBalance(ctx context.Context, chain string, tokenAddress *string) (float64, error)
}

// MarginClient is the perpetual venue's pull-based margin balance query
// (§6.2: "Margin balance is polled via the venue SDK; returned as a USD
// scalar").
type MarginClient interface {
	MarginBalanceUSD(ctx context.Context) (float64, error)
}

// Config configures the Refresher.
type Config struct {
	HomeChain        string
	HomeChainUSDCMint string
	WalletAddress    string
	PerpVenueEnabled bool
}

// Refresher is the §4.5 post-cycle wallet/margin balance job.
type Refresher struct {
	cfg    Config
	rpc    ChainRPC
	margin MarginClient
	store  *Store
	log    zerolog.Logger
}

// NewRefresher builds a Refresher. margin may be nil when PerpVenueEnabled is false.
func NewRefresher(cfg Config, rpc ChainRPC, margin MarginClient, store *Store, log zerolog.Logger) *Refresher {
	return &Refresher{cfg: cfg, rpc: rpc, margin: margin, store: store, log: log.With().Str("component", "wallet_refresher").Logger()}
}

// Name satisfies the collector's post-cycle step contract.
func (r *Refresher) Name() string { return "wallet_refresher" }

// Run refreshes the home chain balance and, if enabled, the perp venue
// margin balance (§4.5).
func (r *Refresher) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.refreshHomeChain(ctx); err != nil {
		r.log.Warn().Err(err).Msg("home chain balance refresh failed")
	}

	if r.cfg.PerpVenueEnabled && r.margin != nil {
		if err := r.refreshMargin(ctx); err != nil {
			r.log.Warn().Err(err).Msg("perp venue margin refresh failed")
		}
	}

	return nil
}

func (r *Refresher) refreshHomeChain(ctx context.Context) error {
	native, err := r.rpc.GetBalance(ctx, r.cfg.HomeChain, nil)
	if err != nil {
		return fmt.Errorf("native balance: %w", err)
	}
	usdc, err := r.rpc.GetBalance(ctx, r.cfg.HomeChain, &r.cfg.HomeChainUSDCMint)
	if err != nil {
		return fmt.Errorf("usdc balance: %w", err)
	}
	return r.store.Upsert(Balance{
		Chain:         r.cfg.HomeChain,
		WalletAddress: r.cfg.WalletAddress,
		NativeBalance: native,
		USDCBalance:   usdc,
		BalanceUSD:    usdc, // trading capital is the USDC balance (§4.5)
		LastUpdated:   time.Now().UTC(),
	})
}

func (r *Refresher) refreshMargin(ctx context.Context) error {
	balance, err := r.margin.MarginBalanceUSD(ctx)
	if err != nil {
		return fmt.Errorf("margin balance: %w", err)
	}
	return r.store.Upsert(Balance{
		Chain:       "perp_venue",
		USDCBalance: balance,
		BalanceUSD:  balance,
		LastUpdated: time.Now().UTC(),
	})
}
