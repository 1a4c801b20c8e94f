package priceingest

import (
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/database"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS lowcap_price_data_1m (
	token_contract TEXT NOT NULL,
	chain          TEXT NOT NULL,
	ts             TEXT NOT NULL,
	price_usd      REAL NOT NULL,
	price_native   REAL NOT NULL,
	quote_token    TEXT NOT NULL DEFAULT '',
	liquidity_usd  REAL NOT NULL DEFAULT 0,
	liquidity_change_1m REAL NOT NULL DEFAULT 0,
	volume_1m      REAL NOT NULL DEFAULT 0,
	volume_5m      REAL NOT NULL DEFAULT 0,
	volume_1h      REAL NOT NULL DEFAULT 0,
	volume_6h      REAL NOT NULL DEFAULT 0,
	volume_24h     REAL NOT NULL DEFAULT 0,
	price_change_24h REAL NOT NULL DEFAULT 0,
	market_cap     REAL NOT NULL DEFAULT 0,
	fdv            REAL NOT NULL DEFAULT 0,
	dex_id         TEXT NOT NULL DEFAULT '',
	pair_address   TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (token_contract, chain, ts)
);
CREATE INDEX IF NOT EXISTS idx_price1m_latest ON lowcap_price_data_1m(token_contract, chain, ts DESC);

CREATE TABLE IF NOT EXISTS hyperliquid_price_data_ohlc (
	token     TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	ts        TEXT NOT NULL,
	open      REAL NOT NULL,
	high      REAL NOT NULL,
	low       REAL NOT NULL,
	close     REAL NOT NULL,
	volume    REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (token, timeframe, ts)
);

CREATE TABLE IF NOT EXISTS majors_price_data_ohlc (
	token     TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	ts        TEXT NOT NULL,
	open      REAL NOT NULL,
	high      REAL NOT NULL,
	low       REAL NOT NULL,
	close     REAL NOT NULL,
	volume    REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (token, timeframe, ts)
);
`

// Store owns the 1-minute price table and the two streaming-venue OHLC
// tables. Rollups for the DEX-listed venue family are computed on demand
// from lowcap_price_data_1m rather than materialized (§4.2).
type Store struct {
	db *database.DB
}

// New opens the price store at path.
func New(path string) (*Store, error) {
	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "priceingest"})
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

// PutMinute is idempotent on (token_contract, chain, minute): a second
// write for the same key replaces the row (§4.2, later-appended wins).
func (s *Store) PutMinute(row Row) error {
	minute := row.Timestamp.UTC().Truncate(time.Minute)
	_, err := s.db.Exec(`
		INSERT INTO lowcap_price_data_1m (
			token_contract, chain, ts, price_usd, price_native, quote_token,
			liquidity_usd, liquidity_change_1m, volume_1m, volume_5m, volume_1h,
			volume_6h, volume_24h, price_change_24h, market_cap, fdv, dex_id,
			pair_address, source
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(token_contract, chain, ts) DO UPDATE SET
			price_usd = excluded.price_usd,
			price_native = excluded.price_native,
			quote_token = excluded.quote_token,
			liquidity_usd = excluded.liquidity_usd,
			liquidity_change_1m = excluded.liquidity_change_1m,
			volume_1m = excluded.volume_1m,
			volume_5m = excluded.volume_5m,
			volume_1h = excluded.volume_1h,
			volume_6h = excluded.volume_6h,
			volume_24h = excluded.volume_24h,
			price_change_24h = excluded.price_change_24h,
			market_cap = excluded.market_cap,
			fdv = excluded.fdv,
			dex_id = excluded.dex_id,
			pair_address = excluded.pair_address,
			source = excluded.source`,
		row.TokenContract, row.Chain, minute.Format(time.RFC3339), row.PriceUSD, row.PriceNative, row.QuoteToken,
		row.LiquidityUSD, row.LiquidityChange1m, row.Volume1m, row.Volume5m, row.Volume1h,
		row.Volume6h, row.Volume24h, row.PriceChange24h, row.MarketCap, row.FDV, row.DexID,
		row.PairAddress, row.Source,
	)
	if err != nil {
		return fmt.Errorf("put minute row: %w", err)
	}
	return nil
}

// Latest returns the most recent 1-minute row for (token, chain).
func (s *Store) Latest(tokenContract, chain string) (Row, bool, error) {
	row := s.db.QueryRow(`
		SELECT token_contract, chain, ts, price_usd, price_native, quote_token,
			liquidity_usd, liquidity_change_1m, volume_1m, volume_5m, volume_1h,
			volume_6h, volume_24h, price_change_24h, market_cap, fdv, dex_id, pair_address, source
		FROM lowcap_price_data_1m WHERE token_contract = ? AND chain = ?
		ORDER BY ts DESC LIMIT 1`, tokenContract, chain)

	var r Row
	var ts string
	err := row.Scan(&r.TokenContract, &r.Chain, &ts, &r.PriceUSD, &r.PriceNative, &r.QuoteToken,
		&r.LiquidityUSD, &r.LiquidityChange1m, &r.Volume1m, &r.Volume5m, &r.Volume1h,
		&r.Volume6h, &r.Volume24h, &r.PriceChange24h, &r.MarketCap, &r.FDV, &r.DexID, &r.PairAddress, &r.Source)
	if err != nil {
		return Row{}, false, nil
	}
	r.Timestamp, _ = time.Parse(time.RFC3339, ts)
	return r, true, nil
}

// RollupBar computes an OHLC bar for the DEX-listed venue family from
// 1-minute rows in [barStart, barStart+timeframe). Volume uses the
// venue-native attribution rule: the sum of each minute's volume_1m.
func (s *Store) RollupBar(tokenContract, chain, timeframe string, barStart time.Time) (Bar, bool, error) {
	window, ok := Timeframes[timeframe]
	if !ok {
		return Bar{}, false, fmt.Errorf("unknown timeframe %q", timeframe)
	}
	barEnd := barStart.Add(window)

	rows, err := s.db.Query(`
		SELECT ts, price_usd, volume_1m FROM lowcap_price_data_1m
		WHERE token_contract = ? AND chain = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC`,
		tokenContract, chain, barStart.UTC().Format(time.RFC3339), barEnd.UTC().Format(time.RFC3339))
	if err != nil {
		return Bar{}, false, fmt.Errorf("rollup query: %w", err)
	}
	defer rows.Close()

	var bar Bar
	bar.TokenContract = tokenContract
	bar.Chain = chain
	bar.Timeframe = timeframe
	bar.BarStart = barStart

	first := true
	for rows.Next() {
		var ts string
		var price, vol float64
		if err := rows.Scan(&ts, &price, &vol); err != nil {
			return Bar{}, false, err
		}
		if first {
			bar.Open = price
			bar.High = price
			bar.Low = price
			first = false
		}
		if price > bar.High {
			bar.High = price
		}
		if price < bar.Low {
			bar.Low = price
		}
		bar.Close = price
		bar.Volume += vol
	}
	if first {
		return Bar{}, false, nil // no rows in window
	}
	return bar, true, rows.Err()
}

// PutStreamCandle upserts a push-delivered OHLC candle from the perpetual
// venue or the majors feed (§6.2) into the named table.
func (s *Store) PutStreamCandle(table string, bar Bar) error {
	if table != "hyperliquid_price_data_ohlc" && table != "majors_price_data_ohlc" {
		return fmt.Errorf("unknown stream table %q", table)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (token, timeframe, ts, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(token, timeframe, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`, table)
	_, err := s.db.Exec(query, bar.TokenContract, bar.Timeframe, bar.BarStart.UTC().Format(time.RFC3339),
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	if err != nil {
		return fmt.Errorf("put stream candle: %w", err)
	}
	return nil
}

// LatestStreamClose returns the close of the most recent 1m candle for
// token in the named streaming table — the §4.4 "current price" rule for
// streaming-venue chains.
func (s *Store) LatestStreamClose(table, token string) (float64, bool, error) {
	if table != "hyperliquid_price_data_ohlc" && table != "majors_price_data_ohlc" {
		return 0, false, fmt.Errorf("unknown stream table %q", table)
	}
	query := fmt.Sprintf(`SELECT close FROM %s WHERE token = ? AND timeframe = '1m' ORDER BY ts DESC LIMIT 1`, table)
	var close float64
	if err := s.db.QueryRow(query, token).Scan(&close); err != nil {
		return 0, false, nil
	}
	return close, true, nil
}
