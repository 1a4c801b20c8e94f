// Package streamvenue ingests the perpetual venue's push-based OHLC
// minute candles (§6.2) over a websocket connection and polls its margin
// balance endpoint. Both are specified only at their interface per the
// Non-goal excluding venue adapter internals; this package owns the
// transport plumbing and the write path into the Price Store.
package streamvenue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/priceingest"
)

// Candle is one push-delivered 1m OHLC message.
type Candle struct {
	Token  string  `json:"token"`
	TS     int64   `json:"ts"` // unix seconds, start of minute
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Config configures the streaming ingester.
type Config struct {
	URL         string
	Table       string // "hyperliquid_price_data_ohlc" or "majors_price_data_ohlc"
	DialTimeout time.Duration
}

// Ingester maintains a long-lived websocket connection and writes each
// candle it receives into the Price Store.
type Ingester struct {
	cfg    Config
	prices *priceingest.Store
	log    zerolog.Logger

	lastMessage time.Time
}

// New builds an Ingester.
func New(cfg Config, prices *priceingest.Store, log zerolog.Logger) *Ingester {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Ingester{cfg: cfg, prices: prices, log: log.With().Str("component", "streamvenue").Logger()}
}

// Run connects and processes candles until ctx is cancelled, reconnecting
// on transient disconnects. It's intended to run in its own goroutine for
// the process lifetime, independent of the cron-scheduled cycles.
func (i *Ingester) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := i.connectAndConsume(ctx); err != nil {
			i.log.Warn().Err(err).Msg("stream connection lost, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (i *Ingester) connectAndConsume(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, i.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, i.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial stream venue: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var candle Candle
		err := wsjson.Read(ctx, conn, &candle)
		if err != nil {
			return fmt.Errorf("read candle: %w", err)
		}
		i.lastMessage = time.Now()

		bar := priceingest.Bar{
			TokenContract: candle.Token,
			Timeframe:     "1m",
			BarStart:      time.Unix(candle.TS, 0).UTC(),
			Open:          candle.Open,
			High:          candle.High,
			Low:           candle.Low,
			Close:         candle.Close,
			Volume:        candle.Volume,
		}
		if err := i.prices.PutStreamCandle(i.cfg.Table, bar); err != nil {
			i.log.Warn().Err(err).Str("token", candle.Token).Msg("failed to persist stream candle")
		}
	}
}

// Status reports liveness for the heartbeat contract: "ok" if a message
// arrived in the last 2 minutes, "stale" within 10 minutes, else "dead".
func (i *Ingester) Status() string {
	switch {
	case i.lastMessage.IsZero():
		return "dead"
	case time.Since(i.lastMessage) < 2*time.Minute:
		return "ok"
	case time.Since(i.lastMessage) < 10*time.Minute:
		return "stale"
	default:
		return "dead"
	}
}

// MarginClient polls the perpetual venue's margin balance endpoint
// (§6.2: "Margin balance is polled via the venue SDK"), satisfying
// wallet.MarginClient.
type MarginClient struct {
	URL        string
	HTTPGetter func(ctx context.Context, url string) ([]byte, error)
}

// MarginBalanceUSD implements wallet.MarginClient.
func (m MarginClient) MarginBalanceUSD(ctx context.Context) (float64, error) {
	body, err := m.HTTPGetter(ctx, m.URL)
	if err != nil {
		return 0, fmt.Errorf("fetch margin balance: %w", err)
	}
	var resp struct {
		MarginBalanceUSD float64 `json:"margin_balance_usd"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode margin balance: %w", err)
	}
	return resp.MarginBalanceUSD, nil
}
