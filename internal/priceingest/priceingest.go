// Package priceingest is the Price Store: per-minute rows for tracked
// tokens, OHLC rollups derived from them on demand, and the separate
// table namespace used by the streaming perpetual venue (§6.5).
package priceingest

import "time"

// Row is a single per-token per-minute price observation (§3.2).
type Row struct {
	TokenContract     string
	Chain             string
	Timestamp         time.Time // truncated to the minute
	PriceUSD          float64
	PriceNative       float64
	QuoteToken        string
	LiquidityUSD      float64
	LiquidityChange1m float64
	Volume1m          float64
	Volume5m          float64
	Volume1h          float64
	Volume6h          float64
	Volume24h         float64
	PriceChange24h    float64
	MarketCap         float64
	FDV               float64
	DexID             string
	PairAddress       string
	Source            string
}

// Bar is an OHLC rollup over a timeframe window (§4.2).
type Bar struct {
	TokenContract string
	Chain         string
	Timeframe     string
	BarStart      time.Time
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
}

// Timeframes are the rollup windows this store derives from 1-minute rows.
var Timeframes = map[string]time.Duration{
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}
