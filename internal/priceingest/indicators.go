package priceingest

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
)

// indicatorLookback is the number of trailing bars fed to the RSI/ATR
// calculation — enough for both 14-period indicators to settle past
// talib's unstable warm-up region.
const indicatorLookback = 30

// Indicators is the auxiliary technical-indicator pair attached to a
// rollup bar on request, derived from the trailing bar history rather
// than stored per-row.
type Indicators struct {
	RSI14 float64
	ATR14 float64
}

// RecentBars computes count consecutive RollupBar windows ending at (and
// including) the window covering end, oldest first. Windows with no
// underlying 1-minute rows are omitted, so the result may be shorter
// than count.
func (s *Store) RecentBars(tokenContract, chain, timeframe string, end time.Time, count int) ([]Bar, error) {
	window, ok := Timeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("unknown timeframe %q", timeframe)
	}
	alignedEnd := end.Truncate(window)

	bars := make([]Bar, 0, count)
	for i := count - 1; i >= 0; i-- {
		barStart := alignedEnd.Add(-time.Duration(i) * window)
		bar, ok, err := s.RollupBar(tokenContract, chain, timeframe, barStart)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// IndicatorsAt derives RSI(14)/ATR(14) from the indicatorLookback bars
// ending at at. ok is false when there isn't enough bar history yet.
func (s *Store) IndicatorsAt(tokenContract, chain, timeframe string, at time.Time) (Indicators, bool, error) {
	bars, err := s.RecentBars(tokenContract, chain, timeframe, at, indicatorLookback)
	if err != nil {
		return Indicators{}, false, err
	}
	if len(bars) < 15 {
		return Indicators{}, false, nil
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	rsi := talib.Rsi(closes, 14)
	atr := talib.Atr(highs, lows, closes, 14)

	return Indicators{
		RSI14: rsi[len(rsi)-1],
		ATR14: atr[len(atr)-1],
	}, true, nil
}
