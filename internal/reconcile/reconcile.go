// Package reconcile implements the Reconciliation Engine (§4.4): after
// each collection cycle, recomputes per-position quantity, value, and
// cumulative P&L from the Price Store.
package reconcile

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/position"
	"github.com/aristath/sentinel/internal/priceingest"
	"github.com/aristath/sentinel/internal/strand"
)

const quantityTolerance = 1e-4

// StreamPriceSource resolves the current price for a streaming-venue
// chain (§4.4 step 1's "read from its price table using its most recent
// 1m close rule").
type StreamPriceSource interface {
	LatestStreamClose(table, token string) (float64, bool, error)
}

// Reconciler walks active positions once per collection cycle.
type Reconciler struct {
	positions    *position.Store
	prices       *priceingest.Store
	strands      *strand.Store
	streamTable  string // e.g. "hyperliquid_price_data_ohlc"
	streamChains map[string]bool
	log          zerolog.Logger
}

// New builds a Reconciler.
func New(positions *position.Store, prices *priceingest.Store, strands *strand.Store, streamTable string, streamChains map[string]bool, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		positions:    positions,
		prices:       prices,
		strands:      strands,
		streamTable:  streamTable,
		streamChains: streamChains,
		log:          log.With().Str("component", "reconciler").Logger(),
	}
}

// Name satisfies the collector's post-cycle step contract.
func (r *Reconciler) Name() string { return "reconciliation_engine" }

// Run reconciles every active position, isolating per-position errors.
func (r *Reconciler) Run() error {
	positions, err := r.positions.ActivePositions()
	if err != nil {
		return err
	}

	for _, p := range positions {
		if err := r.reconcileOne(p); err != nil {
			r.log.Warn().Err(err).Str("position", p.ID).Msg("reconciliation failed")
		}
	}
	return nil
}

func (r *Reconciler) reconcileOne(p position.Position) error {
	currentPrice, found, err := r.currentPrice(p)
	if err != nil {
		return err
	}
	if !found {
		r.log.Warn().Str("position", p.ID).Msg("no latest price; skipping reconciliation")
		return nil
	}

	expectedQuantity := p.TotalTokensBought - p.TotalTokensSold
	quantity := p.TotalQuantity
	if math.Abs(quantity-expectedQuantity) > quantityTolerance {
		if r.strands != nil {
			_, _ = r.strands.Append(strand.Strand{
				Kind:     strand.KindReconciliationNote,
				SourceID: "reconciliation_engine",
				Symbol:   p.TokenContract,
				ModuleIntelligence: map[string]interface{}{
					"position_id":       p.ID,
					"stored_quantity":   p.TotalQuantity,
					"expected_quantity": expectedQuantity,
				},
			})
		}
		quantity = expectedQuantity
	}

	currentValue := quantity * currentPrice
	pnlUSD := (p.TotalExtractedUSD + currentValue) - p.TotalAllocationUSD
	pnlPct := 0.0
	if p.TotalAllocationUSD > 0 {
		pnlPct = pnlUSD / p.TotalAllocationUSD * 100
	}

	return r.positions.UpdateReconciliation(p.ID, quantity, currentValue, pnlUSD, pnlPct)
}

func (r *Reconciler) currentPrice(p position.Position) (float64, bool, error) {
	if r.streamChains[p.TokenChain] {
		return r.prices.LatestStreamClose(r.streamTable, p.TokenContract)
	}
	row, found, err := r.prices.Latest(p.TokenContract, p.TokenChain)
	if err != nil || !found {
		return 0, false, err
	}
	return row.PriceUSD, true, nil
}
