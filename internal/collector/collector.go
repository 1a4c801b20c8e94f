// Package collector implements the Tiered Collector (§4.3): keeps price
// data fresh for the full tracked-token set under a fixed upstream call
// budget, by scheduling a modular-hash-fair subset each wall-clock cycle.
package collector

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/position"
	"github.com/aristath/sentinel/internal/priceingest"
	"github.com/aristath/sentinel/internal/ratelimit"
)

// postCycleStep runs once after every collection cycle (reconciliation,
// wallet refresh), isolated so that a failure in one never blocks the
// other (§4.3 step 5, §1.3 error-handling idiom).
type postCycleStep interface {
	Run() error
	Name() string
}

// Config configures a Collector instance.
type Config struct {
	Budget            int           // B, calls/minute
	ConcurrencyCap    int           // C
	PriorityTimeframe string        // always-collect timeframe, default "1m"
	RequestTimeout    time.Duration // per-request timeout, default 10s
	// StreamingChains lists chains ingested via the push channel (§6.2);
	// the collector skips tokens on these chains (§4.3 step 1).
	StreamingChains map[string]bool
}

// Collector runs one tiered collection cycle per invocation.
type Collector struct {
	cfg        Config
	positions  *position.Store
	prices     *priceingest.Store
	bucket     *ratelimit.Bucket
	api        PriceAPI
	log        zerolog.Logger
	cycle      uint64
	postCycle  []postCycleStep
	lastHeartbeat time.Time
	errorsSinceHeartbeat int64
	mu         sync.Mutex
}

// New builds a Collector.
func New(cfg Config, positions *position.Store, prices *priceingest.Store, bucket *ratelimit.Bucket, api PriceAPI, log zerolog.Logger, postCycle ...postCycleStep) *Collector {
	if cfg.PriorityTimeframe == "" {
		cfg.PriorityTimeframe = "1m"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Collector{
		cfg:       cfg,
		positions: positions,
		prices:    prices,
		bucket:    bucket,
		api:       api,
		log:       log.With().Str("component", "collector").Logger(),
		postCycle: postCycle,
	}
}

// Name satisfies scheduler.Job.
func (c *Collector) Name() string { return "tiered_collector" }

// Run executes one collection cycle.
func (c *Collector) Run() error {
	start := time.Now()
	cycle := atomic.AddUint64(&c.cycle, 1)

	tracked, err := c.positions.TrackedTokens()
	if err != nil {
		return err
	}
	priority, err := c.positions.PrioritySet(c.cfg.PriorityTimeframe)
	if err != nil {
		return err
	}

	n := len(tracked)
	interval := Interval(n, c.cfg.Budget)
	threshold := CoverageThreshold(interval)
	scheduled, prioritySubsetCount := Scheduled(tracked, priority, cycle, interval)

	var successCount, errorCount int64
	ctx, cancel := context.WithTimeout(context.Background(), cycleDeadline(interval))
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxInt(1, c.cfg.ConcurrencyCap))

	for _, t := range scheduled {
		t := t
		if c.cfg.StreamingChains[strings.ToLower(t.Chain)] {
			continue // ingested via the streaming push channel (§6.3)
		}

		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.bucket.Wait(gctx); err != nil {
				return nil // cycle context expired; not a per-token failure
			}

			reqCtx, reqCancel := context.WithTimeout(gctx, c.cfg.RequestTimeout)
			defer reqCancel()

			if err := c.collectOne(reqCtx, t); err != nil {
				atomic.AddInt64(&errorCount, 1)
				c.log.Warn().Err(err).Str("token", t.TokenContract).Str("chain", t.Chain).Msg("collection failed")
				return nil // per-token errors never abort the cycle (§7)
			}
			atomic.AddInt64(&successCount, 1)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	cycleLog := c.log.With().
		Uint64("cycle", cycle).
		Int("scheduled", len(scheduled)).
		Int("priority_subset", prioritySubsetCount).
		Int64("success", successCount).
		Int64("errors", errorCount).
		Int("interval", interval).
		Float64("coverage_threshold", threshold).
		Dur("elapsed", elapsed).
		Logger()

	if len(scheduled) > 0 && float64(successCount)/float64(len(scheduled)) < threshold {
		cycleLog.Warn().Msg("cycle below coverage threshold")
	} else {
		cycleLog.Info().Msg("cycle completed")
	}

	c.maybeHeartbeat(cycleLog, errorCount)

	for _, step := range c.postCycle {
		if err := step.Run(); err != nil {
			c.log.Error().Err(err).Str("step", step.Name()).Msg("post-cycle step failed")
		}
	}

	return nil
}

func (c *Collector) collectOne(ctx context.Context, t position.TrackedToken) error {
	pairs, err := c.api.FetchPairs(ctx, t.TokenContract, t.Chain)
	if err != nil {
		return err // includes ErrRateLimited, counted as a failure, no retry this cycle
	}

	best, ok := SelectBestPair(t.Chain, t.TokenContract, pairs)
	if !ok {
		return errNoCandidatePairs{token: t.TokenContract, chain: t.Chain}
	}

	row := ExtractPriceRow(t.Chain, t.TokenContract, best, func() (priceingest.Row, bool) {
		prev, found, _ := c.prices.Latest(t.TokenContract, t.Chain)
		return prev, found
	})

	return c.prices.PutMinute(row)
}

// maybeHeartbeat fires roughly every 5 minutes with the current cycle's
// fields and the error count accumulated since the last heartbeat (§4.3
// observability contract, supplemented per original_source's
// _log_heartbeat). It does not report how recently prices were written.
func (c *Collector) maybeHeartbeat(cycleLog zerolog.Logger, cycleErrors int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsSinceHeartbeat += cycleErrors
	if time.Since(c.lastHeartbeat) < 5*time.Minute {
		return
	}
	c.lastHeartbeat = time.Now()
	cycleLog.Info().
		Int64("errors_since_last_heartbeat", c.errorsSinceHeartbeat).
		Msg("heartbeat")
	c.errorsSinceHeartbeat = 0
}

func cycleDeadline(interval int) time.Duration {
	d := time.Duration(interval)*time.Minute - 5*time.Second
	if d < 10*time.Second {
		return 10 * time.Second
	}
	return d
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type errNoCandidatePairs struct {
	token, chain string
}

func (e errNoCandidatePairs) Error() string {
	return "no candidate pairs for " + e.token + " on " + e.chain
}
