// Package health folds process resource stats and per-pipeline freshness
// signals into the platform's heartbeat/health-check contract (§4.3).
package health

import (
	"sync/atomic"
	"time"
)

// StreamStatus classifies the streaming venue ingest's liveness.
type StreamStatus string

const (
	StreamOK    StreamStatus = "ok"
	StreamStale StreamStatus = "stale"
	StreamDead  StreamStatus = "dead"
)

// Config tunes the freshness thresholds a Monitor derives status from.
type Config struct {
	LowcapFreshWindow  time.Duration // max age of a lowcap price write before considered stale
	StreamStaleWindow  time.Duration // age at which the stream is "stale" rather than "ok"
	StreamDeadWindow    time.Duration // age at which the stream is "dead" rather than "stale"
}

// DefaultConfig returns §6.6's heartbeat-interval-adjacent defaults.
func DefaultConfig() Config {
	return Config{
		LowcapFreshWindow: 5 * time.Minute,
		StreamStaleWindow: 2 * time.Minute,
		StreamDeadWindow:  10 * time.Minute,
	}
}

// Monitor accumulates freshness and error signals other components push
// into it, and renders a Heartbeat snapshot on demand. Safe for concurrent
// use: every field is accessed through atomics.
type Monitor struct {
	cfg Config

	lastLowcapWriteUnix  int64 // unix nanos, 0 = never
	lastStreamMessageUnix int64
	errorsSinceLast      int64
}

// NewMonitor builds a Monitor, defaulting a zero-value Config.
func NewMonitor(cfg Config) *Monitor {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Monitor{cfg: cfg}
}

// RecordLowcapWrite marks a successful lowcap price write just occurred.
func (m *Monitor) RecordLowcapWrite() {
	atomic.StoreInt64(&m.lastLowcapWriteUnix, time.Now().UTC().UnixNano())
}

// RecordStreamMessage marks a streaming venue candle just arrived.
func (m *Monitor) RecordStreamMessage() {
	atomic.StoreInt64(&m.lastStreamMessageUnix, time.Now().UTC().UnixNano())
}

// RecordError increments the error counter, reset on the next Snapshot.
func (m *Monitor) RecordError() {
	atomic.AddInt64(&m.errorsSinceLast, 1)
}

// Heartbeat is the observability contract's per-cycle health summary.
type Heartbeat struct {
	Timestamp       time.Time    `json:"timestamp"`
	LowcapFresh     bool         `json:"lowcap_fresh"`
	StreamStatus    StreamStatus `json:"stream_status"`
	ErrorsSinceLast int64        `json:"errors_since_last"`
	Resources       Resources    `json:"resources"`
}

// Snapshot renders the current Heartbeat and resets the error counter, so
// each snapshot reports only errors since the prior one.
func (m *Monitor) Snapshot() Heartbeat {
	now := time.Now().UTC()

	lowcapFresh := false
	if last := atomic.LoadInt64(&m.lastLowcapWriteUnix); last != 0 {
		lowcapFresh = now.Sub(time.Unix(0, last)) <= m.cfg.LowcapFreshWindow
	}

	streamStatus := StreamDead
	if last := atomic.LoadInt64(&m.lastStreamMessageUnix); last != 0 {
		age := now.Sub(time.Unix(0, last))
		switch {
		case age <= m.cfg.StreamStaleWindow:
			streamStatus = StreamOK
		case age <= m.cfg.StreamDeadWindow:
			streamStatus = StreamStale
		}
	}

	errs := atomic.SwapInt64(&m.errorsSinceLast, 0)

	resources, _ := CollectResources()

	return Heartbeat{
		Timestamp:       now,
		LowcapFresh:     lowcapFresh,
		StreamStatus:    streamStatus,
		ErrorsSinceLast: errs,
		Resources:       resources,
	}
}
