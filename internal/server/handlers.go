package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/doctrine"
	"github.com/aristath/sentinel/internal/health"
	"github.com/aristath/sentinel/internal/strand"
)

const defaultStrandScanLimit = 100
const maxStrandScanLimit = 1000

type inspectionHandlers struct {
	strands  *strand.Store
	doctrine *doctrine.Store
	monitor  *health.Monitor
	log      zerolog.Logger
}

func (h *inspectionHandlers) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "health monitor not wired")
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

func (h *inspectionHandlers) handleDoctrineList(w http.ResponseWriter, r *http.Request) {
	if h.doctrine == nil {
		writeError(w, http.StatusServiceUnavailable, "doctrine store not wired")
		return
	}
	entries, err := h.doctrine.All()
	if err != nil {
		h.log.Error().Err(err).Msg("doctrine list failed")
		writeError(w, http.StatusInternalServerError, "failed to list doctrine entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

// handleStrandScan exposes a bounded, read-only view of the strand store.
// It accepts the same filter vocabulary as strand.Filter, restricted to
// query-string friendly fields.
func (h *inspectionHandlers) handleStrandScan(w http.ResponseWriter, r *http.Request) {
	if h.strands == nil {
		writeError(w, http.StatusServiceUnavailable, "strand store not wired")
		return
	}

	q := r.URL.Query()
	filter := strand.Filter{
		Symbol:           q.Get("symbol"),
		Timeframe:        q.Get("timeframe"),
		ClusterType:      q.Get("cluster_type"),
		OrderByCreatedAt: "desc",
		Limit:            defaultStrandScanLimit,
	}
	if kind := q.Get("kind"); kind != "" {
		filter.Kinds = []strand.Kind{strand.Kind(kind)}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxStrandScanLimit {
			n = maxStrandScanLimit
		}
		filter.Limit = n
	}

	strands, err := h.strands.Scan(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("strand scan failed")
		writeError(w, http.StatusInternalServerError, "failed to scan strands")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"strands": strands, "count": len(strands)})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
