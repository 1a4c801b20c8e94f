// Package analysisfn defines the abstract external analysis function
// (§6.4) used by the Global Synthesizer for mechanism hypotheses, by the
// Learning Braid Manager for lesson synthesis, and by the Experiment
// Orchestrator for hypothesis framing. The interface does not mandate a
// specific provider (§1, §9 Non-goals); callers must treat a nil result
// as "no result this cycle, try later."
package analysisfn

import (
	"context"
	"encoding/json"
	"fmt"
)

// Context is the structured input handed to the analysis function.
type Context map[string]interface{}

// Result is the structured output of a successful analysis call.
type Result struct {
	Fields map[string]interface{}
}

// Float returns result field key as a float64, or ok=false if absent or
// not numeric. Used to decode analysis-function JSON per a strict
// schema (§9 open question: reject malformed responses as "no result").
func (r Result) Float(key string) (float64, bool) {
	v, ok := r.Fields[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// String returns result field key as a string, or ok=false.
func (r Result) String(key string) (string, bool) {
	v, ok := r.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Function is the abstract analysis function contract: deterministic on
// a given (templateID, context); may return (nil, nil) to signal "no
// result"; never panics.
type Function interface {
	Analyze(ctx context.Context, templateID string, input Context) (*Result, error)
}

// DecodeStrict unmarshals raw JSON into a Result, rejecting anything that
// isn't a JSON object (including null). Field names and value types are
// not checked against a schema; nested values are kept as decoded.
func DecodeStrict(raw []byte) (*Result, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("analysis function response is not a JSON object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("analysis function response is not a JSON object: null")
	}
	return &Result{Fields: fields}, nil
}
