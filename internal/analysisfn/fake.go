package analysisfn

import (
	"context"
	"fmt"
	"strings"
)

// Fake is a deterministic, no-network implementation of Function used in
// tests and as a default when no real provider is configured. It
// synthesizes a plausible lesson narrative from the input context rather
// than calling out to an LLM provider (out of scope per §1).
type Fake struct{}

// Analyze never fails and never returns nil; it deterministically
// derives output fields from templateID and input.
func (Fake) Analyze(_ context.Context, templateID string, input Context) (*Result, error) {
	symbol, _ := input["symbol"].(string)
	clusterKey, _ := input["cluster_key"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, "synthesized via %s", templateID)
	if symbol != "" {
		fmt.Fprintf(&b, " for %s", symbol)
	}
	if clusterKey != "" {
		fmt.Fprintf(&b, " on cluster %s", clusterKey)
	}

	return &Result{Fields: map[string]interface{}{
		"lesson":               b.String(),
		"mechanism_hypothesis": "derived from aggregate member statistics",
		"confidence":           0.5,
	}}, nil
}
