package resonance

import "sort"

// Violation records a candidate the queue-construction pass dropped or
// deferred, and why.
type Violation struct {
	CandidateID string
	Reason      string
}

// Result is the §4.10 "Contract": an ordered queue, a family-distribution
// summary, and any constraint violations encountered while building it.
type Result struct {
	Queue              []Candidate
	FamilyDistribution map[string]int
	Violations         []Violation
}

// BuildQueue sorts candidates by resonance descending, then enforces the
// family cap and the orchestrator's per-source workload limit in that
// order. sourceWorkload carries each target source's already-in-flight
// count (from the Orchestrator); maxPerSource is its admission limit.
func BuildQueue(candidates []Candidate, sourceWorkload map[string]int, maxPerSource int, familyCapFraction float64) Result {
	familyTotals := map[string]int{}
	for _, c := range candidates {
		familyTotals[c.Family]++
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Resonance() > sorted[j].Resonance()
	})

	if sourceWorkload == nil {
		sourceWorkload = map[string]int{}
	}
	admittedPerSource := map[string]int{}
	for source, count := range sourceWorkload {
		admittedPerSource[source] = count
	}

	result := Result{FamilyDistribution: map[string]int{}}

	for _, c := range sorted {
		familyCap := FamilyCap(familyTotals[c.Family], familyCapFraction)
		if result.FamilyDistribution[c.Family] >= familyCap {
			result.Violations = append(result.Violations, Violation{
				CandidateID: c.ID,
				Reason:      "family cap reached for " + c.Family,
			})
			continue
		}
		if maxPerSource > 0 && admittedPerSource[c.TargetSource] >= maxPerSource {
			result.Violations = append(result.Violations, Violation{
				CandidateID: c.ID,
				Reason:      "per-source workload limit reached for " + c.TargetSource,
			})
			continue
		}

		result.Queue = append(result.Queue, c)
		result.FamilyDistribution[c.Family]++
		admittedPerSource[c.TargetSource]++
	}

	return result
}
