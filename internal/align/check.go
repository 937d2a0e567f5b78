package align

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvariant is matched by every *InvariantError.
var ErrInvariant = errors.New("invariant violation")

// InvariantError lists the consistency checks a Result failed.
type InvariantError struct {
	Violations []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvariant, strings.Join(e.Violations, "; "))
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

// Check verifies that the action sets are disjoint and complete and that kept
// and dummy records reconstruct the reference panel exactly.
func (r *Result) Check() error {
	var v []string

	targets := make(map[string]struct{}, len(r.TargetIDs))
	for _, id := range r.TargetIDs {
		targets[id] = struct{}{}
		_, kept := r.Keep[id]
		_, removed := r.Remove[id]
		switch {
		case kept && removed:
			v = append(v, fmt.Sprintf("target %s is both kept and removed", id))
		case !kept && !removed:
			v = append(v, fmt.Sprintf("target %s is neither kept nor removed", id))
		}
	}
	for _, id := range sortedKeys(r.Keep) {
		if _, ok := targets[id]; !ok {
			v = append(v, fmt.Sprintf("kept id %s is not a target variant", id))
		}
	}
	for _, id := range sortedKeys(r.Remove) {
		if _, ok := targets[id]; !ok {
			v = append(v, fmt.Sprintf("removed id %s is not a target variant", id))
		}
	}

	for _, id := range sortedKeys(r.Flip) {
		if _, ok := r.Keep[id]; !ok {
			v = append(v, fmt.Sprintf("flipped target %s is not kept", id))
		}
	}
	for _, id := range sortedKeys(r.ForceAllele) {
		if _, ok := r.Keep[id]; !ok {
			v = append(v, fmt.Sprintf("force-allele target %s is not kept", id))
		}
	}

	refIDs := make(map[string]int, len(r.Reference))
	for _, rec := range r.Reference {
		refIDs[rec.ID]++
	}

	claims := make(map[string][]string)
	for _, tid := range sortedKeys(r.Keep) {
		claims[r.Keep[tid]] = append(claims[r.Keep[tid]], tid)
	}
	for _, rid := range sortedKeys(claims) {
		tids := claims[rid]
		if len(tids) > 1 {
			v = append(v, fmt.Sprintf("reference %s claimed by %d targets (%s)", rid, len(tids), strings.Join(tids, ",")))
		}
		if n, ok := refIDs[rid]; !ok {
			v = append(v, fmt.Sprintf("reference %s kept by %s is not in the reference panel", rid, tids[0]))
		} else if n > 1 {
			v = append(v, fmt.Sprintf("reference id %s appears %d times in the reference panel", rid, n))
		}
	}
	for _, rec := range r.Dummy {
		if tids, ok := claims[rec.ID]; ok {
			v = append(v, fmt.Sprintf("reference %s is both kept (by %s) and padded", rec.ID, tids[0]))
		}
	}

	if got, want := len(r.Keep)+len(r.Dummy), len(r.Reference); got != want {
		v = append(v, fmt.Sprintf("kept (%d) + dummy (%d) = %d, reference panel has %d", len(r.Keep), len(r.Dummy), got, want))
	}

	if len(v) > 0 {
		return &InvariantError{Violations: v}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
