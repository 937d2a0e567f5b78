package align

import (
	"github.com/inodb/vibe-align/internal/bim"
)

// Decision actions.
const (
	ActionKeep   = "keep"
	ActionFlip   = "flip" // kept, genotypes complemented
	ActionRemove = "remove"
)

// Decision reasons.
const (
	ReasonExact        = "exact"
	ReasonFlip         = "flip"
	ReasonIncompatible = "incompatible"
	ReasonUnmatched    = "unmatched"
)

// Decision records the outcome for one target variant id.
type Decision struct {
	TargetID     string
	RefID        string // mapped reference id, or the conflicting one for removals
	Chrom        string
	Pos          int64
	Action       string
	Relationship string
	Palindromic  bool
	Reason       string
}

// Result holds the resolved action sets.
type Result struct {
	Mode Mode

	Keep        map[string]string   // target id -> reference id
	Remove      map[string]struct{} // target ids to exclude
	Flip        map[string]struct{} // kept target ids to strand-flip
	ForceAllele map[string]string   // target id -> reference allele 1 (coordinate mode)

	// Dummy holds reference records without a kept counterpart, in
	// reference order.
	Dummy []bim.Record

	// Reference is the full reference panel in file order.
	Reference []bim.Record

	// TargetIDs lists distinct target ids in target panel order.
	TargetIDs []string

	// Decisions has one entry per distinct target id, in target order.
	Decisions []Decision
}

func newResult(mode Mode, ref []bim.Record) *Result {
	return &Result{
		Mode:        mode,
		Keep:        make(map[string]string),
		Remove:      make(map[string]struct{}),
		Flip:        make(map[string]struct{}),
		ForceAllele: make(map[string]string),
		Reference:   ref,
	}
}

func (r *Result) hasTarget(id string) bool {
	if _, ok := r.Keep[id]; ok {
		return true
	}
	_, ok := r.Remove[id]
	return ok
}

// KeptIDs returns kept target ids in target panel order.
func (r *Result) KeptIDs() []string {
	return r.filterTargets(func(id string) bool {
		_, ok := r.Keep[id]
		return ok
	})
}

// RemovedIDs returns removed target ids in target panel order.
func (r *Result) RemovedIDs() []string {
	return r.filterTargets(func(id string) bool {
		_, ok := r.Remove[id]
		return ok
	})
}

// FlippedIDs returns flipped target ids in target panel order.
func (r *Result) FlippedIDs() []string {
	return r.filterTargets(func(id string) bool {
		_, ok := r.Flip[id]
		return ok
	})
}

func (r *Result) filterTargets(keep func(string) bool) []string {
	var ids []string
	for _, id := range r.TargetIDs {
		if keep(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// FinalOrder returns reference ids in reference panel order.
func (r *Result) FinalOrder() []string {
	ids := make([]string, len(r.Reference))
	for i, rec := range r.Reference {
		ids[i] = rec.ID
	}
	return ids
}

// Stats summarizes the action set sizes.
type Stats struct {
	RefTotal int
	Targets  int
	Kept     int
	Flipped  int
	Removed  int
	Dummy    int
}

// Checksum returns Kept + Dummy, which equals RefTotal for a valid result.
func (s Stats) Checksum() int {
	return s.Kept + s.Dummy
}

// Stats returns the action set sizes.
func (r *Result) Stats() Stats {
	return Stats{
		RefTotal: len(r.Reference),
		Targets:  len(r.TargetIDs),
		Kept:     len(r.Keep),
		Flipped:  len(r.Flip),
		Removed:  len(r.Remove),
		Dummy:    len(r.Dummy),
	}
}
