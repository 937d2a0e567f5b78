package align

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-align/internal/allele"
	"github.com/inodb/vibe-align/internal/bim"
)

// evidence accumulates every classification seen for one target id.
// A single incompatible pairing poisons the id; among compatible pairings
// the one with the highest sequence number supplies the mapping.
type evidence struct {
	poisoned  bool
	poisonSeq int
	poisonRef string // reference id of the last incompatible pairing by seq

	matched bool
	seq     int
	ref     *bim.Record
	rel     allele.Relationship

	candidates int
}

func (e *evidence) add(c Candidate, rel allele.Relationship) {
	e.candidates++
	if !rel.Compatible() {
		if !e.poisoned || c.Seq > e.poisonSeq {
			e.poisonSeq = c.Seq
			e.poisonRef = c.Ref.ID
		}
		e.poisoned = true
		return
	}
	if !e.matched || c.Seq > e.seq {
		e.matched = true
		e.seq = c.Seq
		e.ref = c.Ref
		e.rel = rel
	}
}

// merge folds evidence from another shard into e. Poison is sticky, and for
// both poison and match the pairing with the higher seq wins, so the merged
// result does not depend on how candidates were sharded.
func (e *evidence) merge(o *evidence) {
	e.candidates += o.candidates
	if o.poisoned && (!e.poisoned || o.poisonSeq > e.poisonSeq) {
		e.poisoned = true
		e.poisonSeq = o.poisonSeq
		e.poisonRef = o.poisonRef
	}
	if o.matched && (!e.matched || o.seq > e.seq) {
		e.matched = true
		e.seq = o.seq
		e.ref = o.ref
		e.rel = o.rel
	}
}

// Resolver partitions target variants into action sets.
type Resolver struct {
	opts   Options
	logger *zap.Logger
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts Options) *Resolver {
	if opts.Mode == "" {
		opts.Mode = ModeCoordinate
	}
	return &Resolver{
		opts:   opts,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for progress and diagnostic messages.
func (r *Resolver) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Resolve runs the resolver with default settings for the mode.
func Resolve(ref, tgt []bim.Record, opts Options) (*Result, error) {
	return NewResolver(opts).Resolve(context.Background(), ref, tgt)
}

// Resolve pairs the panels, resolves the action sets and checks the result
// invariants. An *InvariantError is returned instead of a result that
// violates them.
func (r *Resolver) Resolve(ctx context.Context, ref, tgt []bim.Record) (*Result, error) {
	candidates := Join(ref, tgt, r.opts.Mode)
	r.logger.Debug("joined panels",
		zap.String("mode", string(r.opts.Mode)),
		zap.Int("reference", len(ref)),
		zap.Int("target", len(tgt)),
		zap.Int("candidates", len(candidates)))

	ev, err := r.collect(ctx, candidates)
	if err != nil {
		return nil, err
	}

	res := r.partition(ref, tgt, ev)
	if err := res.Check(); err != nil {
		return nil, err
	}
	return res, nil
}

// collect classifies every candidate, one chromosome shard per task, and
// merges the per-shard evidence.
func (r *Resolver) collect(ctx context.Context, candidates []Candidate) (map[string]*evidence, error) {
	shards := shardByChrom(candidates)
	shardEvidence := make([]map[string]*evidence, len(shards))

	workers := r.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, shard := range shards {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			shardEvidence[i] = collectShard(shard)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classify candidates: %w", err)
	}

	merged := make(map[string]*evidence)
	for _, se := range shardEvidence {
		for id, e := range se {
			if cur, ok := merged[id]; ok {
				cur.merge(e)
			} else {
				merged[id] = e
			}
		}
	}
	return merged, nil
}

func collectShard(candidates []Candidate) map[string]*evidence {
	ev := make(map[string]*evidence)
	for _, c := range candidates {
		e, ok := ev[c.Target.ID]
		if !ok {
			e = &evidence{}
			ev[c.Target.ID] = e
		}
		e.add(c, c.Classify())
	}
	return ev
}

// partition turns merged evidence into the final action sets. Removal wins
// over any compatible evidence for the same target id.
func (r *Resolver) partition(ref, tgt []bim.Record, ev map[string]*evidence) *Result {
	res := newResult(r.opts.Mode, ref)

	var ambiguous, palindromic int
	for i := range tgt {
		t := &tgt[i]
		if res.hasTarget(t.ID) {
			continue
		}
		res.TargetIDs = append(res.TargetIDs, t.ID)

		d := Decision{TargetID: t.ID, Chrom: t.Chrom, Pos: t.Pos}
		e := ev[t.ID]
		switch {
		case e == nil:
			res.Remove[t.ID] = struct{}{}
			d.Action = ActionRemove
			d.Reason = ReasonUnmatched

		case e.poisoned:
			res.Remove[t.ID] = struct{}{}
			d.Action = ActionRemove
			d.Reason = ReasonIncompatible
			d.RefID = e.poisonRef
			d.Relationship = allele.Incompatible.String()
			if e.matched {
				ambiguous++
				r.logger.Debug("removing target with conflicting evidence",
					zap.String("target", t.ID),
					zap.String("compatible_ref", e.ref.ID),
					zap.String("incompatible_ref", e.poisonRef),
					zap.Int("candidates", e.candidates))
			}

		default:
			res.Keep[t.ID] = e.ref.ID
			d.RefID = e.ref.ID
			d.Relationship = e.rel.String()
			d.Action = ActionKeep
			d.Reason = ReasonExact
			if e.rel == allele.Flip {
				res.Flip[t.ID] = struct{}{}
				d.Action = ActionFlip
				d.Reason = ReasonFlip
			}
			if r.opts.Mode == ModeCoordinate {
				res.ForceAllele[t.ID] = e.ref.Allele1
			}
			if allele.IsPalindromic(e.ref.Allele1, e.ref.Allele2) {
				d.Palindromic = true
				palindromic++
			}
		}
		res.Decisions = append(res.Decisions, d)
	}

	res.Dummy = padDummies(ref, res.Keep)

	if palindromic > 0 {
		r.logger.Warn("kept strand-ambiguous variants; strand was taken from the literal allele match",
			zap.Int("count", palindromic))
	}
	st := res.Stats()
	r.logger.Info("resolved panels",
		zap.Int("reference", st.RefTotal),
		zap.Int("kept", st.Kept),
		zap.Int("flipped", st.Flipped),
		zap.Int("removed", st.Removed),
		zap.Int("ambiguous", ambiguous),
		zap.Int("dummy", st.Dummy))

	return res
}

// padDummies returns the reference records whose id is not the target of any
// kept mapping, in reference order.
func padDummies(ref []bim.Record, keep map[string]string) []bim.Record {
	kept := make(map[string]struct{}, len(keep))
	for _, refID := range keep {
		kept[refID] = struct{}{}
	}

	var dummy []bim.Record
	for _, r := range ref {
		if _, ok := kept[r.ID]; !ok {
			dummy = append(dummy, r)
		}
	}
	return dummy
}
