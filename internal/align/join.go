package align

import (
	"github.com/inodb/vibe-align/internal/allele"
	"github.com/inodb/vibe-align/internal/bim"
)

// Candidate is a reference/target record pair sharing a matching key.
type Candidate struct {
	Seq    int // global order: reference order, then target order within a key
	Ref    *bim.Record
	Target *bim.Record
}

// Classify returns the allele relationship of the pair.
func (c Candidate) Classify() allele.Relationship {
	return allele.Classify(c.Ref.Allele1, c.Ref.Allele2, c.Target.Allele1, c.Target.Allele2)
}

// keyFunc returns the join key of a record for the mode.
func keyFunc(mode Mode) func(*bim.Record) string {
	if mode == ModeAgnostic {
		return (*bim.Record).AgnosticKey
	}
	return (*bim.Record).PositionKey
}

// Join pairs every reference record with every target record sharing its
// key. Candidates are returned in reference order, and in target order for
// records sharing a key.
func Join(ref, tgt []bim.Record, mode Mode) []Candidate {
	key := keyFunc(mode)

	byKey := make(map[string][]int, len(tgt))
	for i := range tgt {
		k := key(&tgt[i])
		byKey[k] = append(byKey[k], i)
	}

	var candidates []Candidate
	for i := range ref {
		for _, j := range byKey[key(&ref[i])] {
			candidates = append(candidates, Candidate{
				Seq:    len(candidates),
				Ref:    &ref[i],
				Target: &tgt[j],
			})
		}
	}
	return candidates
}

// shardByChrom groups candidates by normalized chromosome, preserving the
// order in which chromosomes first appear. Keys never span chromosomes, so
// shards can be resolved independently.
func shardByChrom(candidates []Candidate) [][]Candidate {
	index := make(map[string]int)
	var shards [][]Candidate
	for _, c := range candidates {
		chrom := c.Ref.NormalizeChrom()
		i, ok := index[chrom]
		if !ok {
			i = len(shards)
			index[chrom] = i
			shards = append(shards, nil)
		}
		shards[i] = append(shards[i], c)
	}
	return shards
}
