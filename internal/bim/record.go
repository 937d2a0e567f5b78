// Package bim provides PLINK .bim variant panel parsing and coordinate
// normalization.
package bim

import (
	"strconv"
	"strings"

	"github.com/inodb/vibe-align/internal/allele"
)

// Record represents a single variant row from a .bim file.
type Record struct {
	Chrom   string  // Chromosome label as written (e.g., "7", "chr7")
	ID      string  // Variant identifier (e.g., rs ID)
	CM      float64 // Genetic distance in centimorgans
	CMText  string  // Genetic distance as written, empty if not read from a file
	Pos     int64   // Base-pair coordinate
	Allele1 string  // First allele (usually minor/counted)
	Allele2 string  // Second allele
	Line    int     // 1-based source line, 0 if not read from a file
}

// NormalizeChrom returns the chromosome name with any case-insensitive
// "chr" prefixes removed. Repeated prefixes are stripped so that
// NormalizeChrom(NormalizeChrom(c)) == NormalizeChrom(c).
func NormalizeChrom(chrom string) string {
	for len(chrom) >= 3 && strings.EqualFold(chrom[:3], "chr") {
		chrom = chrom[3:]
	}
	return chrom
}

// NormalizeChrom returns the record's chromosome without "chr" prefix.
func (r *Record) NormalizeChrom() string {
	return NormalizeChrom(r.Chrom)
}

// PositionKey returns the normalized "chrom:pos" key used to pair records
// from different panels.
func (r *Record) PositionKey() string {
	return r.NormalizeChrom() + ":" + strconv.FormatInt(r.Pos, 10)
}

// AgnosticKey returns a "chrom:pos:a:b" key that is identical for records
// at the same site whose alleles agree up to order and strand.
func (r *Record) AgnosticKey() string {
	a, b := allele.CanonicalPair(r.Allele1, r.Allele2)
	return r.PositionKey() + ":" + a + ":" + b
}

// Fields returns the six .bim columns in file order. The genetic distance
// is written as it appeared in the source file when known.
func (r *Record) Fields() []string {
	cm := r.CMText
	if cm == "" {
		cm = strconv.FormatFloat(r.CM, 'g', -1, 64)
	}
	return []string{
		r.Chrom,
		r.ID,
		cm,
		strconv.FormatInt(r.Pos, 10),
		r.Allele1,
		r.Allele2,
	}
}
