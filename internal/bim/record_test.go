package bim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChrom(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"7", "7"},
		{"chr7", "7"},
		{"CHR7", "7"},
		{"Chr7", "7"},
		{"chrX", "X"},
		{"MT", "MT"},
		{"chr", ""},
		{"ch7", "ch7"},
		{"chrchr7", "7"},
	}

	for _, tt := range tests {
		got := NormalizeChrom(tt.in)
		assert.Equal(t, tt.want, got, "NormalizeChrom(%q)", tt.in)
		assert.Equal(t, got, NormalizeChrom(got), "not idempotent for %q", tt.in)
	}
}

func TestPositionKey(t *testing.T) {
	a := &Record{Chrom: "chr7", Pos: 117559590}
	b := &Record{Chrom: "CHR7", Pos: 117559590}
	c := &Record{Chrom: "7", Pos: 117559590}

	assert.Equal(t, "7:117559590", a.PositionKey())
	assert.Equal(t, a.PositionKey(), b.PositionKey())
	assert.Equal(t, a.PositionKey(), c.PositionKey())
	assert.NotEqual(t, a.PositionKey(), (&Record{Chrom: "7", Pos: 1}).PositionKey())
}

func TestAgnosticKey(t *testing.T) {
	ag := &Record{Chrom: "1", Pos: 1000, Allele1: "A", Allele2: "G"}
	tc := &Record{Chrom: "chr1", Pos: 1000, Allele1: "T", Allele2: "C"}
	ga := &Record{Chrom: "1", Pos: 1000, Allele1: "G", Allele2: "A"}
	ac := &Record{Chrom: "1", Pos: 1000, Allele1: "A", Allele2: "C"}

	assert.Equal(t, "1:1000:A:G", ag.AgnosticKey())
	assert.Equal(t, ag.AgnosticKey(), tc.AgnosticKey())
	assert.Equal(t, ag.AgnosticKey(), ga.AgnosticKey())
	assert.NotEqual(t, ag.AgnosticKey(), ac.AgnosticKey())
}

func TestFields(t *testing.T) {
	r := &Record{Chrom: "chr2", ID: "rs2", CM: 0.25, Pos: 2000, Allele1: "C", Allele2: "T"}
	assert.Equal(t, []string{"chr2", "rs2", "0.25", "2000", "C", "T"}, r.Fields())

	r.CM = 0
	assert.Equal(t, "0", r.Fields()[2])
}

func TestFields_KeepsGeneticDistanceText(t *testing.T) {
	records, err := ReadAllFrom(strings.NewReader("1 rs1 0.000010 1000 A G
2 rs2 1.50 2000 C T
"))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1e-05, records[0].CM)
	assert.Equal(t, "0.000010", records[0].Fields()[2])
	assert.Equal(t, "1.50", records[1].Fields()[2])
}
