// Package allele provides strand complementation and allele pair comparison.
package allele

import "strings"

// Relationship describes how a target allele pair relates to a reference pair
// at the same site.
type Relationship int

const (
	// Incompatible means the pairs differ on both strands.
	Incompatible Relationship = iota
	// Exact means the pairs are equal, ignoring allele order.
	Exact
	// Flip means the reference pair equals the complement of the target pair.
	Flip
)

// String returns the lowercase name of the relationship.
func (r Relationship) String() string {
	switch r {
	case Exact:
		return "exact"
	case Flip:
		return "flip"
	default:
		return "incompatible"
	}
}

// Compatible reports whether the target variant can be kept.
func (r Relationship) Compatible() bool {
	return r == Exact || r == Flip
}

// Complement returns the base-pairing partner of a single-base allele.
// "0" (missing) maps to itself, as does any symbol outside A/C/G/T,
// including multi-base alleles. Case is preserved.
func Complement(a string) string {
	switch a {
	case "A":
		return "T"
	case "T":
		return "A"
	case "C":
		return "G"
	case "G":
		return "C"
	case "a":
		return "t"
	case "t":
		return "a"
	case "c":
		return "g"
	case "g":
		return "c"
	}
	return a
}

// Classify compares a reference allele pair (r1, r2) against a target pair
// (t1, t2). Allele order is not significant on either side. Exact takes
// precedence over Flip, so strand-ambiguous pairs (A/T, C/G) always classify
// as Exact when the literal alleles agree.
func Classify(r1, r2, t1, t2 string) Relationship {
	r1, r2 = strings.ToUpper(r1), strings.ToUpper(r2)
	t1, t2 = strings.ToUpper(t1), strings.ToUpper(t2)

	if (r1 == t1 && r2 == t2) || (r1 == t2 && r2 == t1) {
		return Exact
	}

	c1, c2 := Complement(t1), Complement(t2)
	if (r1 == c1 && r2 == c2) || (r1 == c2 && r2 == c1) {
		return Flip
	}

	return Incompatible
}

// IsPalindromic reports whether the pair is its own complement (A/T or C/G),
// which makes the strand impossible to infer from the alleles alone.
func IsPalindromic(a1, a2 string) bool {
	a1, a2 = strings.ToUpper(a1), strings.ToUpper(a2)
	if a1 == "0" || a2 == "0" || a1 == a2 {
		return false
	}
	return Complement(a1) == a2 && Complement(a2) == a1
}

// CanonicalPair returns an order- and strand-independent representation of an
// allele pair: the lexicographically smaller of the sorted pair and the sorted
// complemented pair. A/G and T/C both yield ("A", "G").
func CanonicalPair(a1, a2 string) (string, string) {
	a1, a2 = strings.ToUpper(a1), strings.ToUpper(a2)
	if a2 < a1 {
		a1, a2 = a2, a1
	}

	c1, c2 := Complement(a1), Complement(a2)
	if c2 < c1 {
		c1, c2 = c2, c1
	}

	if c1 < a1 || (c1 == a1 && c2 < a2) {
		return c1, c2
	}
	return a1, a2
}
