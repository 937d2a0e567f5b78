// Package align reconciles a target variant panel against a reference panel.
//
// Target variants are paired with reference variants at the same site, each
// pair is classified by allele compatibility, and the evidence is resolved
// into disjoint keep/remove/flip/force-allele sets plus placeholder records
// for reference variants that have no kept counterpart.
package align

import (
	"fmt"
	"strings"
)

// Mode selects how reference and target records are paired.
type Mode string

const (
	// ModeCoordinate pairs records sharing chromosome and position and
	// classifies each pair, removing targets with any incompatible pairing.
	ModeCoordinate Mode = "coordinate"

	// ModeAgnostic pairs records sharing chromosome, position and an allele
	// pair that is equal up to order and strand.
	ModeAgnostic Mode = "agnostic"
)

// ParseMode parses a matching mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCoordinate, "":
		return ModeCoordinate, nil
	case ModeAgnostic:
		return ModeAgnostic, nil
	}
	return "", fmt.Errorf("unknown matching mode %q (want coordinate or agnostic)", s)
}

// Options configures a Resolver.
type Options struct {
	Mode Mode

	// Workers bounds the number of chromosome shards resolved concurrently.
	// If 0, runtime.NumCPU() is used.
	Workers int
}
