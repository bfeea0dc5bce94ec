package gds

import (
	"math/rand/v2"
	"strings"
)

// LocatorAlphabet excludes the visually ambiguous 0/O and 1/I/L.
const LocatorAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// LocatorLength is the length of a permanent record locator.
const LocatorLength = 6

// PlaceholderLocator marks a PNR that has not been finalized.
const PlaceholderLocator = "******"

// LocatorGenerator produces permanent record locators.
type LocatorGenerator struct {
	rng *rand.Rand
}

// NewLocatorGenerator returns a generator seeded from the runtime source.
func NewLocatorGenerator() *LocatorGenerator {
	return &LocatorGenerator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededLocatorGenerator returns a deterministic generator for tests.
func NewSeededLocatorGenerator(seed uint64) *LocatorGenerator {
	return &LocatorGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns a new locator.
func (g *LocatorGenerator) Next() string {
	var b strings.Builder
	b.Grow(LocatorLength)
	for i := 0; i < LocatorLength; i++ {
		b.WriteByte(LocatorAlphabet[g.rng.IntN(len(LocatorAlphabet))])
	}
	return b.String()
}

// ValidLocator reports whether s is a well-formed permanent locator.
func ValidLocator(s string) bool {
	if len(s) != LocatorLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(LocatorAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
