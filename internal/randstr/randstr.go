// Package randstr generates short random alphanumeric strings.
//
// The source is math/rand/v2, which is uniform but not cryptographically
// unpredictable. Do not use these strings as secrets or tokens.
package randstr

import (
	"math/rand/v2"
)

// Alphabet holds the 62 characters strings are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is used by Default.
const DefaultLength = 5

// Generator draws strings from a specific random source.
type Generator struct {
	r *rand.Rand
}

// New creates a Generator over r. A nil r uses the global source.
func New(r *rand.Rand) *Generator {
	return &Generator{r: r}
}

// NewSeeded creates a deterministic Generator.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// String returns length characters sampled uniformly, with replacement,
// from Alphabet. Negative lengths produce an empty string.
func (g *Generator) String(length int) string {
	if length <= 0 {
		return ""
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = Alphabet[g.intN(len(Alphabet))]
	}
	return string(b)
}

func (g *Generator) intN(n int) int {
	if g == nil || g.r == nil {
		return rand.IntN(n)
	}
	return g.r.IntN(n)
}

var global = New(nil)

// String returns a random string of the given length using the global source.
func String(length int) string {
	return global.String(length)
}

// Default returns a random string of DefaultLength characters.
func Default() string {
	return String(DefaultLength)
}
