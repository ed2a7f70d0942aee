// Package uuid generates session ids behind a mockable interface.
package uuid

//go:generate mockgen -destination=mock/mock_generator.go -package=mockuuid -source=uuid.go Generator

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator hands out session ids.
type Generator interface {
	New() string
}

// RandomGenerator returns random (v4) UUIDs.
type RandomGenerator struct{}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

func (g *RandomGenerator) New() string {
	return uuid.NewString()
}

// NameGenerator derives name-based (v5) UUIDs from a seed name and a
// counter. The same seed yields the same sequence of ids, so replayed runs
// log the same session ids every time.
type NameGenerator struct {
	seed string
	n    atomic.Uint64
}

func NewNameGenerator(seed string) *NameGenerator {
	return &NameGenerator{seed: seed}
}

func (g *NameGenerator) New() string {
	n := g.n.Add(1)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(g.seed+"#"+strconv.FormatUint(n, 10))).String()
}

// Short returns the first block of a UUID, for log fields. Other ids are
// cut to eight characters.
func Short(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()[:8]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
