package workload

import (
	randv2 "math/rand/v2"

	"github.com/benz9527/xset/lib/id"
)

type opKind uint8

const (
	opAdd opKind = iota
	opRemove
	opContains
)

func (k opKind) String() string {
	switch k {
	case opAdd:
		return "add"
	case opRemove:
		return "remove"
	case opContains:
		return "contains"
	default:
	}
	return "unknown"
}

type operation struct {
	kind opKind
	key  uint64
}

// opGenerator yields the operations of one worker. Each worker owns its
// generator, and the random stream is derived from the seed and the worker
// index, so a run is reproducible.
type opGenerator struct {
	pattern Pattern
	keys    uint64
	mix     MixConfig
	rng     *randv2.Rand
	seq     id.UUIDGen
}

func newOpGenerator(cfg *Config, worker int) (*opGenerator, error) {
	seq, err := id.MonotonicNonZeroID()
	if err != nil {
		return nil, err
	}
	return &opGenerator{
		pattern: cfg.Pattern,
		keys:    uint64(cfg.Keys),
		mix:     cfg.Mix,
		rng:     randv2.New(randv2.NewPCG(cfg.Seed, uint64(worker))),
		seq:     seq,
	}, nil
}

// nextKey walks the key space from 0 to keys-1 (sequential), from keys-1
// down to 0 (reverse), or draws uniformly (random).
func (g *opGenerator) nextKey() uint64 {
	switch g.pattern {
	case PatternSequential:
		return (g.seq.Number() - 1) % g.keys
	case PatternReverse:
		return g.keys - 1 - (g.seq.Number()-1)%g.keys
	default:
	}
	return g.rng.Uint64N(g.keys)
}

func (g *opGenerator) nextKind() opKind {
	n := g.rng.IntN(g.mix.total())
	if n < g.mix.Add {
		return opAdd
	} else if n < g.mix.Add+g.mix.Remove {
		return opRemove
	}
	return opContains
}

func (g *opGenerator) next() operation {
	return operation{
		kind: g.nextKind(),
		key:  g.nextKey(),
	}
}
