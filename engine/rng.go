package engine

import (
	"math/rand/v2"

	"github.com/lixenwraith/chronon/core"
)

// splitmix64 is the seed-expansion step used to derive independent
// generator streams. Constants per the reference construction; the
// output sequence is stable across platforms, which determinism needs
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// deriveComponentSeed expands (master, cid) into a PCG seed pair.
// Every component gets its own stream; worker goroutines never share
// generator state
func deriveComponentSeed(master uint64, cid core.ComponentID) (uint64, uint64) {
	s := splitmix64(master ^ splitmix64(uint64(uint32(cid))))
	return s, splitmix64(s)
}

// newComponentRand builds the persistent stream for an active component
func newComponentRand(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}

// newDispatchRand builds the per-event stream for a passive dispatch.
// Folding the event sequence in keeps draws deterministic no matter
// which pool worker runs the handler or in what order
func newDispatchRand(seed1, seed2, seq uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1^splitmix64(seq), seed2+seq))
}
