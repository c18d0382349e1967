package tensor

import (
	"math"
	"math/rand/v2"
)

// Key is a deterministic pseudo-random key. The same key always produces the
// same values; Split derives independent child keys for sublayers.
type Key uint64

func NewKey(seed uint64) Key { return Key(seed) }

// Split derives n child keys. Children of equal keys are equal, and the
// children of one key differ from each other and from the parent.
func (k Key) Split(n int) []Key {
	keys := make([]Key, n)
	state := uint64(k)
	for i := range keys {
		keys[i] = Key(splitmix64(&state))
	}
	return keys
}

// Uniform draws values uniformly from [lo, hi).
func (k Key) Uniform(lo, hi float32, shape ...int) Array {
	rng := k.rand()
	a := New(shape...)
	for i := range a.Data {
		a.Data[i] = lo + rng.Float32()*(hi-lo)
	}
	return a
}

// Normal draws values from N(0, stddev²).
func (k Key) Normal(stddev float32, shape ...int) Array {
	rng := k.rand()
	a := New(shape...)
	for i := range a.Data {
		a.Data[i] = float32(rng.NormFloat64()) * stddev
	}
	return a
}

// GlorotUniform draws a [fanIn, fanOut] matrix from U(-l, l) with
// l = sqrt(6 / (fanIn + fanOut)).
func (k Key) GlorotUniform(fanIn, fanOut int) Array {
	limit := float32(0)
	if fanIn+fanOut > 0 {
		limit = float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	}
	return k.Uniform(-limit, limit, fanIn, fanOut)
}

func (k Key) rand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(k), 0x9e3779b97f4a7c15))
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
