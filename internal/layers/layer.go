// Package layers implements composable, arity-typed layers that exchange
// values over a shared data stack.
//
// Every layer declares how many values it consumes (NIn) and produces (NOut).
// Combinators such as Serial and Parallel are layers themselves; their arity
// is derived from their sublayers when they are built. Weights are created by
// Init, once per layer instance, so the same instance referenced from several
// places in a model shares its weights.
package layers

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/samcharles93/layerstack/internal/tensor"
)

// Layer is the capability set shared by leaf layers and combinators.
//
// Implementations outside this package embed *Base, which supplies identity,
// arity and weight storage, and provide Forward and Setup.
type Layer interface {
	Name() string
	ID() uuid.UUID
	NIn() int
	NOut() int
	Sublayers() []Layer

	// Forward computes the layer's outputs. len(xs) must equal NIn and the
	// result must hold exactly NOut values.
	Forward(ctx context.Context, xs []tensor.Array) ([]tensor.Array, error)

	// Setup creates the layer's own weights for the given input signatures
	// (unless it already holds some) and returns its output signatures.
	// Combinators initialize their sublayers through init.
	Setup(in []tensor.Signature, key tensor.Key, init *Initializer) ([]tensor.Signature, error)

	base() *Base
}

// Param is a named weight or state value owned by a single layer.
type Param struct {
	Name  string       `json:"name"`
	Value tensor.Array `json:"value"`
}

// Base carries the parts every layer has in common.
type Base struct {
	name string
	id   uuid.UUID
	nIn  int
	nOut int

	mu          sync.RWMutex
	params      []Param
	state       []Param
	initialized bool
}

// NewBase returns a Base with a fresh identity.
func NewBase(name string, nIn, nOut int) *Base {
	return &Base{name: name, id: uuid.New(), nIn: nIn, nOut: nOut}
}

func (b *Base) Name() string       { return b.name }
func (b *Base) ID() uuid.UUID      { return b.id }
func (b *Base) NIn() int           { return b.nIn }
func (b *Base) NOut() int          { return b.nOut }
func (b *Base) Sublayers() []Layer { return nil }
func (b *Base) base() *Base        { return b }

// Initialized reports whether the layer holds weights, either from Init or
// from SetWeights.
func (b *Base) Initialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// Params returns the layer's own parameters (not its sublayers').
func (b *Base) Params() []Param {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.params)
}

// State returns the layer's own non-parameter state.
func (b *Base) State() []Param {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.state)
}

// Param looks up one of the layer's own parameters by name.
func (b *Base) Param(name string) (tensor.Array, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lookup(b.params, name)
}

// StateValue looks up one of the layer's state values by name.
func (b *Base) StateValue(name string) (tensor.Array, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lookup(b.state, name)
}

// SetWeights replaces the layer's parameters and state and marks it
// initialized. Checkpoint loading goes through here.
func (b *Base) SetWeights(params, state []Param) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params = slices.Clone(params)
	b.state = slices.Clone(state)
	b.initialized = true
}

// InitWeights installs the parameters and state produced by create, unless
// the layer is already initialized, in which case create is not called.
// It reports whether create ran.
func (b *Base) InitWeights(create func() (params, state []Param, err error)) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return false, nil
	}
	params, state, err := create()
	if err != nil {
		return false, err
	}
	b.params = params
	b.state = state
	b.initialized = true
	return true, nil
}

// UpdateState replaces a state value in place. The update runs under the
// layer's lock so concurrent forwards see consistent state.
func (b *Base) UpdateState(name string, update func(tensor.Array) tensor.Array) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	for i := range b.state {
		if b.state[i].Name == name {
			b.state[i].Value = update(b.state[i].Value)
			return nil
		}
	}
	return ErrNotInitialized
}

// Weights returns the parameters and state held by l itself.
func Weights(l Layer) (params, state []Param) {
	b := l.base()
	return b.Params(), b.State()
}

// SetWeights installs params and state on l itself. See Base.SetWeights.
func SetWeights(l Layer, params, state []Param) {
	l.base().SetWeights(params, state)
}

func (b *Base) markInitialized() {
	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()
}

func lookup(ps []Param, name string) (tensor.Array, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return tensor.Array{}, false
}

func checkInputs(l Layer, n int) error {
	if n != l.NIn() {
		return &ArityError{Layer: l.Name(), Index: -1, Need: l.NIn(), Have: n}
	}
	return nil
}

func signatures(xs []tensor.Array) []tensor.Signature {
	out := make([]tensor.Signature, len(xs))
	for i, x := range xs {
		out[i] = x.Signature()
	}
	return out
}
