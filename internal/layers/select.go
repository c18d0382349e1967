package layers

import (
	"context"
	"fmt"
	"slices"

	"github.com/samcharles93/layerstack/internal/tensor"
)

// SelectLayer copies, drops and reorders stack values. Output i is input
// indices[i].
type SelectLayer struct {
	*Base
	indices []int
}

// Select builds a layer producing xs[indices[0]], xs[indices[1]], ... from
// nIn inputs. nIn 0 means one more than the largest index.
func Select(indices []int, nIn int) (*SelectLayer, error) {
	return newSelect("Select", indices, nIn)
}

func newSelect(name string, indices []int, nIn int) (*SelectLayer, error) {
	if nIn == 0 && len(indices) > 0 {
		nIn = slices.Max(indices) + 1
	}
	for _, idx := range indices {
		if idx < 0 || idx >= nIn {
			return nil, fmt.Errorf("%w: select index %d out of range for %d inputs", ErrArity, idx, nIn)
		}
	}
	return &SelectLayer{Base: NewBase(name, nIn, len(indices)), indices: slices.Clone(indices)}, nil
}

func mustSelect(name string, indices []int, nIn int) *SelectLayer {
	l, err := newSelect(name, indices, nIn)
	if err != nil {
		panic(err)
	}
	return l
}

// Indices returns the selection, output order.
func (l *SelectLayer) Indices() []int { return slices.Clone(l.indices) }

// Dup duplicates the top of the stack.
func Dup() *SelectLayer { return mustSelect("Dup", []int{0, 0}, 1) }

// Swap exchanges the top two stack values.
func Swap() *SelectLayer { return mustSelect("Swap", []int{1, 0}, 2) }

// Drop discards the top of the stack.
func Drop() *SelectLayer { return mustSelect("Drop", nil, 1) }

// Identity passes the top of the stack through unchanged.
func Identity() *SelectLayer { return mustSelect("Identity", []int{0}, 1) }

func (l *SelectLayer) Forward(_ context.Context, xs []tensor.Array) ([]tensor.Array, error) {
	if err := checkInputs(l, len(xs)); err != nil {
		return nil, err
	}
	return pick(l.indices, xs), nil
}

func (l *SelectLayer) Setup(in []tensor.Signature, _ tensor.Key, _ *Initializer) ([]tensor.Signature, error) {
	return pick(l.indices, in), nil
}

func pick[T any](indices []int, xs []T) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = xs[idx]
	}
	return out
}

// Branch gives each layer its own copy of the leading inputs it needs and
// runs them side by side. With a single layer it returns that layer.
func Branch(layers ...Layer) (Layer, error) {
	return NewBranch("Branch", layers)
}

// NewBranch is Branch with a name. opts configure the inner Parallel.
func NewBranch(name string, layers []Layer, opts ...ParallelOption) (Layer, error) {
	if len(layers) == 1 && layers[0] != nil {
		return layers[0], nil
	}
	par, err := NewParallel("Parallel", layers, opts...)
	if err != nil {
		return nil, err
	}
	var indices []int
	nIn := 0
	for _, l := range layers {
		for i := range l.NIn() {
			indices = append(indices, i)
		}
		nIn = max(nIn, l.NIn())
	}
	sel, err := Select(indices, nIn)
	if err != nil {
		return nil, err
	}
	return NewSerial(name, sel, par)
}

// Residual adds the input to the output of layers: x + layers(x).
func Residual(layers ...Layer) (Layer, error) {
	var body Layer
	switch len(layers) {
	case 0:
		return nil, fmt.Errorf("%w: residual needs at least one layer", ErrArity)
	case 1:
		body = layers[0]
	default:
		s, err := Serial(layers...)
		if err != nil {
			return nil, err
		}
		body = s
	}
	if body == nil {
		return nil, fmt.Errorf("%w: residual body is nil", ErrArity)
	}
	if body.NOut() != 1 {
		return nil, fmt.Errorf("%w: residual body must return 1 value, returns %d", ErrArity, body.NOut())
	}
	br, err := Branch(Identity(), body)
	if err != nil {
		return nil, err
	}
	return NewSerial("Residual", br, Add())
}
