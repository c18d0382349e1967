package layers

import (
	"context"
	"fmt"

	"github.com/samcharles93/layerstack/internal/tensor"
)

// FnLayer wraps a pure function with fixed arity. It has no weights.
type FnLayer struct {
	*Base
	f func(xs ...tensor.Array) ([]tensor.Array, error)
}

// Fn builds a layer from f, which receives NIn arrays (top of stack first)
// and must return nOut arrays.
func Fn(name string, nIn, nOut int, f func(xs ...tensor.Array) ([]tensor.Array, error)) *FnLayer {
	return &FnLayer{Base: NewBase(name, nIn, nOut), f: f}
}

// Fn1 builds a one-in, one-out layer.
func Fn1(name string, f func(x tensor.Array) tensor.Array) *FnLayer {
	return Fn(name, 1, 1, func(xs ...tensor.Array) ([]tensor.Array, error) {
		return []tensor.Array{f(xs[0])}, nil
	})
}

// Fn2 builds a two-in, one-out layer.
func Fn2(name string, f func(a, b tensor.Array) (tensor.Array, error)) *FnLayer {
	return Fn(name, 2, 1, func(xs ...tensor.Array) ([]tensor.Array, error) {
		y, err := f(xs[0], xs[1])
		if err != nil {
			return nil, err
		}
		return []tensor.Array{y}, nil
	})
}

func (l *FnLayer) Forward(_ context.Context, xs []tensor.Array) ([]tensor.Array, error) {
	if err := checkInputs(l, len(xs)); err != nil {
		return nil, err
	}
	outs, err := l.f(xs...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	if len(outs) != l.NOut() {
		return nil, fmt.Errorf("%w: %s declared %d, returned %d", ErrOutputArity, l.Name(), l.NOut(), len(outs))
	}
	return outs, nil
}

// Setup infers output signatures by evaluating the function on zeros.
func (l *FnLayer) Setup(in []tensor.Signature, _ tensor.Key, _ *Initializer) ([]tensor.Signature, error) {
	zeros := make([]tensor.Array, len(in))
	for i, sig := range in {
		zeros[i] = tensor.Zeros(sig)
	}
	outs, err := l.Forward(context.Background(), zeros)
	if err != nil {
		return nil, err
	}
	return signatures(outs), nil
}
