package layers

import (
	"context"
	"fmt"

	"github.com/samcharles93/layerstack/internal/tensor"
)

// DenseLayer is a fully connected layer: y = x·w + b over the last axis.
type DenseLayer struct {
	*Base
	units int
}

// Dense returns a fully connected layer with the given output width. Its
// weights are sized from the input signature at Init time.
func Dense(units int) *DenseLayer {
	return &DenseLayer{Base: NewBase(fmt.Sprintf("Dense_%d", units), 1, 1), units: units}
}

func (l *DenseLayer) Units() int { return l.units }

func (l *DenseLayer) Setup(in []tensor.Signature, key tensor.Key, _ *Initializer) ([]tensor.Signature, error) {
	sig := in[0]
	if len(sig.Shape) == 0 {
		return nil, fmt.Errorf("%w: %s needs at least rank 1 input, got %s", tensor.ErrShape, l.Name(), sig)
	}
	if l.units <= 0 {
		return nil, fmt.Errorf("%w: %s has %d units", ErrWeightShape, l.Name(), l.units)
	}
	inDim := sig.Shape[len(sig.Shape)-1]
	_, err := l.InitWeights(func() ([]Param, []Param, error) {
		keys := key.Split(2)
		return []Param{
			{Name: "w", Value: keys[0].GlorotUniform(inDim, l.units)},
			{Name: "b", Value: keys[1].Normal(1e-6, l.units)},
		}, nil, nil
	})
	if err != nil {
		return nil, err
	}
	if w, ok := l.Param("w"); !ok || w.Rank() != 2 || w.Shape[0] != inDim || w.Shape[1] != l.units {
		return nil, fmt.Errorf("%w: %s weights %v for input %s", ErrWeightShape, l.Name(), w.Shape, sig)
	}
	out := tensor.Signature{Shape: append(append([]int(nil), sig.Shape[:len(sig.Shape)-1]...), l.units), DType: sig.DType}
	return []tensor.Signature{out}, nil
}

func (l *DenseLayer) Forward(_ context.Context, xs []tensor.Array) ([]tensor.Array, error) {
	if err := checkInputs(l, len(xs)); err != nil {
		return nil, err
	}
	w, okW := l.Param("w")
	b, okB := l.Param("b")
	if !okW || !okB {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, l.Name())
	}
	y, err := tensor.MatMul(xs[0], w)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	y, err = tensor.Add(y, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	return []tensor.Array{y}, nil
}

// CounterLayer passes its input through and counts forward calls in its
// state. The count survives checkpoints like any other state value.
type CounterLayer struct {
	*Base
}

func Counter() *CounterLayer {
	return &CounterLayer{Base: NewBase("Counter", 1, 1)}
}

func (l *CounterLayer) Setup(in []tensor.Signature, _ tensor.Key, _ *Initializer) ([]tensor.Signature, error) {
	if _, err := l.InitWeights(func() ([]Param, []Param, error) {
		return nil, []Param{{Name: "count", Value: tensor.Scalar(0)}}, nil
	}); err != nil {
		return nil, err
	}
	return []tensor.Signature{in[0]}, nil
}

func (l *CounterLayer) Forward(_ context.Context, xs []tensor.Array) ([]tensor.Array, error) {
	if err := checkInputs(l, len(xs)); err != nil {
		return nil, err
	}
	err := l.UpdateState("count", func(c tensor.Array) tensor.Array {
		return tensor.Scalar(c.Data[0] + 1)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Name(), err)
	}
	return []tensor.Array{xs[0]}, nil
}

// Count returns how many times Forward has run.
func (l *CounterLayer) Count() int {
	c, ok := l.StateValue("count")
	if !ok || c.Size() == 0 {
		return 0
	}
	return int(c.Data[0])
}

func Relu() *FnLayer { return Fn1("Relu", tensor.Relu) }

func Tanh() *FnLayer { return Fn1("Tanh", tensor.Tanh) }

func Sigmoid() *FnLayer { return Fn1("Sigmoid", tensor.SigmoidArray) }

// Mean averages over the last axis.
func Mean() *FnLayer { return Fn1("Mean", tensor.Mean) }

func Add() *FnLayer { return Fn2("Add", tensor.Add) }

func Multiply() *FnLayer { return Fn2("Multiply", tensor.Multiply) }

// Scale multiplies its input by a constant.
func Scale(c float32) *FnLayer {
	return Fn1(fmt.Sprintf("Scale_%g", c), func(x tensor.Array) tensor.Array {
		return tensor.Scale(x, c)
	})
}
