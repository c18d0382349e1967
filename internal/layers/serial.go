package layers

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/layerstack/internal/tensor"
)

// SerialLayer runs its sublayers one after another over a shared data stack.
type SerialLayer struct {
	*Base
	layers []Layer
}

// Serial composes layers under the default name.
func Serial(layers ...Layer) (*SerialLayer, error) {
	return NewSerial("Serial", layers...)
}

// NewSerial composes layers. The composite takes as many inputs as the
// deepest stack demand of any prefix of layers and returns whatever is left
// on the stack afterwards.
func NewSerial(name string, layers ...Layer) (*SerialLayer, error) {
	if err := validateSublayers(name, layers); err != nil {
		return nil, err
	}
	nIn, nOut := serialArity(layers)
	return &SerialLayer{Base: NewBase(name, nIn, nOut), layers: slices.Clone(layers)}, nil
}

func (s *SerialLayer) Sublayers() []Layer { return slices.Clone(s.layers) }

func (s *SerialLayer) Forward(ctx context.Context, xs []tensor.Array) ([]tensor.Array, error) {
	if err := CheckArity(s, len(xs)); err != nil {
		return nil, err
	}
	stack := NewStack[tensor.Array](len(xs))
	stack.Push(xs...)
	for i, l := range s.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		args, err := stack.Pop(l.NIn())
		if err != nil {
			return nil, s.underflow(i, l, stack.Len(), err)
		}
		outs, err := l.Forward(ctx, args)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", s.Name(), i, err)
		}
		if len(outs) != l.NOut() {
			return nil, fmt.Errorf("%w: %s[%d] %s declared %d, returned %d", ErrOutputArity, s.Name(), i, l.Name(), l.NOut(), len(outs))
		}
		stack.Push(outs...)
	}
	return stack.Items(), nil
}

func (s *SerialLayer) Setup(in []tensor.Signature, key tensor.Key, init *Initializer) ([]tensor.Signature, error) {
	keys := key.Split(len(s.layers))
	stack := NewStack[tensor.Signature](len(in))
	stack.Push(in...)
	for i, l := range s.layers {
		args, err := stack.Pop(l.NIn())
		if err != nil {
			return nil, s.underflow(i, l, stack.Len(), err)
		}
		out, err := init.Init(l, args, keys[i])
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", s.Name(), i, err)
		}
		stack.Push(out...)
	}
	return stack.Items(), nil
}

func (s *SerialLayer) underflow(i int, l Layer, have int, err error) error {
	return errors.Join(&ArityError{Layer: l.Name(), Index: i, Need: l.NIn(), Have: have}, err)
}

// serialArity tracks the running stack depth over layers: the composite
// needs the maximum depth reached and returns what remains.
func serialArity(layers []Layer) (nIn, nOut int) {
	running, deepest := 0, 0
	for _, l := range layers {
		running += l.NIn()
		deepest = max(deepest, running)
		running -= l.NOut()
	}
	return deepest, deepest - running
}

func validateSublayers(name string, layers []Layer) error {
	for i, l := range layers {
		if l == nil {
			return fmt.Errorf("%w: %s sublayer %d is nil", ErrArity, name, i)
		}
		if l.NIn() < 0 || l.NOut() < 0 {
			return fmt.Errorf("%w: %s sublayer %d (%s) declares %d inputs and %d outputs", ErrArity, name, i, l.Name(), l.NIn(), l.NOut())
		}
	}
	return nil
}

// CheckArity verifies, without running any layer body, that a stack holding
// available values can feed l and, recursively, every sublayer of l.
func CheckArity(l Layer, available int) error {
	if available != l.NIn() {
		return &ArityError{Layer: l.Name(), Index: -1, Need: l.NIn(), Have: available}
	}
	switch c := l.(type) {
	case *SerialLayer:
		depth := available
		for i, sub := range c.layers {
			if depth < sub.NIn() {
				return &ArityError{Layer: sub.Name(), Index: i, Need: sub.NIn(), Have: depth}
			}
			if err := CheckArity(sub, sub.NIn()); err != nil {
				return fmt.Errorf("%s[%d]: %w", c.Name(), i, err)
			}
			depth += sub.NOut() - sub.NIn()
		}
	case *ParallelLayer:
		for i, sub := range c.layers {
			if err := CheckArity(sub, sub.NIn()); err != nil {
				return fmt.Errorf("%s[%d]: %w", c.Name(), i, err)
			}
		}
	}
	return nil
}
