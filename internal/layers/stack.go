package layers

import "fmt"

// Stack is the last-in-first-out sequence threaded through a composite's
// sublayers. It is used for values during Forward and for signatures during
// initialization.
type Stack[T any] struct {
	items []T // items[len-1] is the top
}

func NewStack[T any](capacity int) *Stack[T] {
	return &Stack[T]{items: make([]T, 0, capacity)}
}

func (s *Stack[T]) Len() int { return len(s.items) }

// Push places xs on the stack so that xs[0] ends up on top.
func (s *Stack[T]) Push(xs ...T) {
	for i := len(xs) - 1; i >= 0; i-- {
		s.items = append(s.items, xs[i])
	}
}

// Pop removes the top n values and returns them top first.
func (s *Stack[T]) Pop(n int) ([]T, error) {
	if n < 0 || n > len(s.items) {
		return nil, fmt.Errorf("%w: pop %d of %d", ErrStackUnderflow, n, len(s.items))
	}
	out := make([]T, n)
	for i := range out {
		out[i] = s.items[len(s.items)-1-i]
	}
	clear(s.items[len(s.items)-n:])
	s.items = s.items[:len(s.items)-n]
	return out, nil
}

// Items returns the stack contents top first without modifying it.
func (s *Stack[T]) Items() []T {
	out := make([]T, len(s.items))
	for i := range out {
		out[i] = s.items[len(s.items)-1-i]
	}
	return out
}
