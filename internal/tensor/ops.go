package tensor

import (
	"fmt"
	"math"
)

// Map applies f element-wise and returns a new array.
func Map(a Array, f func(float32) float32) Array {
	out := Array{Shape: append([]int(nil), a.Shape...), Data: make([]float32, len(a.Data))}
	for i, v := range a.Data {
		out.Data[i] = f(v)
	}
	return out
}

// Add returns a + b. b may also be a trailing suffix of a's shape, in which
// case it is broadcast over the leading axes (bias addition).
func Add(a, b Array) (Array, error) {
	return zip(a, b, "add", func(x, y float32) float32 { return x + y })
}

// Multiply returns the element-wise product a * b with the same broadcasting
// rule as Add.
func Multiply(a, b Array) (Array, error) {
	return zip(a, b, "multiply", func(x, y float32) float32 { return x * y })
}

// Scale multiplies every element by c.
func Scale(a Array, c float32) Array {
	return Map(a, func(v float32) float32 { return v * c })
}

func Relu(a Array) Array {
	return Map(a, func(v float32) float32 { return max(v, 0) })
}

func Tanh(a Array) Array {
	return Map(a, func(v float32) float32 { return float32(math.Tanh(float64(v))) })
}

func SigmoidArray(a Array) Array {
	return Map(a, Sigmoid)
}

// Sigmoid computes the logistic sigmoid activation.
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}

// Mean averages over the last axis, dropping it. A rank-0 input is returned
// unchanged.
func Mean(a Array) Array {
	if a.Rank() == 0 {
		return a.Clone()
	}
	m := a.Mat()
	out := New(a.Shape[:len(a.Shape)-1]...)
	if m.C == 0 {
		return out
	}
	for i := 0; i < m.R; i++ {
		var sum float32
		for _, v := range m.Row(i) {
			sum += v
		}
		out.Data[i] = sum / float32(m.C)
	}
	return out
}

// MatMul contracts the last axis of x with the first axis of w, which must be
// a matrix. The result has x's leading axes followed by w's columns.
func MatMul(x, w Array) (Array, error) {
	if w.Rank() != 2 {
		return Array{}, fmt.Errorf("%w: matmul weight must be rank 2, got %v", ErrShape, w.Shape)
	}
	if x.Rank() == 0 || x.Shape[x.Rank()-1] != w.Shape[0] {
		return Array{}, fmt.Errorf("%w: matmul %v x %v", ErrShape, x.Shape, w.Shape)
	}
	shape := append(append([]int(nil), x.Shape[:x.Rank()-1]...), w.Shape[1])
	out := New(shape...)
	if w.Shape[0] == 0 || out.Size() == 0 {
		return out, nil
	}
	xm, wm, om := x.Mat(), w.Mat(), out.Mat()
	workers := 1
	if xm.R*xm.C*wm.C >= gemmParallelThreshold {
		workers = 0
	}
	GemmPar(&om, &xm, &wm, 1, 0, workers)
	return out, nil
}

func zip(a, b Array, op string, f func(x, y float32) float32) (Array, error) {
	if a.ShapeEqual(b) {
		out := New(a.Shape...)
		for i := range a.Data {
			out.Data[i] = f(a.Data[i], b.Data[i])
		}
		return out, nil
	}
	if !isSuffix(b.Shape, a.Shape) || b.Size() == 0 {
		return Array{}, fmt.Errorf("%w: cannot %s %v and %v", ErrShape, op, a.Shape, b.Shape)
	}
	out := New(a.Shape...)
	n := b.Size()
	for i := range a.Data {
		out.Data[i] = f(a.Data[i], b.Data[i%n])
	}
	return out, nil
}

func isSuffix(suffix, shape []int) bool {
	if len(suffix) > len(shape) {
		return false
	}
	off := len(shape) - len(suffix)
	for i, d := range suffix {
		if shape[off+i] != d {
			return false
		}
	}
	return true
}
