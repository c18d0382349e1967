package tensor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrShape = errors.New("tensor: shape mismatch")
	ErrDType = errors.New("tensor: unsupported dtype")
)

// Array is a dense row-major float32 array of arbitrary rank.
//
// A rank-0 array (empty Shape) holds a single scalar. Data is shared between
// copies of the struct; use Clone when an independent buffer is needed.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// New allocates a zero-filled array with the given shape.
func New(shape ...int) Array {
	n := numel(shape)
	if n < 0 {
		panic("negative dimension for array")
	}
	return Array{Shape: slices.Clone(shape), Data: make([]float32, n)}
}

// FromSlice copies data into a new array with the given shape.
func FromSlice(data []float32, shape ...int) (Array, error) {
	n := numel(shape)
	if n < 0 {
		return Array{}, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
	}
	if n != len(data) {
		return Array{}, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return Array{Shape: slices.Clone(shape), Data: slices.Clone(data)}, nil
}

// MustFromSlice is FromSlice for literals known to be well formed.
func MustFromSlice(data []float32, shape ...int) Array {
	a, err := FromSlice(data, shape...)
	if err != nil {
		panic(err)
	}
	return a
}

// Vector returns a rank-1 array holding a copy of vals.
func Vector(vals ...float32) Array {
	return MustFromSlice(vals, len(vals))
}

// Scalar returns a rank-0 array.
func Scalar(v float32) Array {
	return Array{Shape: []int{}, Data: []float32{v}}
}

// Zeros allocates an array matching the signature.
func Zeros(sig Signature) Array {
	return New(sig.Shape...)
}

func (a Array) Size() int { return len(a.Data) }

func (a Array) Rank() int { return len(a.Shape) }

// Signature describes the array's shape and dtype.
func (a Array) Signature() Signature {
	return Signature{Shape: slices.Clone(a.Shape), DType: DTypeF32}
}

func (a Array) Clone() Array {
	return Array{Shape: slices.Clone(a.Shape), Data: slices.Clone(a.Data)}
}

func (a Array) ShapeEqual(b Array) bool {
	return slices.Equal(a.Shape, b.Shape)
}

// Equal reports whether both arrays have the same shape and identical values.
func (a Array) Equal(b Array) bool {
	return a.ShapeEqual(b) && slices.Equal(a.Data, b.Data)
}

func (a Array) String() string {
	var b strings.Builder
	b.WriteString("Array")
	b.WriteString(shapeString(a.Shape))
	b.WriteString(fmt.Sprint(a.Data))
	return b.String()
}

// Mat returns a 2-D view of a, folding every leading axis into rows.
// Rank-0 and rank-1 arrays become a single row.
func (a Array) Mat() Mat {
	c := 1
	if len(a.Shape) > 0 {
		c = a.Shape[len(a.Shape)-1]
	}
	r := 0
	if c > 0 {
		r = len(a.Data) / c
	}
	return Mat{R: r, C: c, Stride: c, Data: a.Data}
}

// Mat represents a dense row‑major matrix of float32 values.
//
// R and C represent the number of rows and columns respectively. Stride is the
// number of elements between the starts of two consecutive rows (for row‑major
// matrices this is equal to C).
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a new zero-initialised matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{R: r, C: c, Stride: c, Data: make([]float32, r*c)}
}

// Row returns a view of the i‑th row of the matrix. Modifications to the
// returned slice update the underlying matrix values.
func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
