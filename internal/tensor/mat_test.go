package tensor

import (
	"errors"
	"math"
	"testing"
)

func matMulNaive(x, w Mat) Mat {
	out := NewMat(x.R, w.C)
	for i := 0; i < x.R; i++ {
		for j := 0; j < w.C; j++ {
			var sum float32
			for kk := 0; kk < x.C; kk++ {
				sum += x.Row(i)[kk] * w.Row(kk)[j]
			}
			out.Row(i)[j] = sum
		}
	}
	return out
}

func TestMatMulMatchesNaive(t *testing.T) {
	t.Parallel()

	x := NewKey(1).Uniform(-1, 1, 2, 7, 11)
	w := NewKey(2).Uniform(-1, 1, 11, 5)

	got, err := MatMul(x, w)
	if err != nil {
		t.Fatalf("matmul: %v", err)
	}
	if want := []int{2, 7, 5}; !(Array{Shape: want}).ShapeEqual(got) {
		t.Fatalf("shape: got %v want %v", got.Shape, want)
	}
	ref := matMulNaive(x.Mat(), w.Mat())
	if d := maxAbsDiff(got.Data, ref.Data); d > 1e-5 {
		t.Fatalf("max abs diff %g", d)
	}
}

func TestMatMulRejectsMismatch(t *testing.T) {
	t.Parallel()

	_, err := MatMul(New(3, 4), New(5, 2))
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestFromSliceChecksLength(t *testing.T) {
	t.Parallel()

	if _, err := FromSlice([]float32{1, 2, 3}, 2, 2); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	src := []float32{1, 2, 3, 4}
	a, err := FromSlice(src, 2, 2)
	if err != nil {
		t.Fatalf("from slice: %v", err)
	}
	src[0] = 99
	if a.Data[0] != 1 {
		t.Fatalf("FromSlice must copy its input")
	}
}

func TestAddBroadcastsTrailingShape(t *testing.T) {
	t.Parallel()

	a := MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := Vector(10, 20, 30)
	got, err := Add(a, b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	want := MustFromSlice([]float32{11, 22, 33, 14, 25, 36}, 2, 3)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	if _, err := Add(a, Vector(1, 2)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestMeanDropsLastAxis(t *testing.T) {
	t.Parallel()

	got := Mean(MustFromSlice([]float32{1, 2, 3, 4, 6, 8}, 2, 3))
	want := MustFromSlice([]float32{2, 6}, 2)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestKeySplitDeterministic(t *testing.T) {
	t.Parallel()

	a := NewKey(7).Split(3)
	b := NewKey(7).Split(3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("split %d differs between equal keys", i)
		}
	}
	if a[0] == a[1] || a[1] == a[2] || a[0] == NewKey(7) {
		t.Fatalf("child keys must differ: %v", a)
	}

	x := a[0].Normal(1, 4, 4)
	y := a[0].Normal(1, 4, 4)
	if !x.Equal(y) {
		t.Fatalf("normal draws from equal keys differ")
	}
}

func TestGlorotUniformBounds(t *testing.T) {
	t.Parallel()

	w := NewKey(3).GlorotUniform(6, 10)
	limit := float32(math.Sqrt(6.0 / 16.0))
	for i, v := range w.Data {
		if v < -limit || v > limit {
			t.Fatalf("value %d = %f outside [-%f, %f]", i, v, limit, limit)
		}
	}
}

func TestParseDType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want DType
		err  bool
	}{
		{in: "", want: DTypeF32},
		{in: "f32", want: DTypeF32},
		{in: "BF16", want: DTypeBF16},
		{in: "int8", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDType(tt.in)
			if tt.err {
				if !errors.Is(err, ErrDType) {
					t.Fatalf("expected ErrDType, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseDType(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}
