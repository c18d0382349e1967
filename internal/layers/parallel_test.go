package layers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samcharles93/layerstack/internal/tensor"
)

func TestParallelScalesEachInputIndependently(t *testing.T) {
	t.Parallel()

	p, err := Parallel(Scale(64), Scale(8), Scale(1))
	require.NoError(t, err)
	require.Equal(t, 3, p.NIn())
	require.Equal(t, 3, p.NOut())

	out, err := p.Forward(context.Background(), []tensor.Array{
		tensor.Vector(1, 3, 5),
		tensor.Vector(2, 4, 6),
		tensor.Vector(3, 5, 7),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, []float32{64, 192, 320}, out[0].Data)
	require.Equal(t, []float32{16, 32, 48}, out[1].Data)
	require.Equal(t, []float32{3, 5, 7}, out[2].Data)
}

func TestParallelAppliesLayersInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f, g, h := Relu(), Tanh(), Scale(-1)
	p, err := Parallel(f, g, h)
	require.NoError(t, err)

	a, b, c := tensor.Vector(-1, 2), tensor.Vector(0.5, -0.5), tensor.Vector(4, 0)
	out, err := p.Forward(ctx, []tensor.Array{a, b, c})
	require.NoError(t, err)

	for i, pair := range []struct {
		l Layer
		x tensor.Array
	}{{f, a}, {g, b}, {h, c}} {
		want, err := pair.l.Forward(ctx, []tensor.Array{pair.x})
		require.NoError(t, err)
		require.True(t, out[i].Equal(want[0]), "output %d: got %v want %v", i, out[i], want[0])
	}
}

func TestParallelSpansFollowArity(t *testing.T) {
	t.Parallel()

	p, err := Parallel(Add(), Relu(), Dup())
	require.NoError(t, err)
	require.Equal(t, 4, p.NIn())
	require.Equal(t, 4, p.NOut())

	out, err := p.Forward(context.Background(), []tensor.Array{
		tensor.Vector(1), tensor.Vector(2), tensor.Vector(-3), tensor.Vector(9),
	})
	require.NoError(t, err)
	require.Equal(t, []float32{3}, out[0].Data)
	require.Equal(t, []float32{0}, out[1].Data)
	require.Equal(t, []float32{9}, out[2].Data)
	require.Equal(t, []float32{9}, out[3].Data)
}

func TestParallelConcurrentMatchesSequential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	build := func(opts ...ParallelOption) *ParallelLayer {
		p, err := NewParallel("Parallel", []Layer{Scale(2), Relu(), Tanh(), Mean()}, opts...)
		require.NoError(t, err)
		return p
	}
	key := tensor.NewKey(11)
	keys := key.Split(4)
	xs := []tensor.Array{
		keys[0].Uniform(-1, 1, 4, 3),
		keys[1].Uniform(-1, 1, 4, 3),
		keys[2].Uniform(-1, 1, 4, 3),
		keys[3].Uniform(-1, 1, 4, 3),
	}

	seq, err := build().Forward(ctx, xs)
	require.NoError(t, err)
	conc := build(WithConcurrency(3))
	require.Equal(t, 3, conc.Concurrency())
	got, err := conc.Forward(ctx, xs)
	require.NoError(t, err)
	require.Len(t, got, len(seq))
	for i := range seq {
		require.True(t, seq[i].Equal(got[i]), "output %d differs", i)
	}
}

func TestParallelConcurrentPropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	failing := Fn("Fail", 1, 1, func(xs ...tensor.Array) ([]tensor.Array, error) {
		return nil, boom
	})
	p, err := NewParallel("Parallel", []Layer{Relu(), failing}, WithConcurrency(2))
	require.NoError(t, err)

	_, err = p.Forward(context.Background(), []tensor.Array{tensor.Vector(1), tensor.Vector(2)})
	require.ErrorIs(t, err, boom)
}

func TestParallelWrongInputCount(t *testing.T) {
	t.Parallel()

	p, err := Parallel(Relu(), Relu())
	require.NoError(t, err)
	_, err = p.Forward(context.Background(), []tensor.Array{tensor.Vector(1)})
	require.ErrorIs(t, err, ErrArity)
}
