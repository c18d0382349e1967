package modeldef

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samcharles93/layerstack/internal/layers"
	"github.com/samcharles93/layerstack/internal/tensor"
)

func TestLoadYAMLWithSharedLayer(t *testing.T) {
	t.Parallel()

	def, err := Load(filepath.Join("testdata", "shared_mlp.yaml"))
	require.NoError(t, err)
	require.Equal(t, "shared-mlp", def.Name)
	require.NotNil(t, def.Seed)
	require.Equal(t, uint64(7), *def.Seed)
	require.Len(t, def.Inputs, 1)
	require.Equal(t, tensor.DTypeF32, def.Inputs[0].DType)

	m, err := Build(def)
	require.NoError(t, err)
	require.Equal(t, 1, m.Root.NIn())
	require.Equal(t, 1, m.Root.NOut())

	subs := m.Root.Sublayers()
	require.Len(t, subs, 4)
	require.Same(t, subs[0], subs[2], "refs to one shared name resolve to one instance")

	tree, out, err := m.Init(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, out[0].Shape)
	require.True(t, tree.Children[2].Shared)
	// proj (16 + 4) and the residual dense (16 + 4).
	require.Equal(t, 40, tree.NumParams())
}

func TestLoadJSONParallel(t *testing.T) {
	t.Parallel()

	def, err := Load(filepath.Join("testdata", "scales.json"))
	require.NoError(t, err)
	require.Nil(t, def.Seed)
	m, err := Build(def)
	require.NoError(t, err)

	par, ok := m.Root.(*layers.ParallelLayer)
	require.True(t, ok)
	require.Equal(t, 2, par.Concurrency())

	_, _, err = m.Init(context.Background())
	require.NoError(t, err)
	out, err := m.Root.Forward(context.Background(), []tensor.Array{
		tensor.Vector(1, 3, 5),
		tensor.Vector(2, 4, 6),
		tensor.Vector(3, 5, 7),
	})
	require.NoError(t, err)
	require.Equal(t, []float32{64, 192, 320}, out[0].Data)
	require.Equal(t, []float32{16, 32, 48}, out[1].Data)
	require.Equal(t, []float32{3, 5, 7}, out[2].Data)
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "unknown kind",
			src:  "inputs: [{shape: [2]}]\nmodel: {kind: softmaxx}",
			want: ErrUnknownKind,
		},
		{
			name: "missing ref",
			src:  "inputs: [{shape: [2]}]\nmodel: {ref: nope}",
			want: ErrMissingRef,
		},
		{
			name: "recursive ref",
			src:  "inputs: [{shape: [2]}]\nshared:\n  loop: {kind: serial, layers: [{ref: loop}]}\nmodel: {ref: loop}",
			want: ErrRecursiveRef,
		},
		{
			name: "input count",
			src:  "inputs: [{shape: [2]}]\nmodel: {kind: add}",
			want: layers.ErrArity,
		},
		{
			name: "bad select",
			src:  "inputs: [{shape: [2]}]\nmodel: {kind: select, indices: [3], n_in: 1}",
			want: layers.ErrArity,
		},
		{
			name: "dense without units",
			src:  "inputs: [{shape: [2]}]\nmodel: {kind: dense}",
			want: ErrInvalid,
		},
		{
			name: "unknown field",
			src:  "inputs: [{shape: [2]}]\nmodel: {kind: relu, unit: 3}",
			want: ErrInvalid,
		},
		{
			name: "concurrency on serial",
			src:  "inputs: [{shape: [2]}]\nmodel: {kind: serial, concurrency: 2, layers: [{kind: relu}]}",
			want: ErrInvalid,
		},
		{
			name: "name on leaf",
			src:  "inputs: [{shape: [2]}]\nmodel: {kind: relu, name: act}",
			want: ErrInvalid,
		},
		{
			name: "bad dtype",
			src:  "inputs: [{shape: [2], dtype: int4}]\nmodel: {kind: relu}",
			want: ErrInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse([]byte(tt.src), "yaml")
			if err == nil {
				_, err = Build(def)
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSetDefaultConcurrency(t *testing.T) {
	t.Parallel()

	src := `
inputs: [{shape: [1]}, {shape: [1]}, {shape: [1]}]
shared:
  pair: {kind: parallel, layers: [{kind: relu}, {kind: tanh}]}
model:
  kind: parallel
  concurrency: 1
  layers:
    - {kind: relu}
    - {ref: pair}
`
	def, err := Parse([]byte(src), "yaml")
	require.NoError(t, err)
	def.SetDefaultConcurrency(4)
	require.Equal(t, 1, def.Model.Concurrency, "explicit settings win")
	require.Equal(t, 4, def.Shared["pair"].Concurrency)

	m, err := Build(def)
	require.NoError(t, err)
	inner, ok := m.Root.Sublayers()[1].(*layers.ParallelLayer)
	require.True(t, ok)
	require.Equal(t, 4, inner.Concurrency())
}

func TestBranchNodeHonoursNameAndConcurrency(t *testing.T) {
	t.Parallel()

	src := `
inputs: [{shape: [2]}]
model:
  kind: serial
  layers:
    - kind: branch
      name: Heads
      concurrency: 2
      layers: [{kind: relu}, {kind: tanh}]
    - kind: branch
      layers: [{kind: identity}, {kind: identity}]
`
	def, err := Parse([]byte(src), "yaml")
	require.NoError(t, err)
	def.SetDefaultConcurrency(3)

	m, err := Build(def)
	require.NoError(t, err)
	subs := m.Root.Sublayers()
	require.Equal(t, "Heads", subs[0].Name())

	innerConcurrency := func(l layers.Layer) int {
		par, ok := l.Sublayers()[1].(*layers.ParallelLayer)
		require.True(t, ok)
		return par.Concurrency()
	}
	require.Equal(t, 2, innerConcurrency(subs[0]))
	require.Equal(t, 3, innerConcurrency(subs[1]), "the default reaches branches without their own setting")
}
