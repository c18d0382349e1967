package modeldef

import (
	"context"
	"fmt"
	"strings"

	"github.com/samcharles93/layerstack/internal/layers"
	"github.com/samcharles93/layerstack/internal/tensor"
)

// Model is a built definition: the root layer plus what is needed to
// initialize it.
type Model struct {
	Name   string
	Seed   uint64
	Inputs []tensor.Signature
	Root   layers.Layer
}

// Init creates the model's weights from its seed. Layers that already hold
// weights, for example from a checkpoint, keep them.
func (m *Model) Init(ctx context.Context) (*layers.Tree, []tensor.Signature, error) {
	return layers.Init(ctx, m.Root, m.Inputs, tensor.NewKey(m.Seed))
}

// Build turns a definition into layers. Arity problems are reported here,
// before anything runs.
func Build(def *Definition) (*Model, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalid)
	}
	for i, sig := range def.Inputs {
		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("%w: inputs[%d]: %v", ErrInvalid, i, err)
		}
	}
	b := &builder{
		def:      def,
		shared:   make(map[string]layers.Layer),
		building: make(map[string]bool),
	}
	root, err := b.build(def.Model, "model")
	if err != nil {
		return nil, err
	}
	if err := layers.CheckArity(root, len(def.Inputs)); err != nil {
		return nil, fmt.Errorf("model declares %d inputs: %w", len(def.Inputs), err)
	}
	name := def.Name
	if name == "" {
		name = root.Name()
	}
	var seed uint64
	if def.Seed != nil {
		seed = *def.Seed
	}
	return &Model{Name: name, Seed: seed, Inputs: def.Inputs, Root: root}, nil
}

type builder struct {
	def      *Definition
	shared   map[string]layers.Layer
	building map[string]bool
}

func (b *builder) build(n Node, path string) (layers.Layer, error) {
	if n.Ref != "" {
		if n.Kind != "" || len(n.Layers) > 0 {
			return nil, fmt.Errorf("%w: %s: ref nodes take no other fields", ErrInvalid, path)
		}
		return b.ref(n.Ref, path)
	}
	return b.node(n, path)
}

func (b *builder) ref(name, path string) (layers.Layer, error) {
	if l, ok := b.shared[name]; ok {
		return l, nil
	}
	node, ok := b.def.Shared[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s: %q", ErrMissingRef, path, name)
	}
	if b.building[name] {
		return nil, fmt.Errorf("%w: %s: %q", ErrRecursiveRef, path, name)
	}
	b.building[name] = true
	l, err := b.build(node, "shared."+name)
	delete(b.building, name)
	if err != nil {
		return nil, err
	}
	b.shared[name] = l
	return l, nil
}

func (b *builder) node(n Node, path string) (layers.Layer, error) {
	kind := strings.ToLower(n.Kind)
	if n.Concurrency != 0 && kind != "parallel" && kind != "branch" {
		return nil, fmt.Errorf("%w: %s: concurrency applies to parallel and branch nodes, not %q", ErrInvalid, path, n.Kind)
	}
	if n.Name != "" && kind != "serial" && kind != "parallel" && kind != "branch" {
		return nil, fmt.Errorf("%w: %s: only serial, parallel and branch nodes take a name", ErrInvalid, path)
	}
	switch kind {
	case "serial", "parallel", "branch", "residual":
		return b.combinator(kind, n, path)
	case "dense":
		if n.Units <= 0 {
			return nil, fmt.Errorf("%w: %s: dense needs positive units", ErrInvalid, path)
		}
		return layers.Dense(n.Units), nil
	case "select":
		l, err := layers.Select(n.Indices, n.NIn)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return l, nil
	case "scale":
		return layers.Scale(n.Factor), nil
	case "":
		return nil, fmt.Errorf("%w: %s: missing kind", ErrInvalid, path)
	}
	if ctor, ok := leafKinds[kind]; ok {
		return ctor(), nil
	}
	return nil, fmt.Errorf("%w: %s: %q", ErrUnknownKind, path, n.Kind)
}

var leafKinds = map[string]func() layers.Layer{
	"dup":      func() layers.Layer { return layers.Dup() },
	"swap":     func() layers.Layer { return layers.Swap() },
	"drop":     func() layers.Layer { return layers.Drop() },
	"identity": func() layers.Layer { return layers.Identity() },
	"relu":     func() layers.Layer { return layers.Relu() },
	"tanh":     func() layers.Layer { return layers.Tanh() },
	"sigmoid":  func() layers.Layer { return layers.Sigmoid() },
	"mean":     func() layers.Layer { return layers.Mean() },
	"add":      func() layers.Layer { return layers.Add() },
	"multiply": func() layers.Layer { return layers.Multiply() },
	"counter":  func() layers.Layer { return layers.Counter() },
}

func (b *builder) combinator(kind string, n Node, path string) (layers.Layer, error) {
	subs := make([]layers.Layer, len(n.Layers))
	for i, child := range n.Layers {
		l, err := b.build(child, fmt.Sprintf("%s.layers[%d]", path, i))
		if err != nil {
			return nil, err
		}
		subs[i] = l
	}

	var (
		l   layers.Layer
		err error
	)
	switch kind {
	case "serial":
		l, err = layers.NewSerial(nameOr(n.Name, "Serial"), subs...)
	case "parallel":
		l, err = layers.NewParallel(nameOr(n.Name, "Parallel"), subs, layers.WithConcurrency(n.Concurrency))
	case "branch":
		l, err = layers.NewBranch(nameOr(n.Name, "Branch"), subs, layers.WithConcurrency(n.Concurrency))
	case "residual":
		l, err = layers.Residual(subs...)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
