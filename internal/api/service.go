package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samcharles93/layerstack/internal/layers"
	"github.com/samcharles93/layerstack/internal/logger"
	"github.com/samcharles93/layerstack/internal/modeldef"
	"github.com/samcharles93/layerstack/internal/tensor"
)

// ModelService serves one initialized model. The model can be replaced
// while requests are in flight; each request sees either the old or the new
// model in full.
type ModelService struct {
	mu    sync.RWMutex
	model *loadedModel
}

type loadedModel struct {
	name        string
	root        layers.Layer
	inputs      []tensor.Signature
	outputs     []tensor.Signature
	description string
	numParams   int
}

// NewModelService initializes m (keeping any weights it already holds) and
// serves it.
func NewModelService(ctx context.Context, m *modeldef.Model) (*ModelService, error) {
	s := &ModelService{}
	if err := s.Replace(ctx, m); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace swaps in a new model.
func (s *ModelService) Replace(ctx context.Context, m *modeldef.Model) error {
	if m == nil || m.Root == nil {
		return errors.New("api: nil model")
	}
	tree, outs, err := m.Init(ctx)
	if err != nil {
		return fmt.Errorf("init model %s: %w", m.Name, err)
	}
	lm := &loadedModel{
		name:        m.Name,
		root:        m.Root,
		inputs:      slices.Clone(m.Inputs),
		outputs:     outs,
		description: layers.Describe(m.Root),
		numParams:   tree.NumParams(),
	}
	s.mu.Lock()
	s.model = lm
	s.mu.Unlock()
	logger.FromContext(ctx).Info("model loaded", "name", lm.name, "n_in", m.Root.NIn(), "n_out", m.Root.NOut(), "params", lm.numParams)
	return nil
}

func (s *ModelService) current() *loadedModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *ModelService) Info() ModelResponse {
	m := s.current()
	return ModelResponse{
		Object:      "model",
		Name:        m.name,
		NIn:         m.root.NIn(),
		NOut:        m.root.NOut(),
		Inputs:      m.inputs,
		Outputs:     m.outputs,
		Description: m.description,
		NumParams:   m.numParams,
	}
}

// Apply checks inputs against the model's input signatures and runs it.
// Input problems are *InputError values wrapping ErrInvalidInput.
func (s *ModelService) Apply(ctx context.Context, inputs []tensor.Array) (string, []tensor.Array, error) {
	m := s.current()
	if len(inputs) != len(m.inputs) {
		return m.name, nil, inputError(-1, "model %s takes %d inputs, got %d", m.name, len(m.inputs), len(inputs))
	}
	xs := make([]tensor.Array, len(inputs))
	for i, in := range inputs {
		x, err := tensor.FromSlice(in.Data, in.Shape...)
		if err != nil {
			return m.name, nil, inputError(i, "%v", err)
		}
		if !x.Signature().Equal(m.inputs[i]) {
			return m.name, nil, inputError(i, "shape %v, model expects %s", x.Shape, m.inputs[i])
		}
		xs[i] = x
	}
	out, err := m.root.Forward(ctx, xs)
	if err != nil {
		if errors.Is(err, layers.ErrArity) || errors.Is(err, tensor.ErrShape) {
			return m.name, nil, inputError(-1, "%v", err)
		}
		return m.name, nil, err
	}
	return m.name, out, nil
}
