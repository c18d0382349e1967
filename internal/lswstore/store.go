package lswstore

import (
	"fmt"
	"strings"

	"github.com/samcharles93/layerstack/internal/layers"
	"github.com/samcharles93/layerstack/pkg/lsw"
)

// Save writes the parameters and state of every distinct layer under l to
// path. A layer instance reached from several positions is stored once,
// under the path of its first occurrence. Unset arity fields of info are
// filled from l.
func Save(path string, l layers.Layer, info lsw.ModelInfo) error {
	var tensors []lsw.Tensor
	err := layers.Walk(l, func(p string, sub layers.Layer) error {
		params, state := layers.Weights(sub)
		for _, w := range params {
			tensors = append(tensors, lsw.Tensor{
				Name:  layers.WeightName(p, sub, w.Name),
				Kind:  lsw.KindParam,
				Shape: w.Value.Shape,
				Data:  w.Value.Data,
			})
		}
		for _, w := range state {
			tensors = append(tensors, lsw.Tensor{
				Name:  layers.WeightName(p, sub, w.Name),
				Kind:  lsw.KindState,
				Shape: w.Value.Shape,
				Data:  w.Value.Data,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if info.NIn == 0 && info.NOut == 0 {
		info.NIn, info.NOut = l.NIn(), l.NOut()
	}
	if info.Structure == "" {
		info.Structure = layers.Describe(l)
	}
	return lsw.WriteFile(path, info, tensors)
}

// Load opens the checkpoint at path and installs its tensors into l.
//
// For a layer that already holds weights, typically from Init, every
// parameter and state value must be present with the same shape. A layer
// without weights takes whatever the checkpoint has for it. Checkpoint
// tensors that belong to no layer are an error.
func Load(path string, l layers.Layer) (lsw.ModelInfo, error) {
	f, err := Open(path)
	if err != nil {
		return lsw.ModelInfo{}, err
	}
	defer func() { _ = f.Close() }()

	if err := f.Apply(l); err != nil {
		return lsw.ModelInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return f.Info(), nil
}

// Apply installs the checkpoint's tensors into l. See Load. Nothing is
// installed unless every layer matches the checkpoint.
func (f *File) Apply(l layers.Layer) error {
	used := make(map[string]bool, len(f.index.Tensors))
	var pending []staged
	err := layers.Walk(l, func(p string, sub layers.Layer) error {
		params, state := layers.Weights(sub)
		if len(params)+len(state) == 0 {
			st, err := f.adopt(p, sub, used)
			if err != nil {
				return err
			}
			if len(st.params)+len(st.state) > 0 {
				pending = append(pending, st)
			}
			return nil
		}
		var err error
		if params, err = f.replace(p, sub, params, lsw.KindParam, used); err != nil {
			return err
		}
		if state, err = f.replace(p, sub, state, lsw.KindState, used); err != nil {
			return err
		}
		pending = append(pending, staged{layer: sub, params: params, state: state})
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range f.index.Tensors {
		if !used[e.Name] {
			return fmt.Errorf("%w: %s", ErrUnexpectedTensor, e.Name)
		}
	}
	for _, st := range pending {
		layers.SetWeights(st.layer, st.params, st.state)
	}
	return nil
}

// staged holds weights read for one layer until the whole checkpoint has
// been checked.
type staged struct {
	layer         layers.Layer
	params, state []layers.Param
}

func (f *File) replace(p string, l layers.Layer, held []layers.Param, kind lsw.TensorKind, used map[string]bool) ([]layers.Param, error) {
	out := make([]layers.Param, len(held))
	for i, w := range held {
		name := layers.WeightName(p, l, w.Name)
		arr, k, err := f.ReadArray(name)
		if err != nil {
			return nil, err
		}
		if k != kind {
			return nil, fmt.Errorf("%w: %s is stored as %s, want %s", ErrTensorNotFound, name, k, kind)
		}
		if !arr.ShapeEqual(w.Value) {
			return nil, fmt.Errorf("%w: %s has shape %v, layer holds %v", ErrShapeMismatch, name, arr.Shape, w.Value.Shape)
		}
		out[i] = layers.Param{Name: w.Name, Value: arr}
		used[name] = true
	}
	return out, nil
}

// adopt reads every checkpoint tensor stored directly under l's prefix.
func (f *File) adopt(p string, l layers.Layer, used map[string]bool) (staged, error) {
	st := staged{layer: l}
	prefix := layers.WeightName(p, l, "")
	for _, e := range f.index.Tensors {
		rest, ok := strings.CutPrefix(e.Name, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		arr, kind, err := f.ReadArray(e.Name)
		if err != nil {
			return staged{}, err
		}
		w := layers.Param{Name: rest, Value: arr}
		if kind == lsw.KindState {
			st.state = append(st.state, w)
		} else {
			st.params = append(st.params, w)
		}
		used[e.Name] = true
	}
	return st, nil
}
