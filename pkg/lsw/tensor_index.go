package lsw

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

const TensorIndexVersion uint32 = 1

// TensorKind separates trainable parameters from layer state.
type TensorKind string

const (
	KindParam TensorKind = "param"
	KindState TensorKind = "state"
)

// TensorEntry locates one tensor inside the tensor data section. Offset is
// relative to the start of that section.
type TensorEntry struct {
	Name   string     `json:"name"`
	Kind   TensorKind `json:"kind"`
	DType  string     `json:"dtype"`
	Shape  []int      `json:"shape"`
	Offset uint64     `json:"offset"`
	Size   uint64     `json:"size"`
}

type TensorIndex struct {
	Tensors []TensorEntry `json:"tensors"`

	byName map[string]int
}

// EncodeTensorIndex serialises entries for the tensor index section.
func EncodeTensorIndex(entries []TensorEntry) ([]byte, error) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("lsw: tensor entry with empty name")
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("lsw: duplicate tensor %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return json.Marshal(TensorIndex{Tensors: entries})
}

// ParseTensorIndex decodes a tensor index section payload.
func ParseTensorIndex(data []byte) (*TensorIndex, error) {
	var ix TensorIndex
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ix); err != nil {
		return nil, fmt.Errorf("%w: tensor index: %v", ErrCorruptFile, err)
	}
	ix.byName = make(map[string]int, len(ix.Tensors))
	for i, e := range ix.Tensors {
		if _, dup := ix.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tensor %q", ErrCorruptFile, e.Name)
		}
		ix.byName[e.Name] = i
	}
	return &ix, nil
}

func (ix *TensorIndex) Count() int {
	if ix == nil {
		return 0
	}
	return len(ix.Tensors)
}

// Find returns the entry with the given name.
func (ix *TensorIndex) Find(name string) (TensorEntry, bool) {
	if ix == nil {
		return TensorEntry{}, false
	}
	i, ok := ix.byName[name]
	if !ok {
		return TensorEntry{}, false
	}
	return ix.Tensors[i], true
}
