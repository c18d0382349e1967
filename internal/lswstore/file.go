// Package lswstore saves and restores layer weights as LSW checkpoints.
package lswstore

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/layerstack/internal/tensor"
	"github.com/samcharles93/layerstack/pkg/lsw"
)

var (
	ErrTensorNotFound   = errors.New("lswstore: tensor not found")
	ErrShapeMismatch    = errors.New("lswstore: tensor shape mismatch")
	ErrUnexpectedTensor = errors.New("lswstore: checkpoint tensor matches no layer")
)

// File is an open checkpoint with its tensor index decoded.
type File struct {
	file  *lsw.File
	index *lsw.TensorIndex
	info  lsw.ModelInfo
}

func Open(path string) (*File, error) {
	lf, err := lsw.Open(path)
	if err != nil {
		return nil, err
	}

	cleanup := func(err error) (*File, error) {
		_ = lf.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	info, ok, err := lf.ModelInfo()
	if err != nil {
		return cleanup(err)
	}
	if !ok {
		return cleanup(errors.New("lsw: missing model info section"))
	}
	index, err := lf.TensorIndex()
	if err != nil {
		return cleanup(err)
	}
	if lf.Section(lsw.SectionTensorData) == nil {
		return cleanup(errors.New("lsw: missing tensor data section"))
	}
	return &File{file: lf, index: index, info: info}, nil
}

func (f *File) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.index = nil
	return err
}

func (f *File) Info() lsw.ModelInfo { return f.info }

// Names lists the checkpoint's tensor names in file order.
func (f *File) Names() []string {
	if f == nil || f.index == nil {
		return nil
	}
	names := make([]string, len(f.index.Tensors))
	for i, e := range f.index.Tensors {
		names[i] = e.Name
	}
	return names
}

// Tensor returns the index entry for name.
func (f *File) Tensor(name string) (lsw.TensorEntry, error) {
	if f == nil || f.index == nil {
		return lsw.TensorEntry{}, ErrTensorNotFound
	}
	e, ok := f.index.Find(name)
	if !ok {
		return lsw.TensorEntry{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return e, nil
}

// ReadArray decodes the named tensor into an array that does not alias the
// file mapping.
func (f *File) ReadArray(name string) (tensor.Array, lsw.TensorKind, error) {
	e, err := f.Tensor(name)
	if err != nil {
		return tensor.Array{}, "", err
	}
	data, err := f.file.ReadTensor(e)
	if err != nil {
		return tensor.Array{}, "", err
	}
	arr, err := tensor.FromSlice(data, slices.Clone(e.Shape)...)
	if err != nil {
		return tensor.Array{}, "", fmt.Errorf("tensor %s: %w", name, err)
	}
	return arr, e.Kind, nil
}
