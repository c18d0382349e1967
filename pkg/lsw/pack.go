package lsw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

const DTypeF32 = "f32"

// Tensor is a named float32 tensor to be packed into a file.
type Tensor struct {
	Name  string
	Kind  TensorKind
	Shape []int
	Data  []float32
}

// WriteFile writes a complete LSW file holding info and tensors. Each tensor
// payload starts on a 64-byte boundary within the data section.
func WriteFile(path string, info ModelInfo, tensors []Tensor) error {
	infoData, err := EncodeModelInfo(info)
	if err != nil {
		return fmt.Errorf("lsw: encode model info: %w", err)
	}

	entries := make([]TensorEntry, len(tensors))
	var off uint64
	for i, t := range tensors {
		if n := numel(t.Shape); n != len(t.Data) {
			return fmt.Errorf("lsw: tensor %q: shape %v holds %d values, have %d", t.Name, t.Shape, n, len(t.Data))
		}
		off = alignUp(off, tensorAlign)
		size := uint64(len(t.Data)) * 4
		entries[i] = TensorEntry{
			Name:   t.Name,
			Kind:   t.Kind,
			DType:  DTypeF32,
			Shape:  t.Shape,
			Offset: off,
			Size:   size,
		}
		off += size
	}
	indexData, err := EncodeTensorIndex(entries)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	err = writeSections(w, infoData, indexData, tensors)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
	}
	return err
}

func writeSections(w *Writer, infoData, indexData []byte, tensors []Tensor) error {
	if err := w.AddFlags(FlagTensorDataAligned64); err != nil {
		return err
	}
	if err := w.WriteSection(SectionModelInfo, ModelInfoVersion, infoData); err != nil {
		return err
	}
	if err := w.WriteSection(SectionTensorIndex, TensorIndexVersion, indexData); err != nil {
		return err
	}
	sw, err := w.BeginAlignedSection(SectionTensorData, 1, tensorAlign)
	if err != nil {
		return err
	}
	var buf []byte
	for _, t := range tensors {
		if err := sw.Align(tensorAlign); err != nil {
			return err
		}
		buf = encodeF32(buf[:0], t.Data)
		if _, err := sw.Write(buf); err != nil {
			return err
		}
	}
	if err := sw.End(); err != nil {
		return err
	}
	return w.Finalise()
}

// ReadTensor decodes the float32 payload of e from the data section.
func (f *File) ReadTensor(e TensorEntry) ([]float32, error) {
	if e.DType != DTypeF32 {
		return nil, fmt.Errorf("lsw: tensor %q: unsupported dtype %q", e.Name, e.DType)
	}
	sec := f.Section(SectionTensorData)
	if sec == nil {
		return nil, errors.New("lsw: missing tensor data section")
	}
	data := f.SectionData(sec)
	end := e.Offset + e.Size
	if end < e.Offset || end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: tensor %q out of bounds", ErrCorruptFile, e.Name)
	}
	if e.Size%4 != 0 || uint64(numel(e.Shape))*4 != e.Size {
		return nil, fmt.Errorf("%w: tensor %q size %d does not match shape %v", ErrCorruptFile, e.Name, e.Size, e.Shape)
	}
	return decodeF32(data[e.Offset:end]), nil
}

// TensorIndex decodes the tensor index section.
func (f *File) TensorIndex() (*TensorIndex, error) {
	sec := f.Section(SectionTensorIndex)
	if sec == nil {
		return nil, errors.New("lsw: missing tensor index section")
	}
	return ParseTensorIndex(f.SectionData(sec))
}

func encodeF32(dst []byte, src []float32) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

func decodeF32(src []byte) []float32 {
	out := make([]float32, len(src)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func alignUp(v, n uint64) uint64 {
	if r := v % n; r != 0 {
		return v + n - r
	}
	return v
}
