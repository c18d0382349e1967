package lsw

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpenReaderAtRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.lsw")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteSection(SectionModelInfo, 1, []byte("model-info")); err != nil {
		t.Fatalf("write model info: %v", err)
	}
	if err := w.WriteSection(SectionTensorData, 1, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("write tensor data: %v", err)
	}
	if err := w.WriteSection(SectionTensorData, 1, []byte{7}); err == nil {
		t.Fatalf("expected duplicate section error")
	}
	if err := w.Finalise(); err != nil {
		t.Fatalf("finalise: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close writer file: %v", err)
	}

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer func() { _ = rf.Close() }()

	st, err := rf.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	lf, err := OpenReaderAt(rf, st.Size())
	if err != nil {
		t.Fatalf("open readerat: %v", err)
	}
	defer func() {
		if cerr := lf.Close(); cerr != nil {
			t.Fatalf("close lsw file: %v", cerr)
		}
	}()

	if lf.mmapped {
		t.Fatalf("OpenReaderAt should not mmap")
	}
	if lf.Header.SectionCount != 2 {
		t.Fatalf("section count: got %d want 2", lf.Header.SectionCount)
	}
	if got := lf.SectionData(lf.Section(SectionModelInfo)); !bytes.Equal(got, []byte("model-info")) {
		t.Fatalf("model info payload: got %q", got)
	}
	if got := lf.SectionData(lf.Section(SectionTensorData)); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("tensor data payload: got %v", got)
	}
	if lf.Section(SectionTensorIndex) != nil {
		t.Fatalf("unexpected tensor index section")
	}
}

func TestWriteFileTensors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "weights.lsw")
	info := ModelInfo{Name: "tiny", Seed: 3, NIn: 1, NOut: 1, Inputs: []InputInfo{{Shape: []int{2, 3}, DType: "f32"}}}
	tensors := []Tensor{
		{Name: "0/Dense_2/w", Kind: KindParam, Shape: []int{3, 2}, Data: []float32{1, 2, 3, 4, 5, 6}},
		{Name: "0/Dense_2/b", Kind: KindParam, Shape: []int{2}, Data: []float32{-1, 0.5}},
		{Name: "1/Counter/count", Kind: KindState, Shape: []int{}, Data: []float32{4}},
	}
	if err := WriteFile(path, info, tensors); err != nil {
		t.Fatalf("write file: %v", err)
	}

	lf, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = lf.Close() }()

	if lf.Header.Flags&FlagTensorDataAligned64 == 0 {
		t.Fatalf("aligned flag not set")
	}
	if sec := lf.Section(SectionTensorData); sec.Offset%tensorAlign != 0 {
		t.Fatalf("tensor data section at %d is not %d-byte aligned", sec.Offset, tensorAlign)
	}

	got, ok, err := lf.ModelInfo()
	if err != nil || !ok {
		t.Fatalf("model info: ok=%v err=%v", ok, err)
	}
	if got.Name != "tiny" || got.Seed != 3 || !slices.Equal(got.Inputs[0].Shape, []int{2, 3}) {
		t.Fatalf("model info mismatch: %+v", got)
	}

	ix, err := lf.TensorIndex()
	if err != nil {
		t.Fatalf("tensor index: %v", err)
	}
	if ix.Count() != len(tensors) {
		t.Fatalf("tensor count: got %d want %d", ix.Count(), len(tensors))
	}
	for _, want := range tensors {
		e, ok := ix.Find(want.Name)
		if !ok {
			t.Fatalf("missing tensor %q", want.Name)
		}
		if e.Offset%tensorAlign != 0 {
			t.Fatalf("tensor %q offset %d not aligned", want.Name, e.Offset)
		}
		if e.Kind != want.Kind {
			t.Fatalf("tensor %q kind: got %q want %q", want.Name, e.Kind, want.Kind)
		}
		data, err := lf.ReadTensor(e)
		if err != nil {
			t.Fatalf("read %q: %v", want.Name, err)
		}
		if !slices.Equal(data, want.Data) {
			t.Fatalf("tensor %q: got %v want %v", want.Name, data, want.Data)
		}
	}
	if _, ok := ix.Find("nope"); ok {
		t.Fatalf("found a tensor that was never written")
	}
}

func TestWriteFileRejectsBadTensors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := WriteFile(filepath.Join(dir, "a.lsw"), ModelInfo{}, []Tensor{
		{Name: "x", Shape: []int{2, 2}, Data: []float32{1}},
	})
	if err == nil {
		t.Fatalf("expected shape/data mismatch error")
	}
	err = WriteFile(filepath.Join(dir, "b.lsw"), ModelInfo{}, []Tensor{
		{Name: "x", Shape: []int{1}, Data: []float32{1}},
		{Name: "x", Shape: []int{1}, Data: []float32{2}},
	})
	if err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "b.lsw")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("failed write should not leave a file behind")
	}
}

func TestOpenRejectsCorruptFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ok.lsw")
	if err := WriteFile(path, ModelInfo{Name: "m"}, nil); err != nil {
		t.Fatalf("write file: %v", err)
	}
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{name: "short", mutate: func(b []byte) []byte { return b[:10] }, want: ErrCorruptFile},
		{name: "magic", mutate: func(b []byte) []byte { b[0] = 'X'; return b }, want: ErrInvalidMagic},
		{name: "major", mutate: func(b []byte) []byte { b[4] = 9; return b }, want: ErrUnsupportedMajor},
		{name: "truncated", mutate: func(b []byte) []byte { return b[:len(b)-1] }, want: ErrCorruptFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(slices.Clone(good))
			_, err := OpenReaderAt(bytes.NewReader(data), int64(len(data)))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}
