package lsw

import (
	"errors"
	"io"
	"os"
	"sort"
	"sync"
)

// Writer builds an LSW file in a streaming fashion.
//
// The writer reserves space for the header up-front and patches it during
// Finalise. Use BeginSection for tensor data to avoid buffering it in memory.
type Writer struct {
	f        *os.File
	sections []Section
	seen     map[SectionType]struct{}
	open     *SectionWriter
	closed   bool
	flags    uint64
	padBuf   []byte

	mu sync.Mutex
}

// SectionWriter streams a section payload directly to the underlying file.
// It must be ended before any other section can be written.
type SectionWriter struct {
	w       *Writer
	typ     SectionType
	version uint32
	start   int64
	ended   bool
}

// NewWriter truncates f and reserves space for the header.
func NewWriter(f *os.File) (*Writer, error) {
	if f == nil {
		return nil, errors.New("lsw: nil file")
	}
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	w := &Writer{
		f:      f,
		seen:   make(map[SectionType]struct{}),
		padBuf: make([]byte, tensorAlign),
	}
	if err := w.writeZeros(headerSize); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteSection writes a whole section payload. A section type may only be
// written once.
func (w *Writer) WriteSection(typ SectionType, version uint32, data []byte) error {
	sw, err := w.BeginSection(typ, version)
	if err != nil {
		return err
	}
	if _, err := sw.Write(data); err != nil {
		return err
	}
	return sw.End()
}

func (w *Writer) AddFlags(flags uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("lsw: writer already finalised")
	}
	w.flags |= flags
	return nil
}

// BeginSection starts streaming a section payload.
func (w *Writer) BeginSection(typ SectionType, version uint32) (*SectionWriter, error) {
	return w.beginSection(typ, version, sectionAlign)
}

// BeginAlignedSection is BeginSection with the payload starting on an
// align-byte boundary. align must be a multiple of 8.
func (w *Writer) BeginAlignedSection(typ SectionType, version uint32, align int) (*SectionWriter, error) {
	if align <= 0 || align%sectionAlign != 0 {
		return nil, errors.New("lsw: section alignment must be a multiple of 8")
	}
	return w.beginSection(typ, version, int64(align))
}

func (w *Writer) beginSection(typ SectionType, version uint32, align int64) (*SectionWriter, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, errors.New("lsw: writer already finalised")
	}
	if w.open != nil {
		return nil, errors.New("lsw: section write in progress")
	}
	if _, ok := w.seen[typ]; ok {
		return nil, errors.New("lsw: duplicate section type")
	}
	if err := w.alignTo(align); err != nil {
		return nil, err
	}
	start, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	sw := &SectionWriter{w: w, typ: typ, version: version, start: start}
	w.open = sw
	w.seen[typ] = struct{}{}
	return sw, nil
}

// Offset returns the number of bytes written in this section so far.
func (sw *SectionWriter) Offset() (uint64, error) {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return 0, err
	}
	pos, err := sw.w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return uint64(pos - sw.start), nil
}

// Align pads the section with zeros until the file position is a multiple of n.
func (sw *SectionWriter) Align(n int) error {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return err
	}
	return sw.w.alignTo(int64(n))
}

func (sw *SectionWriter) Write(p []byte) (int, error) {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return 0, err
	}
	if err := writeFull(sw.w.f, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// End records the section in the directory.
func (sw *SectionWriter) End() error {
	sw.w.mu.Lock()
	defer sw.w.mu.Unlock()
	if err := sw.active(); err != nil {
		return err
	}
	pos, err := sw.w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	sw.w.sections = append(sw.w.sections, Section{
		Type:    uint32(sw.typ),
		Version: sw.version,
		Offset:  uint64(sw.start),
		Size:    uint64(pos - sw.start),
	})
	sw.w.open = nil
	sw.ended = true
	return nil
}

func (sw *SectionWriter) active() error {
	if sw.ended {
		return errors.New("lsw: section writer ended")
	}
	if sw.w.open != sw {
		return errors.New("lsw: section writer not active")
	}
	return nil
}

// Finalise writes the section directory and patches the header.
// After Finalise, the writer must not be used again.
func (w *Writer) Finalise() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("lsw: writer already finalised")
	}
	if w.open != nil {
		return errors.New("lsw: section write in progress")
	}
	if len(w.sections) == 0 {
		return errors.New("lsw: no sections written")
	}
	w.closed = true

	sort.Slice(w.sections, func(i, j int) bool {
		return w.sections[i].Type < w.sections[j].Type
	})

	if err := w.alignTo(sectionAlign); err != nil {
		return err
	}
	dirOffset, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	var secBuf [sectionSize]byte
	for i := range w.sections {
		encodeSection(secBuf[:], w.sections[i])
		if err := writeFull(w.f, secBuf[:]); err != nil {
			return err
		}
	}

	fileSize, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := w.f.Truncate(fileSize); err != nil {
		return err
	}

	var header Header
	copy(header.Magic[:], MagicLSW)
	header.Major = CurrentMajor
	header.Minor = CurrentMinor
	header.HeaderSize = headerSize
	header.SectionCount = uint32(len(w.sections))
	header.SectionDirOffset = uint64(dirOffset)
	header.FileSize = uint64(fileSize)
	header.Flags = w.flags

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var hdrBuf [headerSize]byte
	encodeHeader(hdrBuf[:], header)
	if err := writeFull(w.f, hdrBuf[:]); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *Writer) alignTo(n int64) error {
	if n <= 1 {
		return nil
	}
	pos, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if mod := pos % n; mod != 0 {
		return w.writeZeros(int(n - mod))
	}
	return nil
}

func (w *Writer) writeZeros(n int) error {
	for n > 0 {
		toWrite := min(n, len(w.padBuf))
		if err := writeFull(w.f, w.padBuf[:toWrite]); err != nil {
			return err
		}
		n -= toWrite
	}
	return nil
}
