package lsw

import "encoding/binary"

const (
	MagicLSW = "LSW\x00"

	// Current Major Version: 1 (Breaking changes only)
	CurrentMajor uint16 = 1

	// Current Minor Version
	CurrentMinor uint16 = 0

	// FlagTensorDataAligned64 marks files whose tensor payloads start on
	// 64-byte boundaries inside the data section.
	FlagTensorDataAligned64 uint64 = 1 << 0
)

const (
	headerSize  = 40
	sectionSize = 24
)

type Header struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
}

func (h *Header) Valid() bool {
	if string(h.Magic[:]) != MagicLSW {
		return false
	}
	if h.HeaderSize < headerSize {
		return false
	}
	return h.SectionCount != 0
}

func (h *Header) Compatible() bool {
	return h.Major == CurrentMajor
}

func encodeHeader(dst []byte, h Header) bool {
	if len(dst) < headerSize {
		return false
	}
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:], h.Major)
	binary.LittleEndian.PutUint16(dst[6:], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:], h.HeaderSize)
	binary.LittleEndian.PutUint32(dst[12:], h.SectionCount)
	binary.LittleEndian.PutUint64(dst[16:], h.SectionDirOffset)
	binary.LittleEndian.PutUint64(dst[24:], h.FileSize)
	binary.LittleEndian.PutUint64(dst[32:], h.Flags)
	return true
}

func decodeHeader(src []byte) (Header, bool) {
	if len(src) < headerSize {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], src[0:4])
	h.Major = binary.LittleEndian.Uint16(src[4:])
	h.Minor = binary.LittleEndian.Uint16(src[6:])
	h.HeaderSize = binary.LittleEndian.Uint32(src[8:])
	h.SectionCount = binary.LittleEndian.Uint32(src[12:])
	h.SectionDirOffset = binary.LittleEndian.Uint64(src[16:])
	h.FileSize = binary.LittleEndian.Uint64(src[24:])
	h.Flags = binary.LittleEndian.Uint64(src[32:])
	return h, true
}
