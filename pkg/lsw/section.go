package lsw

import "encoding/binary"

type SectionType uint32

const (
	SectionModelInfo   SectionType = 0x0001
	SectionTensorIndex SectionType = 0x0002
	SectionTensorData  SectionType = 0x0003
)

func (t SectionType) String() string {
	switch t {
	case SectionModelInfo:
		return "model_info"
	case SectionTensorIndex:
		return "tensor_index"
	case SectionTensorData:
		return "tensor_data"
	default:
		return "unknown"
	}
}

type Section struct {
	Type    uint32
	Version uint32
	Offset  uint64
	Size    uint64
}

func (s *Section) End() uint64 {
	return s.Offset + s.Size
}

func encodeSection(dst []byte, s Section) bool {
	if len(dst) < sectionSize {
		return false
	}
	binary.LittleEndian.PutUint32(dst[0:], s.Type)
	binary.LittleEndian.PutUint32(dst[4:], s.Version)
	binary.LittleEndian.PutUint64(dst[8:], s.Offset)
	binary.LittleEndian.PutUint64(dst[16:], s.Size)
	return true
}

func decodeSection(src []byte) (Section, bool) {
	if len(src) < sectionSize {
		return Section{}, false
	}
	return Section{
		Type:    binary.LittleEndian.Uint32(src[0:]),
		Version: binary.LittleEndian.Uint32(src[4:]),
		Offset:  binary.LittleEndian.Uint64(src[8:]),
		Size:    binary.LittleEndian.Uint64(src[16:]),
	}, true
}
