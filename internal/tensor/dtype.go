package tensor

import (
	"fmt"
	"slices"
	"strings"
)

// DType names an element encoding. Only float32 arrays can be computed on;
// the other names are accepted in signatures so definitions can be checked.
type DType string

const (
	DTypeF32  DType = "float32"
	DTypeF16  DType = "float16"
	DTypeBF16 DType = "bfloat16"
)

// ParseDType accepts the canonical names plus the common short forms.
// An empty string means float32.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "f32", "float32":
		return DTypeF32, nil
	case "f16", "float16":
		return DTypeF16, nil
	case "bf16", "bfloat16":
		return DTypeBF16, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrDType, s)
	}
}

// Signature is the shape and dtype of a value flowing between layers.
type Signature struct {
	Shape []int `json:"shape" yaml:"shape"`
	DType DType `json:"dtype,omitempty" yaml:"dtype,omitempty"`
}

// Sig is shorthand for a float32 signature.
func Sig(shape ...int) Signature {
	return Signature{Shape: slices.Clone(shape), DType: DTypeF32}
}

func (s Signature) Size() int { return numel(s.Shape) }

// Equal treats an empty dtype as float32.
func (s Signature) Equal(o Signature) bool {
	return s.dtype() == o.dtype() && slices.Equal(s.Shape, o.Shape)
}

func (s Signature) String() string {
	return string(s.dtype()) + shapeString(s.Shape)
}

// Validate rejects negative dimensions and dtypes that cannot be computed.
func (s Signature) Validate() error {
	if numel(s.Shape) < 0 {
		return fmt.Errorf("%w: negative dimension in %v", ErrShape, s.Shape)
	}
	if s.dtype() != DTypeF32 {
		return fmt.Errorf("%w: %s", ErrDType, s.DType)
	}
	return nil
}

func (s Signature) dtype() DType {
	if s.DType == "" {
		return DTypeF32
	}
	return s.DType
}

// SignaturesEqual compares two signature lists element-wise.
func SignaturesEqual(a, b []Signature) bool {
	return slices.EqualFunc(a, b, Signature.Equal)
}
