package layers

import (
	"errors"
	"fmt"
)

var (
	ErrArity           = errors.New("layers: arity mismatch")
	ErrOutputArity     = errors.New("layers: layer returned the wrong number of outputs")
	ErrStackUnderflow  = errors.New("layers: stack underflow")
	ErrNotInitialized  = errors.New("layers: layer is not initialized")
	ErrSharedSignature = errors.New("layers: shared layer reused with a different input signature")
	ErrWeightShape     = errors.New("layers: weights do not fit the input signature")
)

// ArityError reports a layer that cannot be supplied with the inputs it
// declares. Index is the sublayer position inside the enclosing composite,
// or -1 when the layer itself was called with the wrong number of values.
type ArityError struct {
	Layer string
	Index int
	Need  int
	Have  int
}

func (e *ArityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("layers: %s takes %d inputs, got %d", e.Layer, e.Need, e.Have)
	}
	return fmt.Sprintf("layers: sublayer %d (%s) takes %d inputs, stack holds %d", e.Index, e.Layer, e.Need, e.Have)
}

func (e *ArityError) Unwrap() error {
	return ErrArity
}
