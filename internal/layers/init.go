package layers

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/samcharles93/layerstack/internal/logger"
	"github.com/samcharles93/layerstack/internal/tensor"
)

// Initializer runs one initialization pass over a layer hierarchy. Layers are
// memoized by ID, so an instance reached from several positions is set up
// once and every position sees the same weights.
type Initializer struct {
	log     logger.Logger
	records map[uuid.UUID]initRecord
	setups  int
	created int
}

type initRecord struct {
	in  []tensor.Signature
	out []tensor.Signature
}

func NewInitializer(log logger.Logger) *Initializer {
	if log == nil {
		log = logger.Discard()
	}
	return &Initializer{
		log:     log,
		records: make(map[uuid.UUID]initRecord),
	}
}

// Init sets up l for the given input signatures and returns its output
// signatures.
func (ini *Initializer) Init(l Layer, in []tensor.Signature, key tensor.Key) ([]tensor.Signature, error) {
	if err := checkInputs(l, len(in)); err != nil {
		return nil, err
	}
	if rec, ok := ini.records[l.ID()]; ok {
		if !tensor.SignaturesEqual(rec.in, in) {
			return nil, fmt.Errorf("%w: %s first seen with %v, now %v", ErrSharedSignature, l.Name(), rec.in, in)
		}
		return slices.Clone(rec.out), nil
	}
	for i, sig := range in {
		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("%s input %d: %w", l.Name(), i, err)
		}
	}

	b := l.base()
	had := b.Initialized()
	out, err := l.Setup(in, key, ini)
	if err != nil {
		return nil, err
	}
	if len(out) != l.NOut() {
		return nil, fmt.Errorf("%w: %s declared %d, produced %d signatures", ErrOutputArity, l.Name(), l.NOut(), len(out))
	}
	b.markInitialized()

	ini.records[l.ID()] = initRecord{in: slices.Clone(in), out: slices.Clone(out)}
	ini.setups++
	if !had && len(b.Params())+len(b.State()) > 0 {
		ini.created++
		ini.log.Debug("initialized layer", "layer", l.Name(), "id", l.ID().String(), "inputs", fmt.Sprint(in))
	}
	return out, nil
}

// Count is the number of distinct layer instances set up in this pass.
func (ini *Initializer) Count() int { return ini.setups }

// Created is the number of layers whose weights were generated in this pass,
// as opposed to layers that already held weights.
func (ini *Initializer) Created() int { return ini.created }

// Init initializes l and all of its sublayers and returns the resulting
// parameter tree along with l's output signatures. Layers that already hold
// weights keep them.
func Init(ctx context.Context, l Layer, in []tensor.Signature, key tensor.Key) (*Tree, []tensor.Signature, error) {
	ini := NewInitializer(logger.FromContext(ctx))
	out, err := ini.Init(l, in, key)
	if err != nil {
		return nil, nil, err
	}
	return TreeOf(l), out, nil
}
