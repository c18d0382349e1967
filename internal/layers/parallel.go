package layers

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/layerstack/internal/tensor"
)

// ParallelLayer applies each sublayer to its own contiguous span of the
// inputs and concatenates the outputs in sublayer order.
type ParallelLayer struct {
	*Base
	layers      []Layer
	concurrency int
}

type ParallelOption func(*ParallelLayer)

// WithConcurrency evaluates up to n sublayers at the same time. Values below
// 2 mean sequential evaluation.
func WithConcurrency(n int) ParallelOption {
	return func(p *ParallelLayer) {
		p.concurrency = n
	}
}

// Parallel combines layers under the default name.
func Parallel(layers ...Layer) (*ParallelLayer, error) {
	return NewParallel("Parallel", layers)
}

func NewParallel(name string, layers []Layer, opts ...ParallelOption) (*ParallelLayer, error) {
	if err := validateSublayers(name, layers); err != nil {
		return nil, err
	}
	var nIn, nOut int
	for _, l := range layers {
		nIn += l.NIn()
		nOut += l.NOut()
	}
	p := &ParallelLayer{Base: NewBase(name, nIn, nOut), layers: slices.Clone(layers)}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *ParallelLayer) Sublayers() []Layer { return slices.Clone(p.layers) }

// Concurrency is the configured branch limit.
func (p *ParallelLayer) Concurrency() int { return p.concurrency }

func (p *ParallelLayer) Forward(ctx context.Context, xs []tensor.Array) ([]tensor.Array, error) {
	if err := checkInputs(p, len(xs)); err != nil {
		return nil, err
	}
	spans := splitSpans(p.layers, xs)
	results := make([][]tensor.Array, len(p.layers))

	if p.concurrency > 1 && len(p.layers) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.concurrency)
		for i, l := range p.layers {
			g.Go(func() error {
				outs, err := p.apply(gctx, i, l, spans[i])
				results[i] = outs
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, l := range p.layers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outs, err := p.apply(ctx, i, l, spans[i])
			if err != nil {
				return nil, err
			}
			results[i] = outs
		}
	}
	return slices.Concat(results...), nil
}

func (p *ParallelLayer) apply(ctx context.Context, i int, l Layer, args []tensor.Array) ([]tensor.Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outs, err := l.Forward(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("%s[%d]: %w", p.Name(), i, err)
	}
	if len(outs) != l.NOut() {
		return nil, fmt.Errorf("%w: %s[%d] %s declared %d, returned %d", ErrOutputArity, p.Name(), i, l.Name(), l.NOut(), len(outs))
	}
	return outs, nil
}

func (p *ParallelLayer) Setup(in []tensor.Signature, key tensor.Key, init *Initializer) ([]tensor.Signature, error) {
	keys := key.Split(len(p.layers))
	spans := splitSpans(p.layers, in)
	out := make([]tensor.Signature, 0, p.NOut())
	for i, l := range p.layers {
		sigs, err := init.Init(l, spans[i], keys[i])
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", p.Name(), i, err)
		}
		out = append(out, sigs...)
	}
	return out, nil
}

// splitSpans cuts xs into consecutive runs sized by each layer's NIn. The
// caller has already checked that len(xs) is the sum of those sizes.
func splitSpans[T any](layers []Layer, xs []T) [][]T {
	spans := make([][]T, len(layers))
	off := 0
	for i, l := range layers {
		spans[i] = xs[off : off+l.NIn() : off+l.NIn()]
		off += l.NIn()
	}
	return spans
}
