package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

var (
	ErrModelLoad  = errors.New("embedding model could not be loaded")
	ErrZeroVector = errors.New("embedding has zero norm")
)

// sampleText is embedded once during Init to discover the model's dimension.
const sampleText = "dimension check"

// Model is a raw embedding backend. Its vectors need not be normalized.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Loader opens a Model. A Provider calls it at most once.
type Loader func(ctx context.Context) (Model, error)

// Provider turns text into unit-length vectors of a fixed dimension. The
// underlying model is opened lazily on first use and then shared by all
// callers; Embed is safe for concurrent use.
type Provider struct {
	name string
	load Loader

	once  sync.Once
	model Model
	dim   int
	err   error
}

func NewProvider(name string, load Loader) *Provider {
	return &Provider{name: name, load: load}
}

// Static wraps an already opened model.
func Static(name string, m Model) *Provider {
	return NewProvider(name, func(context.Context) (Model, error) { return m, nil })
}

// Init opens the model and measures its dimension. Only the first call does any
// work; later calls return the same result. Failures wrap ErrModelLoad.
func (p *Provider) Init(ctx context.Context) error {
	p.once.Do(func() {
		m, err := p.load(ctx)
		if err != nil {
			p.err = fmt.Errorf("%w: %s: %v", ErrModelLoad, p.name, err)
			return
		}
		if m == nil {
			p.err = fmt.Errorf("%w: %s: loader returned no model", ErrModelLoad, p.name)
			return
		}
		vec, err := m.Embed(ctx, sampleText)
		if err != nil {
			p.err = fmt.Errorf("%w: %s: sample embedding failed: %v", ErrModelLoad, p.name, err)
			return
		}
		if len(vec) == 0 {
			p.err = fmt.Errorf("%w: %s: sample embedding was empty", ErrModelLoad, p.name)
			return
		}
		p.model = m
		p.dim = len(vec)
		slog.InfoContext(ctx, "embedding model loaded", "model", p.name, "dimension", p.dim)
	})
	return p.err
}

func (p *Provider) Name() string {
	return p.name
}

// Dimension is zero until Init has succeeded.
func (p *Provider) Dimension() int {
	return p.dim
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	vec, err := p.model.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) != p.dim {
		return nil, fmt.Errorf("embed: model %s returned %d dimensions, expected %d", p.name, len(vec), p.dim)
	}
	return Normalize(vec)
}

// Normalize returns a copy of v scaled to unit L2 norm.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, ErrZeroVector
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Norm is the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot is the inner product of two equal-length vectors; for unit vectors it
// is their cosine similarity.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
