package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"itassist/internal/embedding"
)

var (
	ErrIndexNotFound     = errors.New("index snapshot not found")
	ErrIndexCorrupt      = errors.New("index snapshot corrupt")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// unitTolerance bounds how far a stored vector's norm may drift from 1.
const unitTolerance = 1e-3

// CorruptError explains why a snapshot could not be used.
type CorruptError struct {
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index snapshot corrupt: %s: %v", e.Reason, e.Err)
	}
	return "index snapshot corrupt: " + e.Reason
}

func (e *CorruptError) Is(target error) bool { return target == ErrIndexCorrupt }

func (e *CorruptError) Unwrap() error { return e.Err }

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is one indexed window of a document. Vector is unit length.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"documentId"`
	Offset     int               `json:"offset"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Vector     []float32         `json:"-"`
}

// Manifest describes how an index was produced.
type Manifest struct {
	Model        string    `json:"model"`
	Dimension    int       `json:"dimension"`
	ChunkSize    int       `json:"chunkSize"`
	ChunkOverlap int       `json:"chunkOverlap"`
	ChunkCount   int       `json:"chunkCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Match struct {
	Chunk Chunk
	Score float32
}

// Index is an in-memory brute-force cosine index. It is immutable once
// constructed and safe for concurrent queries.
type Index struct {
	embedder Embedder
	manifest Manifest
	chunks   []Chunk
}

// New assembles an index from already embedded chunks, checking that every
// vector matches the manifest dimension and has unit norm.
func New(embedder Embedder, m Manifest, chunks []Chunk) (*Index, error) {
	for i, c := range chunks {
		if len(c.Vector) != m.Dimension {
			return nil, &CorruptError{
				Reason: fmt.Sprintf("chunk %d (%s) has %d dimensions, manifest says %d", i, c.ID, len(c.Vector), m.Dimension),
				Err:    ErrDimensionMismatch,
			}
		}
		if n := embedding.Norm(c.Vector); math.Abs(n-1) > unitTolerance {
			return nil, &CorruptError{Reason: fmt.Sprintf("chunk %d (%s) has norm %.4f", i, c.ID, n)}
		}
	}
	m.ChunkCount = len(chunks)
	return &Index{embedder: embedder, manifest: m, chunks: chunks}, nil
}

type BuildOptions struct {
	Model        string
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
}

// Build embeds chunks concurrently and returns a ready index. Chunk order,
// and therefore tie-breaking, follows the input order.
func Build(ctx context.Context, embedder Embedder, chunks []Chunk, opts BuildOptions) (*Index, error) {
	out := make([]Chunk, len(chunks))
	copy(out, chunks)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range out {
		g.Go(func() error {
			vec, err := embedder.Embed(gctx, out[i].Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", out[i].ID, err)
			}
			out[i].Vector = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := 0
	if len(out) > 0 {
		dim = len(out[0].Vector)
	}
	m := Manifest{
		Model:        opts.Model,
		Dimension:    dim,
		ChunkSize:    opts.ChunkSize,
		ChunkOverlap: opts.ChunkOverlap,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	idx, err := New(embedder, m, out)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	slog.InfoContext(ctx, "index built", "chunks", len(out), "dimension", dim, "model", opts.Model)
	return idx, nil
}

func (ix *Index) Manifest() Manifest {
	return ix.manifest
}

func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Chunks returns the stored chunks in insertion order. Callers must not
// modify the result.
func (ix *Index) Chunks() []Chunk {
	return ix.chunks
}

// Documents counts distinct parent documents.
func (ix *Index) Documents() int {
	seen := make(map[string]struct{})
	for _, c := range ix.chunks {
		seen[c.DocumentID] = struct{}{}
	}
	return len(seen)
}

// Query returns up to k chunks by descending cosine similarity to text.
// Equal scores keep insertion order. An empty index yields no matches.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if len(ix.chunks) == 0 || k <= 0 {
		return []Match{}, nil
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.Nearest(vec, k)
}

// Nearest ranks stored chunks against an already embedded unit vector.
func (ix *Index) Nearest(vec []float32, k int) ([]Match, error) {
	if len(ix.chunks) == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(vec) != ix.manifest.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vec), ix.manifest.Dimension)
	}

	matches := make([]Match, len(ix.chunks))
	for i, c := range ix.chunks {
		matches[i] = Match{Chunk: c, Score: embedding.Dot(vec, c.Vector)}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}
