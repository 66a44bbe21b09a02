package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"itassist/internal/corpus"
	"itassist/internal/text"
)

// Snapshot is the persisted form of an index.
type Snapshot struct {
	Manifest Manifest
	Chunks   []Chunk
}

// Snapshotter stores one snapshot at a fixed location. Load reports
// ErrIndexNotFound when nothing has been saved and ErrIndexCorrupt when the
// stored data cannot be decoded.
type Snapshotter interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

func Persist(ctx context.Context, ix *Index, store Snapshotter) error {
	snap := Snapshot{Manifest: ix.manifest, Chunks: ix.chunks}
	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	slog.InfoContext(ctx, "index persisted", "chunks", len(ix.chunks))
	return nil
}

// dimensioned is implemented by embedders that know their output size once
// initialized, such as *embedding.Provider.
type dimensioned interface {
	Dimension() int
}

func Load(ctx context.Context, store Snapshotter, embedder Embedder) (*Index, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Manifest.ChunkCount != len(snap.Chunks) {
		return nil, &CorruptError{Reason: fmt.Sprintf("manifest lists %d chunks, found %d", snap.Manifest.ChunkCount, len(snap.Chunks))}
	}
	// An empty snapshot never learned a dimension.
	if d, ok := embedder.(dimensioned); ok && snap.Manifest.ChunkCount > 0 && d.Dimension() > 0 && d.Dimension() != snap.Manifest.Dimension {
		return nil, &CorruptError{
			Reason: fmt.Sprintf("snapshot has %d dimensions, embedding model produces %d", snap.Manifest.Dimension, d.Dimension()),
			Err:    ErrDimensionMismatch,
		}
	}
	return New(embedder, snap.Manifest, snap.Chunks)
}

// ChunkDocuments splits every document and assigns chunk ids of the form
// "<document id>#<n>". Document metadata is copied onto each chunk.
func ChunkDocuments(docs []corpus.Document, splitter *text.Splitter) []Chunk {
	var out []Chunk
	for _, d := range docs {
		for i, piece := range splitter.Split(d.Text) {
			meta := make(map[string]string, len(d.Metadata))
			for k, v := range d.Metadata {
				meta[k] = v
			}
			out = append(out, Chunk{
				ID:         fmt.Sprintf("%s#%d", d.ID, i),
				DocumentID: d.ID,
				Offset:     piece.Offset,
				Text:       piece.Content,
				Metadata:   meta,
			})
		}
	}
	return out
}

type BootstrapOptions struct {
	// Force rebuilds and overwrites an existing snapshot.
	Force    bool
	Splitter *text.Splitter
	Build    BuildOptions
}

// CorpusSource yields the documents to index; it is only called when a
// build is needed.
type CorpusSource func() ([]corpus.Document, error)

// Bootstrap loads the persisted index or, when none exists, builds one from
// the corpus and persists it. A corrupt snapshot is returned as an error and
// left in place. The boolean reports whether a build happened.
func Bootstrap(ctx context.Context, store Snapshotter, embedder Embedder, source CorpusSource, opts BootstrapOptions) (*Index, bool, error) {
	if !opts.Force {
		ix, err := Load(ctx, store, embedder)
		if err == nil {
			if opts.Build.Model != "" && ix.manifest.Model != opts.Build.Model {
				slog.WarnContext(ctx, "index snapshot was built with a different embedding model",
					"snapshot_model", ix.manifest.Model, "configured_model", opts.Build.Model)
			}
			slog.InfoContext(ctx, "index loaded", "chunks", ix.Len(), "dimension", ix.manifest.Dimension)
			return ix, false, nil
		}
		if !errors.Is(err, ErrIndexNotFound) {
			return nil, false, err
		}
		slog.InfoContext(ctx, "no index snapshot found, building from corpus")
	}

	docs, err := source()
	if err != nil {
		return nil, false, err
	}
	splitter := opts.Splitter
	if splitter == nil {
		if splitter, err = text.NewSplitter(opts.Build.ChunkSize, opts.Build.ChunkOverlap); err != nil {
			return nil, false, err
		}
	}
	opts.Build.ChunkSize = splitter.MaxSize
	opts.Build.ChunkOverlap = splitter.Overlap

	chunks := ChunkDocuments(docs, splitter)
	slog.InfoContext(ctx, "corpus chunked", "documents", len(docs), "chunks", len(chunks))

	ix, err := Build(ctx, embedder, chunks, opts.Build)
	if err != nil {
		return nil, false, err
	}
	if err := Persist(ctx, ix, store); err != nil {
		return nil, false, err
	}
	return ix, true, nil
}
