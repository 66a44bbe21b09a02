package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"itassist/internal/index"
	"itassist/internal/middleware"
)

// ErrUnavailable means no index is loaded, as opposed to a query that simply
// matched nothing.
var ErrUnavailable = errors.New("knowledge base not available")

const DefaultTopK = 3

type Result struct {
	ChunkID    string            `json:"chunkId"`
	DocumentID string            `json:"documentId"`
	Title      string            `json:"title,omitempty"`
	Source     string            `json:"source,omitempty"`
	Content    string            `json:"content"`
	Score      float32           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type Index interface {
	Query(ctx context.Context, text string, k int) ([]index.Match, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

type Service struct {
	index    Index
	reranker Reranker
	topK     int
	logger   *QueryLogger
}

// NewService accepts a nil index; searches then fail with ErrUnavailable.
// The reranker and logger are optional.
func NewService(ix Index, r Reranker, topK int, l *QueryLogger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{index: ix, reranker: r, topK: topK, logger: l}
}

func (s *Service) TopK() int {
	return s.topK
}

func (s *Service) Available() bool {
	return s.index != nil
}

// Search returns up to k results, best first. k <= 0 uses the configured
// default.
func (s *Service) Search(ctx context.Context, query string, k int) (results []Result, err error) {
	start := time.Now()
	if k <= 0 {
		k = s.topK
	}

	defer func() {
		if s.logger != nil && err == nil {
			entry := QueryLogEntry{
				Query:         query,
				TopK:          k,
				NumResults:    len(results),
				Reranked:      s.reranker != nil,
				Duration:      time.Since(start),
				CorrelationID: middleware.GetCorrelationID(ctx),
			}
			if len(results) > 0 {
				entry.TopScore = results[0].Score
			}
			s.logger.Log(entry)
		}
	}()

	if s.index == nil {
		return nil, ErrUnavailable
	}

	// Over-fetch when reranking so the reranker can promote lower-ranked chunks.
	fetch := k
	if s.reranker != nil {
		fetch = k * 3
	}

	matches, err := s.index.Query(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	docs := make([]Result, len(matches))
	for i, m := range matches {
		docs[i] = Result{
			ChunkID:    m.Chunk.ID,
			DocumentID: m.Chunk.DocumentID,
			Title:      m.Chunk.Metadata["title"],
			Source:     m.Chunk.Metadata["source"],
			Content:    m.Chunk.Text,
			Score:      m.Score,
			Metadata:   m.Chunk.Metadata,
		}
	}

	if s.reranker != nil && len(docs) > 0 {
		contents := make([]string, len(docs))
		for i, d := range docs {
			contents[i] = d.Content
		}

		// A failed rerank keeps cosine order.
		if indices, rerr := s.reranker.Rerank(ctx, query, contents); rerr != nil {
			slog.WarnContext(ctx, "rerank failed, using similarity order", "error", rerr)
		} else {
			reranked := make([]Result, 0, len(indices))
			for _, idx := range indices {
				if idx >= 0 && idx < len(docs) {
					reranked = append(reranked, docs[idx])
				}
			}
			docs = reranked
		}
	}

	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}
