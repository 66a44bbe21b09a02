package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nsqio/go-nsq"

	"itassist/internal/adapter/gemini"
	"itassist/internal/adapter/ollama"
	"itassist/internal/adapter/sqlstore"
	"itassist/internal/config"
	"itassist/internal/corpus"
	"itassist/internal/embedding"
	"itassist/internal/index"
	"itassist/internal/text"
)

// Dependencies are the infrastructure pieces the index needs. They are
// created once at startup.
type Dependencies struct {
	Store    *sqlstore.Store
	Embedder *embedding.Provider
	Index    *index.Index
	// Built reports whether the index was built during this startup rather
	// than loaded from a snapshot.
	Built bool
}

func (d *Dependencies) Close() error {
	if d == nil || d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

type BootstrapOptions struct {
	// ForceRebuild rebuilds the index even when a snapshot exists.
	ForceRebuild bool
}

// Bootstrap opens the snapshot store and embedding provider and loads or
// builds the semantic index. Any failure here is a startup failure.
func Bootstrap(ctx context.Context, cfg *config.Config, opts BootstrapOptions) (*Dependencies, error) {
	provider := NewEmbeddingProvider(cfg)
	if err := provider.Init(ctx); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "embedding provider ready", "provider", cfg.EmbeddingProvider, "model", provider.Name(), "dimension", provider.Dimension())

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:        sqlstore.Dialect(cfg.IndexDriver),
		Path:          cfg.IndexPath,
		DSN:           cfg.IndexDSN,
		RetryAttempts: cfg.BootstrapRetryAttempts,
		RetryDelay:    time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	splitter, err := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("chunker: %w", err)
	}

	ix, built, err := index.Bootstrap(ctx, store, provider, CorpusSource(cfg.CorpusDir), index.BootstrapOptions{
		Force:    opts.ForceRebuild,
		Splitter: splitter,
		Build: index.BuildOptions{
			Model:       provider.Name(),
			Concurrency: cfg.EmbedConcurrency,
		},
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("index bootstrap: %w", err)
	}
	slog.InfoContext(ctx, "semantic index ready",
		"built", built,
		"documents", ix.Documents(),
		"chunks", ix.Len(),
		"driver", store.Driver(),
		"target", store.Target(),
	)

	return &Dependencies{Store: store, Embedder: provider, Index: ix, Built: built}, nil
}

// CorpusSource reads dir, or the embedded troubleshooting corpus when dir is
// empty.
func CorpusSource(dir string) index.CorpusSource {
	return func() ([]corpus.Document, error) {
		if dir == "" {
			return corpus.Default()
		}
		return corpus.LoadDir(dir)
	}
}

// NewEmbeddingProvider selects the embedding backend. The model is opened
// lazily by Provider.Init.
func NewEmbeddingProvider(cfg *config.Config) *embedding.Provider {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingOllama:
		model := cfg.EmbeddingModel
		if model == "" || model == gemini.DefaultEmbeddingModel {
			model = ollama.DefaultModel
		}
		return embedding.NewProvider(model, func(context.Context) (embedding.Model, error) {
			return ollama.NewEmbedder(ollama.Config{BaseURL: cfg.OllamaURL, Model: model}), nil
		})
	case config.EmbeddingHash:
		m := embedding.NewHashModel(cfg.EmbeddingDimensions)
		return embedding.Static(fmt.Sprintf("hash-%d", m.Dim), m)
	default:
		model := cfg.EmbeddingModel
		if model == "" {
			model = gemini.DefaultEmbeddingModel
		}
		return embedding.NewProvider(model, func(ctx context.Context) (embedding.Model, error) {
			return gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, model)
		})
	}
}

// NewEngine creates the reasoning engine client.
func NewEngine(ctx context.Context, cfg *config.Config) (*gemini.Reasoner, error) {
	r, err := gemini.NewReasoner(ctx, cfg.GeminiAPIKey, cfg.ReasoningModel, cfg.ReasoningTemperature)
	if err != nil {
		return nil, fmt.Errorf("reasoning engine: %w", err)
	}
	return r, nil
}

// NewPublisher connects to nsqd for ticket and escalation events. An empty
// NSQD_HOST disables events and returns a nil producer.
func NewPublisher(ctx context.Context, cfg *config.Config) (*nsq.Producer, error) {
	if cfg.NSQDHost == "" {
		slog.InfoContext(ctx, "NSQD_HOST not set, ticket events disabled")
		return nil, nil
	}
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	producer.SetLogger(nil, nsq.LogLevelError)

	if err := PingWithRetry(ctx, producer, cfg.BootstrapRetryAttempts, time.Duration(cfg.BootstrapRetryDelaySeconds)*time.Second); err != nil {
		slog.WarnContext(ctx, "nsqd unreachable, events will be retried per publish", "host", cfg.NSQDHost, "error", err)
	}
	return producer, nil
}

type Pinger interface {
	Ping() error
}

// PingWithRetry pings until success or attempts run out, waiting delay
// between tries.
func PingWithRetry(ctx context.Context, p Pinger, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.Ping()
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(uint(attempts)), // #nosec G115 -- attempts is clamped to >= 1 above
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "ping failed, retrying...", "error", err, "next_attempt_in", next)
		}),
	)
	return err
}
