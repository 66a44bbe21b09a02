package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"itassist/features/chat"
	"itassist/features/mcp"
	"itassist/features/stats"
	"itassist/internal/adapter/reranker"
	"itassist/internal/agent"
	"itassist/internal/config"
	"itassist/internal/middleware"
	"itassist/internal/retrieval"
	"itassist/internal/tools"
)

// Services are the request-serving components built on top of Dependencies.
type Services struct {
	Retrieval   *retrieval.Service
	Tools       *tools.Registry
	Agent       *agent.Orchestrator
	QueryLogger *retrieval.QueryLogger
	Producer    *nsq.Producer
}

func (s *Services) Close() {
	if s == nil {
		return
	}
	if s.Producer != nil {
		s.Producer.Stop()
	}
	if s.QueryLogger != nil {
		if err := s.QueryLogger.Close(); err != nil {
			slog.Warn("failed to close query log", "error", err)
		}
	}
}

// Wire builds retrieval, tools and the orchestrator. deps may be nil, in which
// case the knowledge base tool reports itself unavailable. producer may be nil.
func Wire(cfg *config.Config, deps *Dependencies, engine agent.Engine, producer *nsq.Producer, reg prometheus.Registerer) (*Services, error) {
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	var ix retrieval.Index
	if deps != nil && deps.Index != nil {
		ix = deps.Index
	}
	var rr retrieval.Reranker
	if c := reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey); c.Enabled() {
		rr = c
	}
	search := retrieval.NewService(ix, rr, cfg.RetrievalTopK, queryLogger)

	toolDeps := tools.Dependencies{
		Searcher:        search,
		TopK:            cfg.RetrievalTopK,
		TicketTopic:     config.TopicTicketCreated,
		EscalationTopic: config.TopicEscalationCreated,
	}
	if producer != nil {
		toolDeps.Publisher = producer
	}
	registry, err := tools.Default(toolDeps, tools.WithMaxResultChars(cfg.MaxObservationChars))
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	var orchestrator *agent.Orchestrator
	if engine != nil {
		opts := []agent.Option{}
		if reg != nil {
			opts = append(opts, agent.WithMetrics(agent.NewMetrics(reg)))
		}
		orchestrator = agent.New(engine, registry, agent.Config{MaxIterations: cfg.AgentMaxIterations}, opts...)
	}

	return &Services{
		Retrieval:   search,
		Tools:       registry,
		Agent:       orchestrator,
		QueryLogger: queryLogger,
		Producer:    producer,
	}, nil
}

type App struct {
	Handler http.Handler
	cfg     *config.Config

	mu         sync.RWMutex
	deps       *Dependencies
	services   *Services
	startupErr error
}

// New builds the HTTP surface. The server runs even when startup failed so
// that health endpoints can report why.
func New(cfg *config.Config, deps *Dependencies, services *Services, startupErr error, gatherer prometheus.Gatherer) *App {
	a := &App{cfg: cfg, deps: deps, services: services, startupErr: startupErr}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	var orchestrator chat.Agent
	var registry mcp.Tools
	if services != nil {
		if services.Agent != nil {
			orchestrator = services.Agent
		}
		registry = services.Tools
	}
	chatHandler := chat.NewHandler(orchestrator, a.Status)
	mcpHandler := mcp.NewHandler(registry)

	var ixStats stats.Index
	var snapshots stats.SnapshotStore
	driver := cfg.IndexDriver
	if deps != nil {
		if deps.Index != nil {
			ixStats = deps.Index
		}
		if deps.Store != nil {
			snapshots = deps.Store
			driver = string(deps.Store.Driver())
		}
	}
	statsHandler := stats.NewHandler(ixStats, snapshots, driver)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", chatHandler.Chat)
	mux.HandleFunc("GET /api/health", chatHandler.Health)
	mux.HandleFunc("GET /{$}", chatHandler.Root)
	mux.HandleFunc("GET /stats", statsHandler.GetStats)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.Handle("/mcp", mcpHandler)
	mux.HandleFunc("GET /mcp/sse", mcpHandler.HandleSSE)
	mux.HandleFunc("POST /mcp/messages", mcpHandler.HandleMessage)

	a.Handler = middleware.CorrelationID(middleware.CORS(cfg.CORSOrigins)(mux))
	return a
}

// NewRegistry returns a Prometheus registry with the standard process and Go
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Status reports startup state for the health endpoints.
func (a *App) Status() chat.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.startupErr != nil {
		return chat.Status{Err: a.startupErr}
	}
	components := map[string]string{
		"index":  "unavailable",
		"engine": "unavailable",
		"events": "disabled",
	}
	if a.deps != nil && a.deps.Index != nil {
		components["index"] = fmt.Sprintf("ready (%d chunks)", a.deps.Index.Len())
		components["embedding"] = a.deps.Embedder.Name()
	}
	ready := a.services != nil && a.services.Agent != nil
	if ready {
		components["engine"] = "ready"
	}
	if a.services != nil && a.services.Producer != nil {
		components["events"] = "nsq"
	}
	return chat.Status{Ready: ready, Components: components}
}

func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services.Close()
	if err := a.deps.Close(); err != nil {
		slog.Warn("failed to close snapshot store", "error", err)
	}
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
