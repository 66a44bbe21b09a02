package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"itassist/internal/tools"
)

var ErrMalformedDecision = errors.New("malformed engine decision")

const DefaultMaxIterations = 6

type Config struct {
	// MaxIterations bounds Thinking steps per call; every step consumes one
	// slot whatever its result.
	MaxIterations     int
	SystemInstruction string
}

// Orchestrator runs the Thinking/ToolDispatch loop. It holds no per-call
// state, so one instance serves concurrent conversations.
type Orchestrator struct {
	engine  Engine
	tools   Dispatcher
	cfg     Config
	metrics *Metrics
}

type Option func(*Orchestrator)

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func New(engine Engine, dispatcher Dispatcher, cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = SystemPrompt
	}
	o := &Orchestrator{engine: engine, tools: dispatcher, cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run answers one user message. It never returns an error: engine failures,
// panics and an exhausted iteration budget all resolve to FallbackMessage.
func (o *Orchestrator) Run(ctx context.Context, message string, history []Turn) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "agent loop panicked", "panic", r)
			res = Result{Answer: FallbackMessage, ToolsUsed: []string{}, Outcome: OutcomeEngineError, Iterations: res.Iterations, Err: fmt.Errorf("panic: %v", r)}
		}
		o.metrics.observeRun(res)
	}()

	req := Request{
		SystemInstruction: o.cfg.SystemInstruction,
		Tools:             o.tools.List(),
		History:           history,
		Message:           message,
	}
	var used []string

	for iter := 1; iter <= o.cfg.MaxIterations; iter++ {
		res.Iterations = iter
		slog.DebugContext(ctx, "agent thinking", "iteration", iter, "scratchpad", len(req.Scratchpad))

		start := time.Now()
		decision, err := o.engine.Decide(ctx, req)
		o.metrics.observeEngine(time.Since(start))
		if err != nil {
			slog.ErrorContext(ctx, "reasoning engine failed", "iteration", iter, "error", err)
			return Result{Answer: FallbackMessage, ToolsUsed: []string{}, Outcome: OutcomeEngineError, Iterations: iter, Err: err}
		}

		switch d := decision.(type) {
		case FinalAnswer:
			answer := strings.TrimSpace(d.Text)
			if answer == "" {
				answer = EmptyAnswerMessage
			}
			slog.DebugContext(ctx, "agent finalizing", "iteration", iter, "tools", used)
			return Result{Answer: answer, ToolsUsed: displayNames(used), Outcome: OutcomeAnswered, Iterations: iter}

		case CallTool:
			inv := d.Invocation
			obs, record := o.dispatch(ctx, inv)
			if record && !slices.Contains(used, inv.Name) {
				used = append(used, inv.Name)
			}
			req.Scratchpad = append(req.Scratchpad, Step{Invocation: &inv, Observation: obs})

		case Malformed:
			slog.WarnContext(ctx, "malformed engine output", "iteration", iter, "reason", d.Reason)
			req.Scratchpad = append(req.Scratchpad, Step{Observation: correction(d.Reason)})

		default:
			slog.WarnContext(ctx, "engine returned no decision", "iteration", iter)
			req.Scratchpad = append(req.Scratchpad, Step{Observation: correction("no decision returned")})
		}
	}

	slog.WarnContext(ctx, "agent aborted: iteration budget exhausted", "max_iterations", o.cfg.MaxIterations, "tools", used)
	return Result{Answer: FallbackMessage, ToolsUsed: []string{}, Outcome: OutcomeAborted, Iterations: o.cfg.MaxIterations}
}

// dispatch turns every tool failure into an observation. record reports
// whether the name belongs in the tools-used list: a handler ran, or the
// name is unknown and passes through as its own label.
func (o *Orchestrator) dispatch(ctx context.Context, inv ToolInvocation) (obs string, record bool) {
	slog.DebugContext(ctx, "agent dispatching", "tool", inv.Name)

	out, err := o.tools.Dispatch(ctx, inv.Name, inv.Arguments)
	var ve *tools.ValidationError
	switch {
	case err == nil:
		o.metrics.observeTool(inv.Name, "ok")
		return out, true
	case errors.Is(err, tools.ErrToolNotFound):
		slog.WarnContext(ctx, "engine requested unknown tool", "tool", inv.Name)
		o.metrics.observeTool("unknown", "not_found")
		return ToolNotFoundObservation, true
	case errors.As(err, &ve):
		slog.InfoContext(ctx, "tool arguments rejected", "tool", inv.Name, "problems", ve.Problems)
		o.metrics.observeTool(inv.Name, "invalid")
		return fmt.Sprintf("ERROR: %s. Correct the arguments to match the tool schema and try again.", ve.Error()), false
	default:
		slog.ErrorContext(ctx, "tool failed", "tool", inv.Name, "error", err)
		o.metrics.observeTool(inv.Name, "error")
		return fmt.Sprintf("ERROR: tool %s failed: %v", inv.Name, err), true
	}
}

func correction(reason string) string {
	return fmt.Sprintf("ERROR: %v (%s). Respond with either a single tool call or a plain-text final answer.", ErrMalformedDecision, reason)
}

func displayNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		label := tools.DisplayName(name)
		if !slices.Contains(out, label) {
			out = append(out, label)
		}
	}
	return out
}
