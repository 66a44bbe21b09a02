package agent

import (
	"context"
	"strings"

	"itassist/internal/tools"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole accepts "bot" and "model" as aliases for the assistant.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "human":
		return RoleUser, true
	case "assistant", "bot", "model", "ai":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Turn is one message of caller-supplied conversation history.
type Turn struct {
	Role Role
	Text string
}

// ToolInvocation is a tool call requested by the engine, before validation.
type ToolInvocation struct {
	Name      string
	Arguments map[string]any
}

// Step is one scratchpad entry. Invocation is nil when the step records a
// correction for malformed engine output.
type Step struct {
	Invocation  *ToolInvocation
	Observation string
}

// Decision is what the engine returns for one Thinking step: exactly one of
// CallTool, FinalAnswer or Malformed.
type Decision interface {
	isDecision()
}

type CallTool struct {
	Invocation ToolInvocation
}

type FinalAnswer struct {
	Text string
}

// Malformed is output that is neither a tool call nor usable text.
type Malformed struct {
	Raw    string
	Reason string
}

func (CallTool) isDecision()    {}
func (FinalAnswer) isDecision() {}
func (Malformed) isDecision()   {}

// Request is everything the engine sees for one decision.
type Request struct {
	SystemInstruction string
	Tools             []tools.Descriptor
	History           []Turn
	Scratchpad        []Step
	Message           string
}

// Engine is the external reasoning service. Implementations must not retry
// internally; any returned error ends the conversation.
type Engine interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// Dispatcher runs tools by name; *tools.Registry implements it.
type Dispatcher interface {
	List() []tools.Descriptor
	Dispatch(ctx context.Context, name string, args map[string]any) (string, error)
}

type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeAborted     Outcome = "aborted"
	OutcomeEngineError Outcome = "engine_error"
)

// Result is what a caller receives. Answer is always user-presentable.
type Result struct {
	Answer     string
	ToolsUsed  []string
	Outcome    Outcome
	Iterations int
	// Err holds the engine failure behind OutcomeEngineError, for logs only.
	Err error
}
