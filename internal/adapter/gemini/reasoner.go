package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"itassist/internal/agent"
	"itassist/internal/tools"
)

const (
	DefaultReasoningModel = "gemini-1.5-pro"
	DefaultTemperature    = 0.1
)

var ErrMissingAPIKey = errors.New("gemini api key not configured")

// Reasoner implements agent.Engine with Gemini native function calling.
// It performs exactly one GenerateContent call per decision.
type Reasoner struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewReasoner(ctx context.Context, apiKey, model string, temperature float32, opts ...option.ClientOption) (*Reasoner, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultReasoningModel
	}
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Reasoner{client: client, model: model, temperature: temperature}, nil
}

func (r *Reasoner) Model() string { return r.model }

func (r *Reasoner) Decide(ctx context.Context, req agent.Request) (agent.Decision, error) {
	m := r.client.GenerativeModel(r.model)
	m.SetTemperature(r.temperature)
	if req.SystemInstruction != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}
	if decls := FunctionDeclarations(req.Tools); len(decls) > 0 {
		m.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := BuildContents(req)
	last := contents[len(contents)-1]
	cs := m.StartChat()
	cs.History = contents[:len(contents)-1]

	slog.DebugContext(ctx, "requesting decision", "model", r.model, "contents", len(contents))
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return ParseResponse(resp), nil
}

func (r *Reasoner) Close() error {
	return r.client.Close()
}

// FunctionDeclarations maps registry descriptors to Gemini tool declarations.
func FunctionDeclarations(ds []tools.Descriptor) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(ds))
	for _, d := range ds {
		params := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(d.Schema.Properties)),
			Required:   d.Schema.Required,
		}
		for _, name := range d.Schema.PropertyNames() {
			p := d.Schema.Properties[name]
			s := &genai.Schema{Type: schemaType(p.Type), Description: p.Description}
			if len(p.Enum) > 0 {
				s.Format = "enum"
				s.Enum = p.Enum
			}
			params.Properties[name] = s
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        string(d.Name),
			Description: d.Description,
			Parameters:  params,
		})
	}
	return out
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// BuildContents lays out history, the new message and the scratchpad as
// alternating user/model contents. The result always ends with a user turn.
func BuildContents(req agent.Request) []*genai.Content {
	var out []*genai.Content
	add := func(role string, parts ...genai.Part) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	for _, t := range req.History {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		role := "user"
		if t.Role == agent.RoleAssistant {
			role = "model"
		}
		add(role, genai.Text(t.Text))
	}
	add("user", genai.Text(req.Message))

	for _, step := range req.Scratchpad {
		if step.Invocation == nil {
			add("user", genai.Text(step.Observation))
			continue
		}
		add("model", genai.FunctionCall{Name: step.Invocation.Name, Args: step.Invocation.Arguments})
		add("user", genai.FunctionResponse{
			Name:     step.Invocation.Name,
			Response: map[string]any{"result": step.Observation},
		})
	}
	return out
}

// ParseResponse reads the first candidate. A function call wins over text;
// a response without candidates is malformed.
func ParseResponse(resp *genai.GenerateContentResponse) agent.Decision {
	if resp == nil || len(resp.Candidates) == 0 {
		return agent.Malformed{Reason: "response has no candidates"}
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return agent.Malformed{Reason: fmt.Sprintf("candidate has no content (finish reason %v)", c.FinishReason)}
	}

	var text strings.Builder
	for _, p := range c.Content.Parts {
		switch v := p.(type) {
		case genai.FunctionCall:
			return callTool(v)
		case *genai.FunctionCall:
			return callTool(*v)
		case genai.Text:
			text.WriteString(string(v))
		}
	}
	return agent.FinalAnswer{Text: text.String()}
}

func callTool(fc genai.FunctionCall) agent.Decision {
	if fc.Name == "" {
		return agent.Malformed{Reason: "function call without a name"}
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return agent.CallTool{Invocation: agent.ToolInvocation{Name: fc.Name, Arguments: args}}
}
