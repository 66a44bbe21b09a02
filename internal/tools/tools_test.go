package tools

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"itassist/internal/retrieval"
)

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) Search(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	messages [][]byte
	err      error
}

func (p *recordingPublisher) Publish(topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, body)
	return p.err
}

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, s Searcher, pub EventPublisher) *Registry {
	t.Helper()
	r, err := Default(Dependencies{
		Searcher:  s,
		TopK:      3,
		Publisher: pub,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return r
}

func TestParseName(t *testing.T) {
	for _, n := range Names {
		got, ok := ParseName(string(n))
		assert.True(t, ok)
		assert.Equal(t, n, got)
	}
	_, ok := ParseName("format_hard_drive")
	assert.False(t, ok)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Searching Knowledge Base", DisplayName("search_it_knowledge_base"))
	assert.Equal(t, "Creating Support Ticket", DisplayName("create_support_ticket"))
	assert.Equal(t, "Checking Warranty Status", DisplayName("check_warranty_status"))
	assert.Equal(t, "Escalating to Tier 2", DisplayName("escalate_to_tier2"))
	assert.Equal(t, "custom_tool", DisplayName("custom_tool"))
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t, nil, nil)

	t.Run("List In Prompt Order", func(t *testing.T) {
		list := r.List()
		require.Len(t, list, 4)
		for i, d := range list {
			assert.Equal(t, Names[i], d.Name)
			assert.NotEmpty(t, d.Description)
			assert.Equal(t, "object", d.Schema.Type)
		}
	})

	t.Run("Get Unknown", func(t *testing.T) {
		_, err := r.Get("reboot_server")
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("Same Name Resolves To Same Handler", func(t *testing.T) {
		a, err := r.Get(string(CheckWarrantyStatus))
		require.NoError(t, err)
		b, err := r.Get(string(CheckWarrantyStatus))
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("Duplicate Registration", func(t *testing.T) {
		err := r.Register(Descriptor{Name: EscalateToTier2, Schema: Schema{Type: "object", Properties: map[string]Property{}}, Handler: func(context.Context, Args) (string, error) { return "", nil }})
		assert.ErrorContains(t, err, "already registered")
	})

	t.Run("Name Outside Closed Set", func(t *testing.T) {
		err := NewRegistry().Register(Descriptor{Name: "shell", Handler: func(context.Context, Args) (string, error) { return "", nil }})
		assert.ErrorContains(t, err, "not a known tool")
	})
}

func TestDispatch_Validation(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := context.Background()

	t.Run("Missing Required Field", func(t *testing.T) {
		_, err := r.Dispatch(ctx, string(CreateSupportTicket), map[string]any{"issue_summary": "screen flicker"})
		assert.ErrorIs(t, err, ErrValidation)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, CreateSupportTicket, ve.Tool)
		assert.Contains(t, ve.Error(), "laptop_model")
	})

	t.Run("Empty String Rejected", func(t *testing.T) {
		_, err := r.Dispatch(ctx, string(CheckWarrantyStatus), map[string]any{"laptop_model": ""})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Wrong Type", func(t *testing.T) {
		_, err := r.Dispatch(ctx, string(SearchKnowledgeBase), map[string]any{"query": 42})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Invalid Priority Falls Back To Medium", func(t *testing.T) {
		out, err := r.Dispatch(ctx, string(CreateSupportTicket), map[string]any{
			"issue_summary": "screen flicker", "laptop_model": "ThinkPad T14s", "priority": "Urgent",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "- **Priority**: Medium")
		assert.Contains(t, out, "4 hour response / 24 hour resolution")
	})

	t.Run("Unknown Tool", func(t *testing.T) {
		_, err := r.Dispatch(ctx, "delete_user", nil)
		assert.ErrorIs(t, err, ErrToolNotFound)
	})
}

func TestKnowledgeTool(t *testing.T) {
	ctx := context.Background()

	t.Run("Formats Chunks", func(t *testing.T) {
		s := new(MockSearcher)
		s.On("Search", mock.Anything, "flicker T14s", 3).Return([]retrieval.Result{{Content: "Reseat the eDP cable."}, {Content: "Update the driver."}}, nil)

		out, err := newTestRegistry(t, s, nil).Dispatch(ctx, string(SearchKnowledgeBase), map[string]any{"query": "flicker T14s"})
		require.NoError(t, err)
		assert.Equal(t, "[Chunk 1]\nReseat the eDP cable.\n\n---\n\n[Chunk 2]\nUpdate the driver.", out)
	})

	t.Run("No Results", func(t *testing.T) {
		s := new(MockSearcher)
		s.On("Search", mock.Anything, "printer", 3).Return([]retrieval.Result{}, nil)

		out, err := newTestRegistry(t, s, nil).Dispatch(ctx, string(SearchKnowledgeBase), map[string]any{"query": "printer"})
		require.NoError(t, err)
		assert.Equal(t, NoDocumentationText, out)
	})

	t.Run("Unavailable Is Distinct From Empty", func(t *testing.T) {
		s := new(MockSearcher)
		s.On("Search", mock.Anything, "printer", 3).Return(nil, retrieval.ErrUnavailable)

		out, err := newTestRegistry(t, s, nil).Dispatch(ctx, string(SearchKnowledgeBase), map[string]any{"query": "printer"})
		require.NoError(t, err)
		assert.Equal(t, KnowledgeUnavailableText, out)
		assert.NotEqual(t, NoDocumentationText, out)

		out, err = newTestRegistry(t, nil, nil).Dispatch(ctx, string(SearchKnowledgeBase), map[string]any{"query": "printer"})
		require.NoError(t, err)
		assert.Equal(t, KnowledgeUnavailableText, out)
	})

	t.Run("Search Failure", func(t *testing.T) {
		s := new(MockSearcher)
		s.On("Search", mock.Anything, "printer", 3).Return(nil, errors.New("embed query: timeout"))

		_, err := newTestRegistry(t, s, nil).Dispatch(ctx, string(SearchKnowledgeBase), map[string]any{"query": "printer"})
		assert.ErrorContains(t, err, "timeout")
	})
}

func TestTicketTool(t *testing.T) {
	pub := &recordingPublisher{}
	r := newTestRegistry(t, nil, pub)

	out, err := r.Dispatch(context.Background(), string(CreateSupportTicket), map[string]any{
		"issue_summary": "Screen flickering", "laptop_model": "Lenovo ThinkPad T14s Gen 3", "priority": "High",
	})
	require.NoError(t, err)

	idPattern := regexp.MustCompile("`(INC-[0-9A-F]{8})`")
	m := idPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	assert.Contains(t, out, "- **Priority**: High")
	assert.Contains(t, out, "2 hour response / 8 hour resolution")
	assert.Contains(t, out, "- **Created**: 2026-10-19 09:30:00 UTC")
	assert.Contains(t, out, "it-portal.company.internal/tickets/"+m[1])

	require.Len(t, pub.topics, 1)
	assert.Equal(t, DefaultTicketTopic, pub.topics[0])
	var ev TicketEvent
	require.NoError(t, json.Unmarshal(pub.messages[0], &ev))
	assert.Equal(t, m[1], ev.TicketID)
	assert.Equal(t, PriorityHigh, ev.Priority)

	t.Run("Publish Failure Does Not Fail Tool", func(t *testing.T) {
		r := newTestRegistry(t, nil, &recordingPublisher{err: errors.New("nsqd down")})
		_, err := r.Dispatch(context.Background(), string(CreateSupportTicket), map[string]any{
			"issue_summary": "x", "laptop_model": "y",
		})
		assert.NoError(t, err)
	})

	t.Run("IDs Are Unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			id := newID("INC-", 8)
			assert.False(t, seen[id], id)
			seen[id] = true
		}
	})
}

func TestWarrantyTool(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		model    string
		contains []string
	}{
		{"Lenovo ThinkPad T14s Gen 3", []string{"Status**: Active (72 days remaining)", "3-Year Lenovo Premier Support"}},
		{"Dell XPS 15 9530", []string{"Status**: Expired (expired 35 days ago)", "Dell ProSupport Plus"}},
		{"dell latitude 5540", []string{"Status**: Active", "3-Year Dell ProSupport\n"}},
		{"Microsoft Surface Pro 9", []string{"Expired", "Microsoft Complete for Business"}},
		{"Framework Laptop 13", []string{"**Warranty Status: Not Found**", "**Framework Laptop 13**"}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			out, err := r.Dispatch(ctx, string(CheckWarrantyStatus), map[string]any{"laptop_model": tt.model})
			require.NoError(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, out, c)
			}
		})
	}
}

func TestEscalationTool(t *testing.T) {
	pub := &recordingPublisher{}
	r := newTestRegistry(t, nil, pub)
	ctx := context.Background()

	t.Run("Linked To Ticket", func(t *testing.T) {
		out, err := r.Dispatch(ctx, string(EscalateToTier2), map[string]any{"issue_summary": "Panel replacement", "ticket_id": "INC-1A2B3C4D"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "**Escalated to Tier 2 IT Support** (linked to `INC-1A2B3C4D`)"))
		assert.Regexp(t, "`ESC-[0-9A-F]{6}`", out)
	})

	t.Run("Without Ticket", func(t *testing.T) {
		out, err := r.Dispatch(ctx, string(EscalateToTier2), map[string]any{"issue_summary": "Panel replacement"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "**Escalated to Tier 2 IT Support**\n\n"))
	})

	assert.Equal(t, []string{DefaultEscalationTopic, DefaultEscalationTopic}, pub.topics)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc", Truncate("abcdef", 3))

	long := strings.Repeat("é", 100)
	out := Truncate(long, 40)
	assert.Equal(t, 40, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "[truncated]"))

	r, err := Default(Dependencies{Now: time.Now}, WithMaxResultChars(50))
	require.NoError(t, err)
	res, err := r.Dispatch(context.Background(), string(EscalateToTier2), map[string]any{"issue_summary": "x"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(res)), 50)
}
