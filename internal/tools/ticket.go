package tools

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var slaByPriority = map[Priority]string{
	PriorityCritical: "1 hour response / 4 hour resolution",
	PriorityHigh:     "2 hour response / 8 hour resolution",
	PriorityMedium:   "4 hour response / 24 hour resolution",
	PriorityLow:      "8 hour response / 72 hour resolution",
}

const timestampLayout = "2006-01-02 15:04:05 UTC"

// EventPublisher is satisfied by *nsq.Producer.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// TicketEvent is published when a ticket is opened.
type TicketEvent struct {
	TicketID     string    `json:"ticketId"`
	IssueSummary string    `json:"issueSummary"`
	LaptopModel  string    `json:"laptopModel"`
	Priority     Priority  `json:"priority"`
	SLA          string    `json:"sla"`
	CreatedAt    time.Time `json:"createdAt"`
}

// newID returns prefix followed by n upper-case hex characters of a random
// UUID.
func newID(prefix string, n int) string {
	id := uuid.New()
	return prefix + strings.ToUpper(hex.EncodeToString(id[:]))[:n]
}

func publish(ctx context.Context, p EventPublisher, topic string, event any) {
	if p == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		slog.WarnContext(ctx, "failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := p.Publish(topic, body); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}

func ticketDescriptor(deps Dependencies) Descriptor {
	return Descriptor{
		Name: CreateSupportTicket,
		Description: "Create a formal IT support ticket to track the user's issue in the enterprise ticketing system. " +
			"Use this for every reported issue so it can be tracked, assigned, and followed up. " +
			"Priority must be one of: Low, Medium, High, Critical.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"issue_summary": {Type: "string", MinLength: 1, Description: "Short summary of the reported issue."},
				"laptop_model":  {Type: "string", MinLength: 1, Description: "Make and model of the affected device."},
				"priority": {
					Type:        "string",
					Description: "Critical = cannot work at all, High = major function broken, Medium = degraded performance, Low = cosmetic or minor.",
					Enum:        []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh), string(PriorityCritical)},
					Default:     string(PriorityMedium),
				},
			},
			Required: []string{"issue_summary", "laptop_model"},
		},
		Handler: func(ctx context.Context, args Args) (string, error) {
			priority := Priority(args.String("priority"))
			ev := TicketEvent{
				TicketID:     newID("INC-", 8),
				IssueSummary: args.String("issue_summary"),
				LaptopModel:  args.String("laptop_model"),
				Priority:     priority,
				SLA:          slaByPriority[priority],
				CreatedAt:    deps.Now().UTC(),
			}
			publish(ctx, deps.Publisher, deps.TicketTopic, ev)

			return fmt.Sprintf("**Ticket Created Successfully**\n\n"+
				"- **Ticket ID**: `%s`\n"+
				"- **Issue**: %s\n"+
				"- **Device**: %s\n"+
				"- **Priority**: %s\n"+
				"- **SLA**: %s\n"+
				"- **Created**: %s\n"+
				"- **Status**: Open - Assigned to IT Support Queue\n"+
				"- **Tracking**: it-portal.company.internal/tickets/%s",
				ev.TicketID, ev.IssueSummary, ev.LaptopModel, ev.Priority, ev.SLA,
				ev.CreatedAt.Format(timestampLayout), ev.TicketID), nil
		},
	}
}
