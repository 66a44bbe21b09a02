package tools

import (
	"context"
	"fmt"
	"time"
)

// EscalationEvent is published when an issue is handed to Tier 2.
type EscalationEvent struct {
	EscalationID string    `json:"escalationId"`
	TicketID     string    `json:"ticketId,omitempty"`
	IssueSummary string    `json:"issueSummary"`
	EscalatedAt  time.Time `json:"escalatedAt"`
}

func escalationDescriptor(deps Dependencies) Descriptor {
	return Descriptor{
		Name: EscalateToTier2,
		Description: "Escalate a complex or unresolvable issue to Tier 2 IT Support specialists. " +
			"Use this when the knowledge base does not contain a solution, when hardware replacement is confirmed needed, " +
			"or when the issue is business-critical. Optionally pass an existing ticket_id to link the escalation.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"issue_summary": {Type: "string", MinLength: 1, Description: "Summary of the issue and what has been tried."},
				"ticket_id":     {Type: "string", Description: "Existing ticket to link, e.g. INC-1A2B3C4D.", Default: ""},
			},
			Required: []string{"issue_summary"},
		},
		Handler: func(ctx context.Context, args Args) (string, error) {
			ev := EscalationEvent{
				EscalationID: newID("ESC-", 6),
				TicketID:     args.String("ticket_id"),
				IssueSummary: args.String("issue_summary"),
				EscalatedAt:  deps.Now().UTC(),
			}
			publish(ctx, deps.Publisher, deps.EscalationTopic, ev)

			ref := ""
			if ev.TicketID != "" {
				ref = fmt.Sprintf(" (linked to `%s`)", ev.TicketID)
			}
			return fmt.Sprintf("**Escalated to Tier 2 IT Support**%s\n\n"+
				"- **Escalation ID**: `%s`\n"+
				"- **Issue Summary**: %s\n"+
				"- **Escalated At**: %s\n"+
				"- **Tier 2 Team**: Senior Field Engineers & Systems Specialists\n"+
				"- **Expected Response**: Within 2 business hours\n"+
				"- **Contact Options**:\n"+
				"  - Email: tier2-support@company.com\n"+
				"  - Phone: Extension 4357 (HELP)\n"+
				"  - Teams: #it-tier2-support\n\n"+
				"A Tier 2 specialist will review the case and contact the user directly.",
				ref, ev.EscalationID, ev.IssueSummary, ev.EscalatedAt.Format(timestampLayout)), nil
		},
	}
}
