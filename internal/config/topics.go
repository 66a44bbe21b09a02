package config

const (
	// TopicTicketCreated carries a JSON ticket event for every support ticket opened by the agent.
	TopicTicketCreated = "ticket.created"

	// TopicEscalationCreated carries a JSON escalation event for every Tier 2 hand-off.
	TopicEscalationCreated = "escalation.created"
)
