package tools

import "time"

const (
	DefaultTicketTopic     = "ticket.created"
	DefaultEscalationTopic = "escalation.created"
)

// Dependencies are the collaborators the built-in tools need. Only Searcher
// is required for meaningful answers; a nil Publisher disables events.
type Dependencies struct {
	Searcher        Searcher
	TopK            int
	Publisher       EventPublisher
	TicketTopic     string
	EscalationTopic string
	Now             func() time.Time
}

// Default registers the full tool set in prompt order.
func Default(deps Dependencies, opts ...RegistryOption) (*Registry, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TicketTopic == "" {
		deps.TicketTopic = DefaultTicketTopic
	}
	if deps.EscalationTopic == "" {
		deps.EscalationTopic = DefaultEscalationTopic
	}

	r := NewRegistry(opts...)
	for _, d := range []Descriptor{
		knowledgeDescriptor(deps.Searcher, deps.TopK),
		ticketDescriptor(deps),
		warrantyDescriptor(deps),
		escalationDescriptor(deps),
	} {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
