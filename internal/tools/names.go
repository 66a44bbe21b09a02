package tools

// Name identifies one member of the closed tool set. The reasoning engine
// refers to tools only by these strings.
type Name string

const (
	SearchKnowledgeBase Name = "search_it_knowledge_base"
	CreateSupportTicket Name = "create_support_ticket"
	CheckWarrantyStatus Name = "check_warranty_status"
	EscalateToTier2     Name = "escalate_to_tier2"
)

// Names lists every tool in prompt order.
var Names = []Name{
	SearchKnowledgeBase,
	CreateSupportTicket,
	CheckWarrantyStatus,
	EscalateToTier2,
}

var displayNames = map[Name]string{
	SearchKnowledgeBase: "Searching Knowledge Base",
	CreateSupportTicket: "Creating Support Ticket",
	CheckWarrantyStatus: "Checking Warranty Status",
	EscalateToTier2:     "Escalating to Tier 2",
}

// ParseName maps a raw engine-supplied name onto the closed set.
func ParseName(s string) (Name, bool) {
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// DisplayName returns the user-facing label for a tool, or the raw name when
// none is defined.
func DisplayName(raw string) string {
	if label, ok := displayNames[Name(raw)]; ok {
		return label
	}
	return raw
}
