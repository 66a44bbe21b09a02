package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"itassist/internal/retrieval"
)

const (
	KnowledgeUnavailableText = "ERROR: Knowledge base is not available. Cannot retrieve documentation."
	NoDocumentationText      = "No relevant documentation found in the knowledge base for this query."
)

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

func knowledgeDescriptor(s Searcher, k int) Descriptor {
	return Descriptor{
		Name: SearchKnowledgeBase,
		Description: "Search the internal IT knowledge base for troubleshooting guides, hardware repair procedures, " +
			"driver fixes, OS recovery steps, and technical documentation for enterprise laptops and PCs. " +
			"Always use this tool first when a user reports any hardware or software issue.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query": {Type: "string", MinLength: 1, Description: "Issue description and laptop model to search for."},
			},
			Required: []string{"query"},
		},
		Handler: func(ctx context.Context, args Args) (string, error) {
			if s == nil {
				return KnowledgeUnavailableText, nil
			}
			results, err := s.Search(ctx, args.String("query"), k)
			if errors.Is(err, retrieval.ErrUnavailable) {
				return KnowledgeUnavailableText, nil
			}
			if err != nil {
				return "", err
			}
			return FormatPassages(results), nil
		},
	}
}

// FormatPassages renders search results the way the engine expects to read
// them: numbered chunks separated by horizontal rules.
func FormatPassages(results []retrieval.Result) string {
	if len(results) == 0 {
		return NoDocumentationText
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Chunk %d]\n%s", i+1, r.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
