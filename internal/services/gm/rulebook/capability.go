package rulebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/integerman/jaimes/internal/services/gm/capability"
)

// CapabilitySearch is the name of the rulebook search capability.
const CapabilitySearch = "search_rulebook"

// Capability exposes Search to models. Results are rendered as text with
// their source and heading.
func Capability(store *Store, limit int) capability.Capability {
	return capability.New(CapabilitySearch,
		"Searches the rulebook for passages relevant to a question about game rules.",
		[]capability.Parameter{{Name: "query", Description: "words describing the rule to look up", Required: true}},
		func(ctx context.Context, args capability.Args) (string, error) {
			hits, err := store.Search(ctx, args.Get("query"), limit)
			if err != nil {
				return "", err
			}
			return FormatHits(hits), nil
		})
}

// FormatHits renders hits for a model.
func FormatHits(hits []Hit) string {
	if len(hits) == 0 {
		return "No matching rules found."
	}
	var b strings.Builder
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "[%s", hit.Title)
		if hit.Heading != "" && hit.Heading != hit.Title {
			fmt.Fprintf(&b, " > %s", hit.Heading)
		}
		b.WriteString("]\n")
		b.WriteString(hit.Body)
	}
	return b.String()
}
