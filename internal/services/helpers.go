package services

import (
	"cmp"
	"context"
	"strings"
)

// normaliseIDs trims ids and drops blanks and repeats, keeping first-seen
// order. It returns nil when nothing is left.
func normaliseIDs(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// defaultIfEmpty returns value trimmed, or fallback when value is blank.
func defaultIfEmpty(value, fallback string) string {
	return cmp.Or(strings.TrimSpace(value), fallback)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
