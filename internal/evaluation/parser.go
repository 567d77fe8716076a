package evaluation

import (
	"strings"

	"signalscanner/internal/domain"
)

const (
	summaryMarker   = "Summary:"
	ratingMarker    = "Rating:"
	rationaleMarker = "Rationale:"
)

// Parse converts the provider's free-text response into a fixed-shape
// Evaluation. Field markers are matched case-sensitively at column zero of
// the raw line; an indented marker is just continuation text. Non-empty
// lines following a marker are space-joined onto the current field, so
// multi-line bodies survive. Parse never fails: text without any marker
// yields an all-empty Evaluation, which callers treat as a data-quality
// warning rather than an error.
func Parse(raw string) domain.Evaluation {
	var ev domain.Evaluation

	current := (*string)(nil)
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, summaryMarker):
			ev.Summary = strings.TrimSpace(strings.TrimPrefix(line, summaryMarker))
			current = &ev.Summary
		case strings.HasPrefix(line, ratingMarker):
			ev.Rating = strings.TrimSpace(strings.TrimPrefix(line, ratingMarker))
			current = &ev.Rating
		case strings.HasPrefix(line, rationaleMarker):
			ev.Rationale = strings.TrimSpace(strings.TrimPrefix(line, rationaleMarker))
			current = &ev.Rationale
		default:
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || current == nil {
				continue
			}
			if *current == "" {
				*current = trimmed
			} else {
				*current += " " + trimmed
			}
		}
	}

	return ev
}
