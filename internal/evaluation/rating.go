package evaluation

import (
	"strconv"
	"strings"
)

// RatingLevel is an optional typed view over the free-form rating string.
// The default pipeline keeps ratings verbatim; this accessor exists for
// callers that want to filter or sort results without reinventing the
// normalization.
type RatingLevel int

const (
	RatingUnknown RatingLevel = iota
	RatingLow
	RatingMedium
	RatingHigh
)

func (l RatingLevel) String() string {
	switch l {
	case RatingLow:
		return "Low"
	case RatingMedium:
		return "Medium"
	case RatingHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// ClassifyRating maps a free-form rating string onto a RatingLevel. It
// accepts the categorical High/Medium/Low vocabulary as well as numeric
// ratings like "7" or "7/10"; anything else is RatingUnknown.
func ClassifyRating(raw string) RatingLevel {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "high":
		return RatingHigh
	case "medium", "med":
		return RatingMedium
	case "low":
		return RatingLow
	}

	if idx := strings.IndexByte(value, '/'); idx > 0 {
		value = value[:idx]
	}
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		switch {
		case n >= 8:
			return RatingHigh
		case n >= 5:
			return RatingMedium
		case n >= 1:
			return RatingLow
		}
	}

	return RatingUnknown
}
