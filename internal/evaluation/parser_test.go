package evaluation

import (
	"testing"

	"signalscanner/internal/domain"
)

func TestParseMultilineFields(t *testing.T) {
	t.Parallel()

	raw := "Summary: A\nB\nRating: 7\nRationale: C\nD"
	ev := Parse(raw)

	if ev.Summary != "A B" {
		t.Fatalf("unexpected summary: %q", ev.Summary)
	}
	if ev.Rating != "7" {
		t.Fatalf("unexpected rating: %q", ev.Rating)
	}
	if ev.Rationale != "C D" {
		t.Fatalf("unexpected rationale: %q", ev.Rationale)
	}
}

func TestParseWellFormedResponse(t *testing.T) {
	t.Parallel()

	raw := "Summary: Kubernetes 1.30 released with new features.\nRating: High\nRationale: Directly relevant to platform teams."
	ev := Parse(raw)

	want := domain.Evaluation{
		Summary:   "Kubernetes 1.30 released with new features.",
		Rating:    "High",
		Rationale: "Directly relevant to platform teams.",
	}
	if ev != want {
		t.Fatalf("unexpected evaluation: %+v", ev)
	}
}

func TestParseNoMarkers(t *testing.T) {
	t.Parallel()

	ev := Parse("The model rambled without any structure.\nMore rambling.")

	if !ev.Empty() {
		t.Fatalf("expected empty evaluation, got %+v", ev)
	}
}

func TestParseMissingSections(t *testing.T) {
	t.Parallel()

	ev := Parse("Summary: Something happened\nRating: Medium")

	if ev.Summary != "Something happened" {
		t.Fatalf("unexpected summary: %q", ev.Summary)
	}
	if ev.Rating != "Medium" {
		t.Fatalf("unexpected rating: %q", ev.Rating)
	}
	if ev.Rationale != "" {
		t.Fatalf("expected empty rationale, got %q", ev.Rationale)
	}
}

func TestParseIgnoresLeadingProseAndBlankLines(t *testing.T) {
	t.Parallel()

	raw := "Here is my analysis:\n\nSummary: First part\n\nsecond part\nRating: Low\n"
	ev := Parse(raw)

	if ev.Summary != "First part second part" {
		t.Fatalf("unexpected summary: %q", ev.Summary)
	}
	if ev.Rating != "Low" {
		t.Fatalf("unexpected rating: %q", ev.Rating)
	}
}

func TestParseMarkersAreCaseSensitive(t *testing.T) {
	t.Parallel()

	ev := Parse("summary: lowercase is not a marker\nRating: High")

	if ev.Summary != "" {
		t.Fatalf("lowercase marker should not capture, got %q", ev.Summary)
	}
	if ev.Rating != "High" {
		t.Fatalf("unexpected rating: %q", ev.Rating)
	}
}

func TestParseIndentedMarkerIsContinuation(t *testing.T) {
	t.Parallel()

	raw := "Summary: The gist.\n  Rating: High appears mid-sentence here\nRating: Low"
	ev := Parse(raw)

	if ev.Summary != "The gist. Rating: High appears mid-sentence here" {
		t.Fatalf("indented marker must join the current field, got %q", ev.Summary)
	}
	if ev.Rating != "Low" {
		t.Fatalf("unexpected rating: %q", ev.Rating)
	}
}

func TestClassifyRating(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want RatingLevel
	}{
		{"High", RatingHigh},
		{" medium ", RatingMedium},
		{"LOW", RatingLow},
		{"9", RatingHigh},
		{"7/10", RatingMedium},
		{"2", RatingLow},
		{"0", RatingUnknown},
		{"excellent", RatingUnknown},
		{"", RatingUnknown},
	}

	for _, tc := range cases {
		if got := ClassifyRating(tc.raw); got != tc.want {
			t.Fatalf("ClassifyRating(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
