package domain

import (
	"errors"
	"fmt"
)

// FetchError reports a network or HTTP failure while reaching a feed URL.
// The orchestrator skips the feed and continues the run.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports that a feed body could not be coerced into entries by
// any strategy. The orchestrator skips the feed and continues the run.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %s: %s", e.URL, e.Reason)
}

// ProviderErrorKind classifies evaluation-call failures.
type ProviderErrorKind string

const (
	ProviderTimeout     ProviderErrorKind = "timeout"
	ProviderAuth        ProviderErrorKind = "auth"
	ProviderRateLimit   ProviderErrorKind = "rate_limit"
	ProviderBadResponse ProviderErrorKind = "bad_response"
	ProviderTransport   ProviderErrorKind = "transport"
)

// ProviderError wraps any failure of an evaluation call. Raw client errors
// never cross the provider boundary; they are folded into this type. Entries
// hitting a ProviderError are skipped and stay uncached so the next run
// retries them.
type ProviderError struct {
	Kind    ProviderErrorKind
	Backend string
	Status  int
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s provider: %s (http %d): %v", e.Backend, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s provider: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrRunFatal marks conditions that abort the whole run: unwritable cache
// files, missing credentials for the selected backend, or a held run lock.
// Wrap with fmt.Errorf("...: %w", ErrRunFatal) and test with errors.Is.
var ErrRunFatal = errors.New("run fatal")
