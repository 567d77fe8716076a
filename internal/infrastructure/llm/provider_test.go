package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"signalscanner/internal/config"
	"signalscanner/internal/domain"
)

func completionResponse(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
}

func TestPromptRender(t *testing.T) {
	t.Parallel()

	p := Prompt{Template: "Title: {title}\nSummary: {summary}\nLink: {link}"}
	got := p.Render("A", "B", "https://example.com")
	want := "Title: A\nSummary: B\nLink: https://example.com"
	if got != want {
		t.Fatalf("unexpected render:\n%s", got)
	}
}

func TestHostedProviderRequestShape(t *testing.T) {
	t.Parallel()

	var captured chatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, completionResponse("Summary: ok\nRating: High\nRationale: fine"))
	}))
	defer server.Close()

	provider, err := New(config.EvaluatorConfig{
		Backend:  config.BackendHosted,
		Model:    "gpt-3.5-turbo",
		Endpoint: server.URL,
		APIKey:   "sk-test",
		Prompt:   "Article: {title} / {summary} / {link}",
	}, server.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if provider.Backend() != config.BackendHosted {
		t.Fatalf("unexpected backend: %s", provider.Backend())
	}

	raw, err := provider.Evaluate(context.Background(), "T", "S", "L")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !strings.Contains(raw, "Rating: High") {
		t.Fatalf("unexpected raw response: %q", raw)
	}

	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", auth)
	}
	if captured.Model != "gpt-3.5-turbo" {
		t.Fatalf("unexpected model: %q", captured.Model)
	}
	if captured.Temperature != temperature || captured.MaxTokens != maxTokens {
		t.Fatalf("unexpected sampling params: %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
	if captured.Messages[1].Content != "Article: T / S / L" {
		t.Fatalf("placeholders not substituted: %q", captured.Messages[1].Content)
	}
}

func TestLocalProviderDerivesChatCompletionsPath(t *testing.T) {
	t.Parallel()

	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		fmt.Fprint(w, completionResponse("Summary: local\nRating: Low\nRationale: meh"))
	}))
	defer server.Close()

	provider, err := New(config.EvaluatorConfig{
		Backend:  config.BackendLocal,
		Model:    "llama3",
		Endpoint: server.URL + "/v1",
		Prompt:   "{title}",
	}, server.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := provider.Evaluate(context.Background(), "T", "S", "L"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if path != "/v1/chat/completions" {
		t.Fatalf("unexpected request path: %q", path)
	}
}

func TestHostedProviderRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(config.EvaluatorConfig{Backend: config.BackendHosted, Model: "m"}, nil)
	if !errors.Is(err, domain.ErrRunFatal) {
		t.Fatalf("expected run-fatal configuration error, got %v", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := New(config.EvaluatorConfig{Backend: "cloudy"}, nil)
	if !errors.Is(err, domain.ErrRunFatal) {
		t.Fatalf("expected run-fatal configuration error, got %v", err)
	}
}

func TestProviderErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   domain.ProviderErrorKind
	}{
		{http.StatusUnauthorized, domain.ProviderAuth},
		{http.StatusForbidden, domain.ProviderAuth},
		{http.StatusTooManyRequests, domain.ProviderRateLimit},
		{http.StatusInternalServerError, domain.ProviderBadResponse},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))

		provider, err := New(config.EvaluatorConfig{
			Backend:  config.BackendHosted,
			Model:    "m",
			Endpoint: server.URL,
			APIKey:   "k",
			Prompt:   "{title}",
		}, server.Client())
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		_, err = provider.Evaluate(context.Background(), "T", "S", "L")
		var provErr *domain.ProviderError
		if !errors.As(err, &provErr) {
			t.Fatalf("status %d: expected ProviderError, got %v", tc.status, err)
		}
		if provErr.Kind != tc.kind {
			t.Fatalf("status %d: expected kind %s, got %s", tc.status, tc.kind, provErr.Kind)
		}
		if provErr.Status != tc.status {
			t.Fatalf("expected status %d, got %d", tc.status, provErr.Status)
		}
		server.Close()
	}
}

func TestProviderMalformedBodyIsBadResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	}))
	defer server.Close()

	provider, err := New(config.EvaluatorConfig{
		Backend:  config.BackendHosted,
		Model:    "m",
		Endpoint: server.URL,
		APIKey:   "k",
		Prompt:   "{title}",
	}, server.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = provider.Evaluate(context.Background(), "T", "S", "L")
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) || provErr.Kind != domain.ProviderBadResponse {
		t.Fatalf("expected bad_response ProviderError, got %v", err)
	}
}

func TestProviderEmptyChoicesIsBadResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	provider, err := New(config.EvaluatorConfig{
		Backend:  config.BackendHosted,
		Model:    "m",
		Endpoint: server.URL,
		APIKey:   "k",
		Prompt:   "{title}",
	}, server.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = provider.Evaluate(context.Background(), "T", "S", "L")
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) || provErr.Kind != domain.ProviderBadResponse {
		t.Fatalf("expected bad_response ProviderError, got %v", err)
	}
}
