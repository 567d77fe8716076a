package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"signalscanner/internal/config"
	"signalscanner/internal/domain"
	"signalscanner/internal/ports"
)

const (
	defaultHostedEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultLocalBaseURL   = "http://localhost:11434/v1"
	requestTimeout        = 60 * time.Second

	// Low but non-zero: consistent judgments without robotic phrasing.
	temperature = 0.2
	maxTokens   = 500
)

// HostedProvider evaluates articles against a hosted chat-completion API.
type HostedProvider struct {
	client chatClient
}

// LocalProvider evaluates articles against a locally hosted model server
// exposing the same chat-completion request shape.
type LocalProvider struct {
	client chatClient
}

var (
	_ ports.Evaluator = (*HostedProvider)(nil)
	_ ports.Evaluator = (*LocalProvider)(nil)
)

// New constructs the provider selected by configuration. Backend selection
// is immutable for the provider's lifetime; a settings change constructs a
// new provider instead of mutating this one.
func New(cfg config.EvaluatorConfig, httpClient *http.Client) (ports.Evaluator, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	switch cfg.Backend {
	case config.BackendHosted:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("hosted backend requires an API key: %w", domain.ErrRunFatal)
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultHostedEndpoint
		}
		return &HostedProvider{client: chatClient{
			backend:    config.BackendHosted,
			endpoint:   endpoint,
			model:      cfg.Model,
			apiKey:     cfg.APIKey,
			prompt:     Prompt{Template: cfg.Prompt},
			httpClient: httpClient,
		}}, nil
	case config.BackendLocal:
		base := cfg.Endpoint
		if base == "" {
			base = defaultLocalBaseURL
		}
		return &LocalProvider{client: chatClient{
			backend:    config.BackendLocal,
			endpoint:   strings.TrimSuffix(base, "/") + "/chat/completions",
			model:      cfg.Model,
			prompt:     Prompt{Template: cfg.Prompt},
			httpClient: httpClient,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown evaluator backend %q: %w", cfg.Backend, domain.ErrRunFatal)
	}
}

// Evaluate scores one article and returns the raw model text.
func (p *HostedProvider) Evaluate(ctx context.Context, title, summary, link string) (string, error) {
	return p.client.complete(ctx, title, summary, link)
}

// Backend identifies the provider variant in logs and diagnostics.
func (p *HostedProvider) Backend() string { return p.client.backend }

// Evaluate scores one article and returns the raw model text.
func (p *LocalProvider) Evaluate(ctx context.Context, title, summary, link string) (string, error) {
	return p.client.complete(ctx, title, summary, link)
}

// Backend identifies the provider variant in logs and diagnostics.
func (p *LocalProvider) Backend() string { return p.client.backend }

// chatClient is the request core shared by both provider variants.
type chatClient struct {
	backend    string
	endpoint   string
	model      string
	apiKey     string
	prompt     Prompt
	httpClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c chatClient) complete(ctx context.Context, title, summary, link string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: c.prompt.Render(title, summary, link)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", c.failure(domain.ProviderBadResponse, 0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", c.failure(domain.ProviderTransport, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.failure(classifyTransport(err), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := domain.ProviderBadResponse
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = domain.ProviderAuth
		case http.StatusTooManyRequests:
			kind = domain.ProviderRateLimit
		}
		return "", c.failure(kind, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(snippet))))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", c.failure(domain.ProviderBadResponse, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", c.failure(domain.ProviderBadResponse, resp.StatusCode, errors.New("response has no choices"))
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (c chatClient) failure(kind domain.ProviderErrorKind, status int, err error) error {
	return &domain.ProviderError{Kind: kind, Backend: c.backend, Status: status, Err: err}
}

func classifyTransport(err error) domain.ProviderErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ProviderTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ProviderTimeout
	}
	return domain.ProviderTransport
}
