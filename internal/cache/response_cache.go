package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"signalscanner/internal/domain"
	"signalscanner/internal/ports"
)

// ResponseCache is the durable evaluation store. Entries are keyed by the
// article fingerprint (title:summary:link) and are only valid for the prompt
// template they were produced under: loading a file whose stored prompt
// differs from the live one drops every response before any lookup happens.
type ResponseCache struct {
	path   string
	prompt string
	logger *slog.Logger

	responses map[string]domain.Evaluation
}

var _ ports.EvaluationCache = (*ResponseCache)(nil)

type responseCacheFile struct {
	Prompt    string                       `json:"prompt"`
	Responses map[string]domain.Evaluation `json:"responses"`
}

// NewResponseCache loads the store at path and reconciles it against the
// live prompt template. A missing file yields an empty cache; a corrupt file
// is logged and discarded rather than failing the run.
func NewResponseCache(path, prompt string, logger *slog.Logger) *ResponseCache {
	c := &ResponseCache{
		path:      path,
		prompt:    prompt,
		logger:    logger,
		responses: map[string]domain.Evaluation{},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.warn("response cache unreadable, starting empty", "path", path, "error", err)
		}
		return c
	}

	var file responseCacheFile
	if err := json.Unmarshal(raw, &file); err != nil {
		c.warn("response cache corrupt, starting empty", "path", path, "error", err)
		return c
	}

	if file.Prompt != prompt {
		c.warn("prompt template changed, dropping cached evaluations",
			"path", path,
			"stored_fingerprint", fingerprint(file.Prompt),
			"live_fingerprint", fingerprint(prompt),
			"dropped", len(file.Responses))
		return c
	}

	if file.Responses != nil {
		c.responses = file.Responses
	}
	return c
}

// Get returns the cached evaluation for key, if any.
func (c *ResponseCache) Get(key string) (domain.Evaluation, bool) {
	ev, ok := c.responses[key]
	return ev, ok
}

// Put stores an evaluation under key.
func (c *ResponseCache) Put(key string, ev domain.Evaluation) {
	c.responses[key] = ev
}

// Len reports the number of cached evaluations.
func (c *ResponseCache) Len() int {
	return len(c.responses)
}

// Fingerprint identifies the prompt template version this cache is bound to.
func (c *ResponseCache) Fingerprint() string {
	return fingerprint(c.prompt)
}

// Save rewrites the whole file. The write is not incremental; the in-memory
// map is the source of truth for the current run.
func (c *ResponseCache) Save() error {
	file := responseCacheFile{Prompt: c.prompt, Responses: c.responses}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("write response cache: %w", err)
	}
	return nil
}

func (c *ResponseCache) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func fingerprint(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}
