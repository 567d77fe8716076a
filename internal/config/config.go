package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "SIGNAL_SCANNER_CONFIG"
	openAIKeyEnv     = "OPENAI_API_KEY"
	gptModelEnv      = "GPT_MODEL"
	gptPromptEnv     = "GPT_PROMPT"
	useOllamaEnv     = "USE_OLLAMA"
	ollamaBaseURLEnv = "OLLAMA_BASE_URL"
	ollamaModelEnv   = "OLLAMA_MODEL"
)

// Backend names accepted by the evaluator configuration.
const (
	BackendHosted = "hosted"
	BackendLocal  = "local"
)

// DefaultPrompt mirrors the analyst prompt the scanner ships with. The
// {title}/{summary}/{link} placeholders are substituted per article.
const DefaultPrompt = `You are a technology analyst specializing in cloud computing and enterprise technology.
Analyze the following article and provide:
1. A concise summary of the key points
2. A rating (High/Medium/Low) based on its relevance to CTOs and technology leaders
3. A brief rationale for the rating

Article:
Title: {title}
Summary: {summary}
Link: {link}

Format your response as:
Summary: [your summary]
Rating: [High/Medium/Low]
Rationale: [your rationale]`

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Scan      ScanConfig      `yaml:"scan"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Paths     PathsConfig     `yaml:"paths"`
	Server    ServerConfig    `yaml:"server"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ScanConfig bounds a single pipeline run.
type ScanConfig struct {
	LookbackDays         int  `yaml:"lookbackDays"`
	MaxEntriesPerFeed    int  `yaml:"maxEntriesPerFeed"`
	EnrichEmptySummaries bool `yaml:"enrichEmptySummaries"`
}

// EvaluatorConfig selects and parameterizes the LLM backend. Backend is fixed
// for the lifetime of one provider; changing it means constructing a new one.
type EvaluatorConfig struct {
	Backend  string `yaml:"backend"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	Prompt   string `yaml:"prompt"`
}

// PathsConfig locates the on-disk stores and artifacts.
type PathsConfig struct {
	DataDir       string `yaml:"dataDir"`
	EntryCache    string `yaml:"entryCache"`
	ResponseCache string `yaml:"responseCache"`
	FeedsFile     string `yaml:"feedsFile"`
	CustomFeeds   string `yaml:"customFeedsFile"`
	SettingsFile  string `yaml:"settingsFile"`
	ReportsDir    string `yaml:"reportsDir"`
	HistoryDB     string `yaml:"historyDb"`
}

// ServerConfig configures the optional HTTP front-end.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillPathDefaults()

	return cfg
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Scan.LookbackDays < 1 || c.Scan.LookbackDays > 30 {
		return fmt.Errorf("scan.lookbackDays must be within [1,30], got %d", c.Scan.LookbackDays)
	}
	switch c.Evaluator.Backend {
	case BackendHosted, BackendLocal:
	default:
		return fmt.Errorf("evaluator.backend must be %q or %q, got %q", BackendHosted, BackendLocal, c.Evaluator.Backend)
	}
	return nil
}

// LockFile is the run-serialization lock path, kept next to the cache files
// so overlapping runs against the same stores exclude each other.
func (c Config) LockFile() string {
	return filepath.Join(c.Paths.DataDir, "scan.lock")
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.Evaluator.APIKey = v
	}
	if v := os.Getenv(gptModelEnv); v != "" {
		c.Evaluator.Model = v
	}
	if v := os.Getenv(gptPromptEnv); v != "" {
		c.Evaluator.Prompt = v
	}
	if v := os.Getenv(useOllamaEnv); v == "true" || v == "1" {
		c.Evaluator.Backend = BackendLocal
		if c.Evaluator.Model == "" || c.Evaluator.Model == defaultConfig().Evaluator.Model {
			c.Evaluator.Model = "llama3"
		}
	}
	if v := os.Getenv(ollamaBaseURLEnv); v != "" && c.Evaluator.Backend == BackendLocal {
		c.Evaluator.Endpoint = v
	}
	if v := os.Getenv(ollamaModelEnv); v != "" && c.Evaluator.Backend == BackendLocal {
		c.Evaluator.Model = v
	}
}

func (c *Config) fillPathDefaults() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	join := func(current, name string) string {
		if current != "" {
			return current
		}
		return filepath.Join(c.Paths.DataDir, name)
	}
	c.Paths.EntryCache = join(c.Paths.EntryCache, "entry_cache.json")
	c.Paths.ResponseCache = join(c.Paths.ResponseCache, "response_cache.json")
	c.Paths.FeedsFile = join(c.Paths.FeedsFile, "feeds.json")
	c.Paths.CustomFeeds = join(c.Paths.CustomFeeds, "custom_feeds.json")
	c.Paths.SettingsFile = join(c.Paths.SettingsFile, "settings.json")
	c.Paths.ReportsDir = join(c.Paths.ReportsDir, "reports")
	c.Paths.HistoryDB = join(c.Paths.HistoryDB, "history.db")
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Scan.LookbackDays != 0 {
		base.Scan.LookbackDays = override.Scan.LookbackDays
	}
	if override.Scan.MaxEntriesPerFeed != 0 {
		base.Scan.MaxEntriesPerFeed = override.Scan.MaxEntriesPerFeed
	}
	if override.Scan.EnrichEmptySummaries {
		base.Scan.EnrichEmptySummaries = true
	}

	if override.Evaluator.Backend != "" {
		base.Evaluator.Backend = override.Evaluator.Backend
	}
	if override.Evaluator.Model != "" {
		base.Evaluator.Model = override.Evaluator.Model
	}
	if override.Evaluator.Endpoint != "" {
		base.Evaluator.Endpoint = override.Evaluator.Endpoint
	}
	if override.Evaluator.APIKey != "" {
		base.Evaluator.APIKey = override.Evaluator.APIKey
	}
	if override.Evaluator.Prompt != "" {
		base.Evaluator.Prompt = override.Evaluator.Prompt
	}

	if override.Paths.DataDir != "" {
		base.Paths.DataDir = override.Paths.DataDir
	}
	if override.Paths.EntryCache != "" {
		base.Paths.EntryCache = override.Paths.EntryCache
	}
	if override.Paths.ResponseCache != "" {
		base.Paths.ResponseCache = override.Paths.ResponseCache
	}
	if override.Paths.FeedsFile != "" {
		base.Paths.FeedsFile = override.Paths.FeedsFile
	}
	if override.Paths.CustomFeeds != "" {
		base.Paths.CustomFeeds = override.Paths.CustomFeeds
	}
	if override.Paths.SettingsFile != "" {
		base.Paths.SettingsFile = override.Paths.SettingsFile
	}
	if override.Paths.ReportsDir != "" {
		base.Paths.ReportsDir = override.Paths.ReportsDir
	}
	if override.Paths.HistoryDB != "" {
		base.Paths.HistoryDB = override.Paths.HistoryDB
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Scan: ScanConfig{
			LookbackDays:      7,
			MaxEntriesPerFeed: 0,
		},
		Evaluator: EvaluatorConfig{
			Backend:  BackendHosted,
			Model:    "gpt-3.5-turbo",
			Endpoint: "",
			Prompt:   DefaultPrompt,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}
