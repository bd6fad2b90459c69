// Package config loads the engine configuration. The JSON file is searched
// at ./.adoptsim/config.json first, then ~/.adoptsim/config.json; a missing
// file yields defaults. API keys and endpoints may be overridden through
// environment variables so credentials stay out of the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the full engine configuration.
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	LLM        LLMConfig        `json:"llm"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Store      StoreConfig      `json:"store"`
	Fixtures   FixturesConfig   `json:"fixtures"`
	Server     ServerConfig     `json:"server"`
	Simulation SimulationConfig `json:"simulation"`
}

// LoggingConfig mirrors what internal/logging reads from the same file.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
}

// LLMConfig selects and credentials the generation backends.
type LLMConfig struct {
	// Provider: "gemini", "openai", "ollama" or "mock"
	Provider string `json:"provider"`

	GeminiAPIKeys []string `json:"gemini_api_keys"`
	GeminiModel   string   `json:"gemini_model"`

	OpenAIBaseURL string `json:"openai_base_url"`
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIModel   string `json:"openai_model"`

	OllamaEndpoint string `json:"ollama_endpoint"`
	OllamaModel    string `json:"ollama_model"`

	// Worker mirrors Provider for the cheap-validation backend; empty means
	// route everything to the primary.
	Worker string `json:"worker"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider: "genai", "ollama" or "hash"
	Provider       string `json:"provider"`
	OllamaEndpoint string `json:"ollama_endpoint"`
	OllamaModel    string `json:"ollama_model"`
	GenAIModel     string `json:"genai_model"`
}

// StoreConfig locates the retrieval database.
type StoreConfig struct {
	Path string `json:"path"`
}

// FixturesConfig locates the fixture bundle.
type FixturesConfig struct {
	Dir   string `json:"dir"`
	Watch bool   `json:"watch"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// SimulationConfig holds run defaults overridable per scenario file.
type SimulationConfig struct {
	Turns       int     `json:"turns"`
	Temperature float64 `json:"temperature"`
	Seed        int64   `json:"seed"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		LLM: LLMConfig{
			Provider:       "mock",
			GeminiModel:    "gemini-2.0-flash",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "llama3.2",
		},
		Embedding: EmbeddingConfig{
			Provider:       "hash",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Store:    StoreConfig{Path: ".adoptsim/store.db"},
		Fixtures: FixturesConfig{Dir: "fixtures"},
		Server:   ServerConfig{Addr: ":8080"},
		Simulation: SimulationConfig{
			Turns:       6,
			Temperature: 0.7,
			Seed:        42,
		},
	}
}

// Load reads the config file and applies environment overrides.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	path, err := findConfigFile(workspace)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// findConfigFile checks workspace-local config first, then the home
// directory. Empty string means no file found.
func findConfigFile(workspace string) (string, error) {
	local := filepath.Join(workspace, ".adoptsim", "config.json")
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// No home directory is fine; defaults apply.
		return "", nil
	}
	global := filepath.Join(home, ".adoptsim", "config.json")
	if _, err := os.Stat(global); err == nil {
		return global, nil
	}
	return "", nil
}

// applyEnvOverrides lets credentials and endpoints come from the
// environment. GEMINI_API_KEY_2 and _3 extend the rotation pool.
func applyEnvOverrides(cfg *Config) {
	var geminiKeys []string
	for _, name := range []string{"GEMINI_API_KEY", "GEMINI_API_KEY_2", "GEMINI_API_KEY_3"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			geminiKeys = append(geminiKeys, v)
		}
	}
	if len(geminiKeys) > 0 {
		cfg.LLM.GeminiAPIKeys = geminiKeys
		if cfg.LLM.Provider == "mock" {
			cfg.LLM.Provider = "gemini"
		}
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.OpenAIBaseURL = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.LLM.OllamaEndpoint = v
		cfg.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("ADOPTSIM_STORE"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("ADOPTSIM_FIXTURES"); v != "" {
		cfg.Fixtures.Dir = v
	}
}

// Save writes the config to the workspace-local path, creating the
// directory when needed.
func Save(workspace string, cfg *Config) error {
	dir := filepath.Join(workspace, ".adoptsim")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}
