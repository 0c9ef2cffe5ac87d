// Package config provides configuration for the orchestrator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StageBudgets holds the per-stage wall-clock budgets.
type StageBudgets struct {
	VisualLabeling  time.Duration
	TemporalContext time.Duration
	ToolRouting     time.Duration
	Synthesis       time.Duration
	Guardrail       time.Duration
}

// ModelTarget names one inference endpoint + model pair.
type ModelTarget struct {
	BaseURL string
	Model   string
}

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database (runs, events, blobs)
	DatabaseURL string

	// Collaborator endpoints
	Labeling  ModelTarget
	Synthesis ModelTarget
	Judge     ModelTarget
	EmbedURL  string
	SearchURL string

	// Transcript source (tiered)
	TranscriptURL        string
	TranscriptAltURL     string
	TranscriptAltToken   string
	TranscriptExtractURL string
	TranscriptCeiling    time.Duration

	// API key pool, rotated round-robin across model calls
	APIKeys []string

	// Pipeline policy
	Budgets               StageBudgets
	MaxCorrectionAttempts int
	TranscriptWindow      time.Duration

	// Blob and event-buffer lifetimes
	BlobTTL         time.Duration
	EventBufferSize int
	EventGrace      time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		DatabaseURL: getEnv("DATABASE_URL", "file:framelens.db?cache=shared&mode=rwc"),

		Labeling: ModelTarget{
			BaseURL: getEnv("LABELING_URL", "http://localhost:4000"),
			Model:   getEnv("LABELING_MODEL", "gemini-2.5-flash"),
		},
		Synthesis: ModelTarget{
			BaseURL: getEnv("SYNTHESIS_URL", "http://localhost:4000"),
			Model:   getEnv("SYNTHESIS_MODEL", "gemini-2.5-pro"),
		},
		Judge: ModelTarget{
			BaseURL: getEnv("JUDGE_URL", "http://localhost:4001"),
			Model:   getEnv("JUDGE_MODEL", "gpt-4o-mini"),
		},
		EmbedURL:  getEnv("EMBED_URL", "http://localhost:4002"),
		SearchURL: getEnv("SEARCH_URL", "http://localhost:4003"),

		TranscriptURL:        getEnv("TRANSCRIPT_URL", "http://localhost:4004"),
		TranscriptAltURL:     getEnv("TRANSCRIPT_ALT_URL", ""),
		TranscriptAltToken:   getEnv("TRANSCRIPT_ALT_TOKEN", ""),
		TranscriptExtractURL: getEnv("TRANSCRIPT_EXTRACT_URL", ""),
		TranscriptCeiling:    getEnvDuration("TRANSCRIPT_CEILING_MS", 7000),

		APIKeys: splitKeys(getEnv("MODEL_API_KEYS", "")),

		Budgets: StageBudgets{
			VisualLabeling:  getEnvDuration("BUDGET_LABELING_MS", 5000),
			TemporalContext: getEnvDuration("BUDGET_TEMPORAL_MS", 8000),
			ToolRouting:     getEnvDuration("BUDGET_TOOL_ROUTING_MS", 10000),
			Synthesis:       getEnvDuration("BUDGET_SYNTHESIS_MS", 12000),
			Guardrail:       getEnvDuration("BUDGET_GUARDRAIL_MS", 8000),
		},
		MaxCorrectionAttempts: getEnvInt("MAX_CORRECTION_ATTEMPTS", 3),
		TranscriptWindow:      getEnvDuration("TRANSCRIPT_WINDOW_MS", 120000),

		BlobTTL:         getEnvDuration("BLOB_TTL_MS", 600000),
		EventBufferSize: getEnvInt("EVENT_BUFFER_SIZE", 256),
		EventGrace:      getEnvDuration("EVENT_GRACE_MS", 60000),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// Validate rejects configurations the pipeline cannot run under. The judge
// must be an independent provider from both labeling and synthesis so a
// hallucination cannot validate itself.
func (c *Config) Validate() error {
	if c.MaxCorrectionAttempts < 1 {
		return fmt.Errorf("MAX_CORRECTION_ATTEMPTS must be >= 1")
	}
	if c.Judge == c.Labeling {
		return fmt.Errorf("judge must not share endpoint and model with labeling")
	}
	if c.Judge == c.Synthesis {
		return fmt.Errorf("judge must not share endpoint and model with synthesis")
	}
	if c.EventBufferSize < 1 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be >= 1")
	}
	return nil
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
