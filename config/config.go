package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// MemoryStore is the sqlite_path sentinel that selects the in-process
// repository instead of an on-disk database.
const MemoryStore = "memory"

// Config holds everything the pipeline and query engines need. Values come
// from config.json when present, overridden by environment variables.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	ChatModel      string `json:"chat_model"`
	EmbeddingModel string `json:"embedding_model"`

	// Cross-modal (CLIP) embedding sidecar.
	ClipURL string `json:"clip_url"`

	// Optional caption/transcript API used as an acquisition fallback.
	TranscriptAPIURL string `json:"transcript_api_url"`

	// Storage.
	Store       string `json:"store"` // memory | pgvector | milvus
	PostgresURL string `json:"postgres_url"`
	MilvusAddr  string `json:"milvus_addr"`
	SQLitePath  string `json:"sqlite_path"` // file path, or "memory" for no persistence
	DataRoot    string `json:"data_root"`

	// Tuning.
	FrameInterval  int     `json:"frame_interval_sec"`
	TopK           int     `json:"top_k"`
	TextWeight     float64 `json:"text_weight"`
	VisualWeight   float64 `json:"visual_weight"`
	IndexBatchSize int     `json:"index_batch_size"`
	IndexWorkers   int     `json:"index_workers"`
	HistoryTurns   int     `json:"history_turns"`
	ContextBudget  int     `json:"context_budget_chars"`
	SectionChunkSec int    `json:"section_chunk_sec"`

	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

var (
	global *Config
	mu     sync.Mutex
)

// Load reads config.json (if present), applies env overrides and defaults.
// The result is cached for the life of the process.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		return global, nil
	}

	_ = godotenv.Load()

	cfg := &Config{}
	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	global = cfg
	return global, nil
}

// Reset drops the cached config. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	global = nil
}

func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(dst *float64, key string) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setStr(&cfg.APIKey, "API_KEY")
	setStr(&cfg.BaseURL, "BASE_URL")
	setStr(&cfg.ChatModel, "CHAT_MODEL")
	setStr(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	setStr(&cfg.ClipURL, "CLIP_URL")
	setStr(&cfg.TranscriptAPIURL, "TRANSCRIPT_API_URL")
	setStr(&cfg.Store, "STORE")
	setStr(&cfg.PostgresURL, "POSTGRES_URL")
	setStr(&cfg.MilvusAddr, "MILVUS_ADDR")
	setStr(&cfg.SQLitePath, "SQLITE_PATH")
	setStr(&cfg.DataRoot, "DATA_ROOT")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setInt(&cfg.FrameInterval, "FRAME_INTERVAL_SEC")
	setInt(&cfg.TopK, "TOP_K")
	setInt(&cfg.IndexBatchSize, "INDEX_BATCH_SIZE")
	setInt(&cfg.IndexWorkers, "INDEX_WORKERS")
	setInt(&cfg.HistoryTurns, "HISTORY_TURNS")
	setInt(&cfg.ContextBudget, "CONTEXT_BUDGET_CHARS")
	setInt(&cfg.SectionChunkSec, "SECTION_CHUNK_SEC")
	setInt(&cfg.Port, "PORT")
	setFloat(&cfg.TextWeight, "TEXT_WEIGHT")
	setFloat(&cfg.VisualWeight, "VISUAL_WEIGHT")
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Store == "" {
		cfg.Store = "memory"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "data/videoanalysis.db"
	}
	if cfg.DataRoot == "" {
		cfg.DataRoot = "data"
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.TextWeight == 0 && cfg.VisualWeight == 0 {
		cfg.TextWeight = 0.5
		cfg.VisualWeight = 0.5
	}
	if cfg.IndexBatchSize <= 0 {
		cfg.IndexBatchSize = 16
	}
	if cfg.IndexWorkers <= 0 {
		cfg.IndexWorkers = 4
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 3
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 6000
	}
	if cfg.SectionChunkSec <= 0 {
		cfg.SectionChunkSec = 120
	}
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks the fields required for external model calls.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.APIKey) == "" {
		problems = append(problems, "api_key is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		problems = append(problems, "base_url is required")
	}
	if strings.TrimSpace(c.ChatModel) == "" {
		problems = append(problems, "chat_model is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HasValidAPI reports whether model-backed features can be used at all.
func (c *Config) HasValidAPI() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.BaseURL) != ""
}
