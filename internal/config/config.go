package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port            int               `json:"port"`
	Database        DatabaseConfig    `json:"database"`
	ObjectStore     ObjectStoreConfig `json:"object_store"`
	AI              AIConfig          `json:"ai"`
	Ingest          IngestConfig      `json:"ingest"`
	Synthesis       SynthesisConfig   `json:"synthesis"`
	CORSAllowlist   []string          `json:"cors_allowlist"`
	UploadLimitByte int64             `json:"upload_limit_byte"`
	LogConfig       logger.LogConfig  `json:"log_config"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type ObjectStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Data          interface{} `json:"data"`
	ChatModel     string      `json:"chat_model"`
	EmbedModel    string      `json:"embed_model"`
	SpeechModel   string      `json:"speech_model"`
	SpeechVoice   string      `json:"speech_voice"`
	TimeoutSec    int         `json:"timeout_sec"`
	MaxInputChars int         `json:"max_input_chars"`
	CacheSize     int         `json:"cache_size"`
	CacheTTLSec   int         `json:"cache_ttl_sec"`
}

type IngestConfig struct {
	ChunkMaxChars  int `json:"chunk_max_chars"`
	EmbedBatchSize int `json:"embed_batch_size"`
	EmbedRetry     int `json:"embed_retry"`
	EmbedRetryWait int `json:"embed_retry_wait_sec"`
	Concurrency    int `json:"concurrency"`
}

type SynthesisConfig struct {
	QuestionCount   int `json:"question_count"`
	MinScriptChars  int `json:"min_script_chars"`
	JobTimeoutSec   int `json:"job_timeout_sec"`
	RetrieveTopK    int `json:"retrieve_top_k"`
	Concurrency     int `json:"concurrency"`
	ContextPreview  int `json:"context_preview_chars"`
	ArtifactKeepDay int `json:"artifact_keep_day"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.ObjectStore.Type == "" {
		return nil, fmt.Errorf("object_store.type is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.ChatModel == "" || cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.chat_model and ai.embed_model are required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.UploadLimitByte == 0 {
		cfg.UploadLimitByte = 20 * 1024 * 1024
	}
	applyIngestDefaults(&cfg.Ingest)
	applySynthesisDefaults(&cfg.Synthesis)
	if cfg.AI.TimeoutSec == 0 {
		cfg.AI.TimeoutSec = 60
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 4096
	}
	if cfg.AI.CacheTTLSec == 0 {
		cfg.AI.CacheTTLSec = 2 * 60 * 60
	}
	return &cfg, nil
}

func applyIngestDefaults(c *IngestConfig) {
	if c.ChunkMaxChars == 0 {
		c.ChunkMaxChars = 1000
	}
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = 16
	}
	if c.EmbedRetry == 0 {
		c.EmbedRetry = 3
	}
	if c.EmbedRetryWait == 0 {
		c.EmbedRetryWait = 2
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

func applySynthesisDefaults(c *SynthesisConfig) {
	if c.QuestionCount == 0 {
		c.QuestionCount = 5
	}
	if c.MinScriptChars == 0 {
		c.MinScriptChars = 200
	}
	if c.JobTimeoutSec == 0 {
		c.JobTimeoutSec = 300
	}
	if c.RetrieveTopK == 0 {
		c.RetrieveTopK = 4
	}
	if c.Concurrency == 0 {
		c.Concurrency = 3
	}
	if c.ContextPreview == 0 {
		c.ContextPreview = 4000
	}
}
