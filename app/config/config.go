package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log      Log      `yaml:"log"`
	DB       DB       `yaml:"db"`
	HTTP     HTTP     `yaml:"http"`
	OpenAI   OpenAI   `yaml:"openai"`
	Neo4j    Neo4j    `yaml:"neo4j"`
	Pinecone Pinecone `yaml:"pinecone"`
	Engine   Engine   `yaml:"engine"`
	Patient  Patient  `yaml:"patient"`
}

type OpenAI struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Chat model, must support tool calling
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
	// Embedding model used for reference passage search
	EmbeddingModel string `yaml:"embedding_model" example:"text-embedding-3-small"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" example:"0" validate:"gte=0,lte=2"`
}

type Neo4j struct {
	// Bolt or neo4j URI
	URI string `yaml:"uri" example:"neo4j://localhost:7687" validate:"required"`
	// Neo4j username
	User string `yaml:"user" example:"neo4j" validate:"required"`
	// Neo4j password
	Pass string `yaml:"pass" validate:"required"`
	// Database name
	Database string `yaml:"database" example:"neo4j"`
}

type Pinecone struct {
	// Index host, reference search is disabled when empty
	Host string `yaml:"host" example:"healthmate-abc123.svc.pinecone.io"`
	// Pinecone API key
	APIKey string `yaml:"api_key" validate:"required_with=Host"`
	// Namespace inside the index
	Namespace string `yaml:"namespace" example:"guidelines"`
	// Number of passages injected into the assistant prompt
	TopK int `yaml:"top_k" example:"4" validate:"gte=1,lte=20"`
}

type Engine struct {
	// Message count above which the log is compacted
	CompactionThreshold int `yaml:"compaction_threshold" example:"14" validate:"gte=2"`
	// Messages kept verbatim after compaction
	KeepRecent int `yaml:"keep_recent" example:"2" validate:"gte=1,ltfield=CompactionThreshold"`
	// Extraction runs every N user turns
	ExtractionInterval int `yaml:"extraction_interval" example:"3" validate:"gte=1"`
	// Human utterances sent to extraction
	ExtractionWindow int `yaml:"extraction_window" example:"5" validate:"gte=1"`
	// Timeout of a single model call
	ModelTimeout time.Duration `yaml:"model_timeout" example:"30s" validate:"gt=0"`
	// Timeout of a single knowledge graph call
	KnowledgeTimeout time.Duration `yaml:"knowledge_timeout" example:"10s" validate:"gt=0"`
	// Timeout of a single similarity search
	ReferenceTimeout time.Duration `yaml:"reference_timeout" example:"10s" validate:"gt=0"`
}

type Patient struct {
	// Patient used when a request does not carry one
	DefaultID string `yaml:"default_id" example:"john"`
}

type HTTP struct {
	// Listen address
	Listen string `yaml:"listen" example:":8080" validate:"required"`
	// Bearer token for the patient admin endpoints, they are disabled when empty
	AdminToken string `yaml:"admin_token" example:"change-me-admin-token"`
}

type Log struct {
	// Minimum level: debug, info, warn, error
	Level string `yaml:"level" example:"info" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type DB struct {
	// SQLite database file
	Path string `yaml:"path" example:"data/healthmate.db" validate:"required"`
}

func Load() (*Config, error) {
	path := os.Getenv("HEALTHMATE_CONFIG")
	if path == "" {
		path = defaultPath
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = "data/healthmate.db"
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":8080"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.Pinecone.TopK == 0 {
		cfg.Pinecone.TopK = 4
	}

	e := &cfg.Engine
	if e.CompactionThreshold == 0 {
		e.CompactionThreshold = 14
	}
	if e.KeepRecent == 0 {
		e.KeepRecent = 2
	}
	if e.ExtractionInterval == 0 {
		e.ExtractionInterval = 3
	}
	if e.ExtractionWindow == 0 {
		e.ExtractionWindow = 5
	}
	if e.ModelTimeout == 0 {
		e.ModelTimeout = 30 * time.Second
	}
	if e.KnowledgeTimeout == 0 {
		e.KnowledgeTimeout = 10 * time.Second
	}
	if e.ReferenceTimeout == 0 {
		e.ReferenceTimeout = 10 * time.Second
	}
}
