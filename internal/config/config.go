package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	DocumentsPath  string `env:"DOCUMENTS_PATH" envDefault:"./documents"`
	VectorDBPath   string `env:"VECTOR_DB_PATH" envDefault:"./vector_db"`
	CollectionName string `env:"COLLECTION_NAME" envDefault:"paper_navigator"`
	CompressDB     bool   `env:"COMPRESS_DB" envDefault:"false"`
	MetadataFile   string `env:"METADATA_FILE" envDefault:"./vector_db.manifest.json"`

	OllamaURL        string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel      string        `env:"OLLAMA_MODEL" envDefault:"llama3:8b"`
	OllamaEmbedModel string        `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
	Temperature      float64       `env:"TEMPERATURE" envDefault:"0.1"`
	SkipModelCheck   bool          `env:"SKIP_MODEL_CHECK" envDefault:"false"`

	ChunkSize        int    `env:"CHUNK_SIZE" envDefault:"1024"`
	ChunkOverlap     int    `env:"CHUNK_OVERLAP" envDefault:"20"`
	ChunkMethod      string `env:"CHUNK_METHOD"`
	EmbedConcurrency int    `env:"EMBED_CONCURRENCY" envDefault:"4"`

	TopK          int     `env:"TOP_K" envDefault:"5"`
	MinSimilarity float32 `env:"MIN_SIMILARITY" envDefault:"0"`

	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB" envDefault:"64"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	EmbedCacheTTL time.Duration `env:"EMBED_CACHE_TTL" envDefault:"168h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Init fills cfg from the environment.
func Init(cfg interface{}) error {
	return env.Parse(cfg)
}

// Load parses the environment into a fresh Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := Init(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.TopK))
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("MIN_SIMILARITY must be in [-1, 1], got %.2f", c.MinSimilarity))
	}
	if c.EmbedConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_CONCURRENCY must be positive, got %d", c.EmbedConcurrency))
	}
	if c.CollectionName == "" {
		errs = append(errs, errors.New("COLLECTION_NAME must not be empty"))
	}
	return errors.Join(errs...)
}
