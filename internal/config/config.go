package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the clipdex service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store settings.
type DatabaseConfig struct {
	Driver           string         `yaml:"driver"` // pinecone, redis (default: pinecone)
	Pinecone         PineconeConfig `yaml:"pinecone"`
	Redis            RedisConfig    `yaml:"redis"`
	ReadinessTimeout int            `yaml:"readiness_timeout_sec"`
}

// PineconeConfig holds Pinecone index connection settings.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host"`
	IndexName string `yaml:"index_name"`
	Namespace string `yaml:"namespace"`
}

// RedisConfig holds Redis store settings.
type RedisConfig struct {
	Addrs           []string `yaml:"addrs"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	DB              int      `yaml:"db"`
	IndexName       string   `yaml:"index_name"`
	KeyPrefix       string   `yaml:"key_prefix"`
	HNSWM           int      `yaml:"hnsw_m"`
	HNSWEFConstruct int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding provider settings. Both providers must
// produce vectors of the same Dimensions: mixing embedding spaces in one
// index is a correctness violation.
type EmbeddingConfig struct {
	Dimensions int                  `yaml:"dimensions"`
	Text       TextEmbeddingConfig  `yaml:"text"`
	Image      ImageEmbeddingConfig `yaml:"image"`
}

// TextEmbeddingConfig holds the OpenAI-compatible text encoder settings.
type TextEmbeddingConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ImageEmbeddingConfig holds the CLIP inference server settings.
type ImageEmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// IngestConfig holds batch ingestion settings.
type IngestConfig struct {
	Workers    int    `yaml:"workers"`
	ExtractDir string `yaml:"extract_dir"`
	EnableText bool   `yaml:"enable_text"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 5000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pinecone"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.Pinecone.IndexName == "" {
		c.Database.Pinecone.IndexName = "cafbai"
	}
	if c.Database.Redis.IndexName == "" {
		c.Database.Redis.IndexName = "clipdex-media"
	}
	if c.Database.Redis.KeyPrefix == "" {
		c.Database.Redis.KeyPrefix = "clipdex:doc:"
	}
	if c.Database.Redis.HNSWM <= 0 {
		c.Database.Redis.HNSWM = 16
	}
	if c.Database.Redis.HNSWEFConstruct <= 0 {
		c.Database.Redis.HNSWEFConstruct = 200
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 512
	}
	if c.Embedding.Text.Model == "" {
		c.Embedding.Text.Model = "clip-ViT-B-32-multilingual-v1"
	}
	if c.Embedding.Image.Model == "" {
		c.Embedding.Image.Model = "clip-vit-base-patch32"
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "pinecone":
		if c.Database.Pinecone.Host == "" {
			return fmt.Errorf("database.pinecone.host is required")
		}
	case "redis":
		if len(c.Database.Redis.Addrs) == 0 {
			return fmt.Errorf("database.redis.addrs is required")
		}
	default:
		return fmt.Errorf("database.driver must be \"pinecone\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Embedding.Text.BaseURL == "" {
		return fmt.Errorf("embedding.text.base_url is required")
	}
	return nil
}

// IndexName returns the active driver's index name.
func (c *Config) IndexName() string {
	if c.Database.Driver == "redis" {
		return c.Database.Redis.IndexName
	}
	return c.Database.Pinecone.IndexName
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
