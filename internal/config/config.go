// Package config loads saiyo configuration from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/hyperjump/saiyo/internal/aspect"
)

// EnvPrefix prefixes every environment override. A double underscore separates nesting levels:
// SAIYO_EMBEDDING__API_KEY sets embedding.api_key.
const EnvPrefix = "SAIYO_"

var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	Debug       bool              `koanf:"debug" yaml:"debug"`
	LogLevel    string            `koanf:"log_level" yaml:"log_level"`
	Server      ServerConfig      `koanf:"server" yaml:"server"`
	Storage     StorageConfig     `koanf:"storage" yaml:"storage"`
	Embedding   EmbeddingConfig   `koanf:"embedding" yaml:"embedding"`
	Cache       CacheConfig       `koanf:"cache" yaml:"cache"`
	Categorizer CategorizerConfig `koanf:"categorizer" yaml:"categorizer"`
	Search      SearchConfig      `koanf:"search" yaml:"search"`
	Watch       WatchConfig       `koanf:"watch" yaml:"watch"`
}

type ServerConfig struct {
	Host           string        `koanf:"host" yaml:"host"`
	Port           int           `koanf:"port" yaml:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	UploadLimitMB  int64         `koanf:"upload_limit_mb" yaml:"upload_limit_mb"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig locates the profile store, the vector index files and the candidate directory.
type StorageConfig struct {
	DatabasePath  string `koanf:"database_path" yaml:"database_path"`
	IndexPath     string `koanf:"index_path" yaml:"index_path"`
	DirectoryPath string `koanf:"directory_path" yaml:"directory_path"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Provider    string        `koanf:"provider" yaml:"provider"`
	Model       string        `koanf:"model" yaml:"model"`
	BaseURL     string        `koanf:"base_url" yaml:"base_url,omitempty"`
	APIKey      string        `koanf:"api_key" yaml:"api_key,omitempty"`
	Dimensions  int           `koanf:"dimensions" yaml:"dimensions"`
	Timeout     time.Duration `koanf:"timeout" yaml:"timeout"`
	Strict      bool          `koanf:"strict" yaml:"strict"`
	Concurrency int           `koanf:"concurrency" yaml:"concurrency"`
	ModelPath   string        `koanf:"model_path" yaml:"model_path,omitempty"`
	MaxTokens   int           `koanf:"max_tokens" yaml:"max_tokens"`
	CacheSize   int           `koanf:"cache_size" yaml:"cache_size"`
}

type CacheConfig struct {
	Redis RedisConfig `koanf:"redis" yaml:"redis"`
}

// RedisConfig enables the shared embedding cache when Addrs is non-empty.
type RedisConfig struct {
	Addrs    []string      `koanf:"addrs" yaml:"addrs,omitempty"`
	Username string        `koanf:"username" yaml:"username,omitempty"`
	Password string        `koanf:"password" yaml:"password,omitempty"`
	DB       int           `koanf:"db" yaml:"db"`
	TTL      time.Duration `koanf:"ttl" yaml:"ttl"`
}

// CategorizerConfig configures the LLM that splits job descriptions into aspect sections.
type CategorizerConfig struct {
	Enabled     bool    `koanf:"enabled" yaml:"enabled"`
	BaseURL     string  `koanf:"base_url" yaml:"base_url,omitempty"`
	APIKey      string  `koanf:"api_key" yaml:"api_key,omitempty"`
	Model       string  `koanf:"model" yaml:"model,omitempty"`
	Temperature float64 `koanf:"temperature" yaml:"temperature"`
}

type SearchConfig struct {
	DefaultK       int                  `koanf:"default_k" yaml:"default_k"`
	MaxK           int                  `koanf:"max_k" yaml:"max_k"`
	MatchMode      string               `koanf:"match_mode" yaml:"match_mode"`
	WeightsVersion string               `koanf:"weights_version" yaml:"weights_version"`
	WeightTables   []aspect.WeightTable `koanf:"weight_tables" yaml:"weight_tables,omitempty"`
}

// WatchConfig lists profile directories kept in sync by the server.
type WatchConfig struct {
	Directories []string      `koanf:"directories" yaml:"directories"`
	Recursive   *bool         `koanf:"recursive" yaml:"recursive,omitempty"`
	Debounce    time.Duration `koanf:"debounce" yaml:"debounce"`
}

// RecursiveOrDefault returns Recursive if set, otherwise true.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive == nil {
		return true
	}
	return *w.Recursive
}

// Load layers defaults, the YAML file at path and SAIYO_ environment variables. An empty path
// skips the file layer. Relative paths are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	baseDir, _ := os.Getwd()
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if abs, err := filepath.Abs(path); err == nil {
			baseDir = filepath.Dir(abs)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.expandPaths(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps SAIYO_EMBEDDING__API_KEY to embedding.api_key.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *Config) expandPaths(baseDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, baseDir)
	c.Storage.IndexPath = expandPath(c.Storage.IndexPath, baseDir)
	c.Storage.DirectoryPath = expandPath(c.Storage.DirectoryPath, baseDir)
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, baseDir)
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], baseDir)
	}
}

// Validate checks the values the rest of the program relies on.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai", "onnx", "mock":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding.dimensions must be positive", ErrInvalidConfig)
	}
	if c.Embedding.Concurrency <= 0 {
		return fmt.Errorf("%w: embedding.concurrency must be positive", ErrInvalidConfig)
	}
	if c.Search.DefaultK <= 0 || c.Search.MaxK <= 0 {
		return fmt.Errorf("%w: search.default_k and search.max_k must be positive", ErrInvalidConfig)
	}
	if c.Search.DefaultK > c.Search.MaxK {
		return fmt.Errorf("%w: search.default_k %d exceeds search.max_k %d", ErrInvalidConfig, c.Search.DefaultK, c.Search.MaxK)
	}
	switch c.Search.MatchMode {
	case "", "scoped", "unscoped":
	default:
		return fmt.Errorf("%w: unknown search.match_mode %q", ErrInvalidConfig, c.Search.MatchMode)
	}
	if _, err := c.ActiveTable(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Registry returns the built-in weight tables plus the configured ones.
func (c *Config) Registry() (*aspect.Registry, error) {
	return aspect.NewRegistry(c.Search.WeightTables...)
}

// ActiveTable returns the weight table selected by search.weights_version.
func (c *Config) ActiveTable() (aspect.WeightTable, error) {
	reg, err := c.Registry()
	if err != nil {
		return aspect.WeightTable{}, err
	}
	return reg.Get(c.Search.WeightsVersion)
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// expandPath makes path absolute. "~" and "~/..." expand to the home directory; other relative
// paths are taken relative to baseDir.
func expandPath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
		return path
	}
	return filepath.Join(baseDir, path)
}
