package config

import "time"

const (
	defaultDataDir    = "/usr/local/var/saiyo/data"
	DefaultConfigPath = "/usr/local/etc/saiyo/config.yaml"
)

// Default returns the built-in configuration, the lowest layer under the file and environment.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
			UploadLimitMB:  10,
		},
		Storage: StorageConfig{
			DatabasePath:  defaultDataDir + "/db/profiles.db",
			IndexPath:     defaultDataDir + "/indices/candidates",
			DirectoryPath: defaultDataDir + "/indices/directory",
		},
		Embedding: EmbeddingConfig{
			Provider:    "mock",
			Model:       "text-embedding-3-small",
			Dimensions:  384,
			Timeout:     30 * time.Second,
			Concurrency: 4,
			ModelPath:   defaultDataDir + "/models/all-MiniLM-L6-v2.onnx",
			MaxTokens:   256,
			CacheSize:   10000,
		},
		Cache: CacheConfig{
			Redis: RedisConfig{TTL: 24 * time.Hour},
		},
		Categorizer: CategorizerConfig{
			Model: "gpt-4o-mini",
		},
		Search: SearchConfig{
			DefaultK:       10,
			MaxK:           100,
			MatchMode:      "scoped",
			WeightsVersion: "v1",
		},
		Watch: WatchConfig{
			Debounce: 400 * time.Millisecond,
		},
	}
}
