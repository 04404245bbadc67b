package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for a blargraph run.
type Config struct {
	// Deployment mode
	Mode string `yaml:"mode"` // "local", "ci"

	// Graph store connection
	GraphStore GraphStoreConfig `yaml:"graph_store"`

	// Local SQLite staging buffer
	Staging StagingConfig `yaml:"staging"`

	// Per-language LSP server launch commands
	LSP LSPConfig `yaml:"lsp"`

	// GitHub Integration
	GitHub GitHubConfig `yaml:"github"`

	// LLM provider settings for documentation/workflow overlay tasks
	API APIConfig `yaml:"api"`

	// Bottom-Up Batch Processor worker pool
	Workers WorkersConfig `yaml:"workers"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`
}

type GraphStoreConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	NodeBatchSize int `yaml:"node_batch_size"`
	EdgeBatchSize int `yaml:"edge_batch_size"`
}

type StagingConfig struct {
	DBPath string `yaml:"db_path"` // local SQLite buffer, see internal/staging
}

// LSPServerConfig describes how to launch one language's LSP server.
type LSPServerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type LSPConfig struct {
	StartupTimeout time.Duration              `yaml:"startup_timeout"`
	Servers        map[string]LSPServerConfig `yaml:"servers"` // keyed by langregistry.Definition.Name
}

type GitHubConfig struct {
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // requests per second
}

type CacheConfig struct {
	Directory      string        `yaml:"directory"`
	TTL            time.Duration `yaml:"ttl"`
	MaxSize        int64         `yaml:"max_size"` // in bytes
	SharedCacheURL string        `yaml:"shared_cache_url"`
}

type APIConfig struct {
	OpenAIKey      string `yaml:"openai_key"`
	OpenAIModel    string `yaml:"openai_model"`
	AnthropicKey   string `yaml:"anthropic_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	UseKeychain    bool   `yaml:"use_keychain"` // prefer keychain over config file
	EmbeddingURL   string `yaml:"embedding_url"`
	EmbeddingKey   string `yaml:"embedding_key"`
}

type WorkersConfig struct {
	PoolSize int `yaml:"pool_size"` // batchproc.New worker count
}

// Default returns the baseline configuration for a local, single-machine run.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode: "local",
		GraphStore: GraphStoreConfig{
			URI:           "neo4j://localhost:7687",
			Username:      "neo4j",
			Database:      "neo4j",
			NodeBatchSize: 1000,
			EdgeBatchSize: 5000,
		},
		Staging: StagingConfig{
			DBPath: filepath.Join(homeDir, ".blargraph", "staging.db"),
		},
		LSP: LSPConfig{
			StartupTimeout: 10 * time.Second,
			Servers: map[string]LSPServerConfig{
				"python":     {Command: "pylsp"},
				"go":         {Command: "gopls"},
				"ruby":       {Command: "solargraph", Args: []string{"stdio"}},
				"typescript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
				"javascript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
			},
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		Cache: CacheConfig{
			Directory: filepath.Join(homeDir, ".blargraph", "cache"),
			TTL:       24 * time.Hour,
			MaxSize:   2 * 1024 * 1024 * 1024, // 2GB
		},
		API: APIConfig{
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-3-5-haiku-latest",
		},
		Workers: WorkersConfig{
			PoolSize: 8,
		},
	}
}

// Load loads configuration from file, layering env var overrides on top the
// way the teacher's crisk CLI does (config file -> BLARGRAPH_* viper env ->
// explicit named env vars -> OS keychain for secrets).
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("graph_store", cfg.GraphStore)
	v.SetDefault("staging", cfg.Staging)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("workers", cfg.Workers)

	v.SetEnvPrefix("BLARGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".blargraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".blargraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults.
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	envFiles := []string{
		".env.local",   // local overrides (highest precedence)
		".env",         // main environment file
		".env.example", // example file as fallback
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err == nil {
				continue
			}
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".blargraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the named environment variables this repo's
// other packages already read directly (internal/llmclient's
// OPENAI_API_KEY/ANTHROPIC_API_KEY, the GitHub Integration's token), plus
// graph-store and staging settings, on top of whatever the config file set.
func applyEnvOverrides(cfg *Config) {
	// Graph store
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.GraphStore.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.GraphStore.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.GraphStore.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.GraphStore.Database = db
	}
	if size := os.Getenv("GRAPH_NODE_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.GraphStore.NodeBatchSize = n
		}
	}
	if size := os.Getenv("GRAPH_EDGE_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.GraphStore.EdgeBatchSize = n
		}
	}

	// Staging buffer
	if path := os.Getenv("STAGING_DB_PATH"); path != "" {
		cfg.Staging.DBPath = expandPath(path)
	}

	// GitHub configuration
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}

	// LLM provider keys - precedence: env var (highest), keychain, config file.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.API.OpenAIKey = key
	} else if cfg.API.OpenAIKey == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if keychainKey, err := km.GetAPIKey(); err == nil && keychainKey != "" {
				cfg.API.OpenAIKey = keychainKey
			}
		}
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.API.OpenAIModel = model
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.API.AnthropicKey = key
	}
	if model := os.Getenv("ANTHROPIC_MODEL"); model != "" {
		cfg.API.AnthropicModel = model
	}
	if url := os.Getenv("EMBEDDING_URL"); url != "" {
		cfg.API.EmbeddingURL = url
	}
	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		cfg.API.EmbeddingKey = key
	}

	// Cache configuration
	if dir := os.Getenv("CACHE_DIRECTORY"); dir != "" {
		cfg.Cache.Directory = expandPath(dir)
	}
	if url := os.Getenv("SHARED_CACHE_URL"); url != "" {
		cfg.Cache.SharedCacheURL = url
	}
	if size := os.Getenv("CACHE_MAX_SIZE"); size != "" {
		if sizeInt, err := strconv.ParseInt(size, 10, 64); err == nil {
			cfg.Cache.MaxSize = sizeInt
		}
	}

	// Worker pool
	if workers := os.Getenv("WORKER_POOL_SIZE"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Workers.PoolSize = n
		}
	}

	// Mode
	if mode := os.Getenv("BLARGRAPH_MODE"); mode != "" {
		cfg.Mode = mode
	}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("mode", c.Mode)
	v.Set("graph_store", c.GraphStore)
	v.Set("staging", c.Staging)
	v.Set("lsp", c.LSP)
	v.Set("github", c.GitHub)
	v.Set("api", c.API)
	v.Set("workers", c.Workers)
	v.Set("cache", c.Cache)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
