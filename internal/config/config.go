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

// Config holds the clinrag configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	MCP       MCPConfig       `yaml:"mcp"`
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
	MaxBodyBytes    int `yaml:"max_body_bytes"`
}

// DatabaseConfig holds graph store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, neo4j, postgres, memory (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	URI              string   `yaml:"uri"`
	Username         string   `yaml:"username"`
	DSN              string   `yaml:"dsn"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime    int      `yaml:"hnsw_ef_runtime"` // 0 = server default
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// TokenizerConfig selects the tokenizer shared by chunking and embedding.
type TokenizerConfig struct {
	Kind     string `yaml:"kind"`     // tiktoken, lexical (default: lexical)
	Encoding string `yaml:"encoding"` // tiktoken encoding name
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // openai, hashing (default: hashing)
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	BatchSize         int     `yaml:"batch_size"`
	ContextWindow     int     `yaml:"context_window"`
	OverflowPolicy    string  `yaml:"overflow_policy"` // truncate, pool
	ContextualPrefix  *bool   `yaml:"contextual_prefix"`
	QueryInstruction  string  `yaml:"query_instruction"`   // e.g. "query: " for instruction-tuned models
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Cache             bool    `yaml:"cache"`
	CacheTTLSec       int     `yaml:"cache_ttl_sec"` // 0 = never expire
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// PrefixEnabled reports whether chunks are embedded with their contextual prefix.
func (e EmbeddingConfig) PrefixEnabled() bool {
	return e.ContextualPrefix == nil || *e.ContextualPrefix
}

// RerankConfig holds cross-encoder settings.
type RerankConfig struct {
	Provider   string `yaml:"provider"` // http, lexical (default: lexical)
	URL        string `yaml:"url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ChunkingConfig holds per document type chunk bounds.
type ChunkingConfig struct {
	Guideline  ChunkBounds `yaml:"guideline"`
	Calculator ChunkBounds `yaml:"calculator"`
	Literature ChunkBounds `yaml:"literature"`
}

// ChunkBounds holds token bounds for one assembler.
type ChunkBounds struct {
	TargetTokens  int `yaml:"target_tokens"`
	MinTokens     int `yaml:"min_tokens"`
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// RetrievalConfig holds retriever defaults. Requests may override them.
type RetrievalConfig struct {
	K                   int     `yaml:"k"`
	MaxK                int     `yaml:"max_k"`
	RerankCandidates    int     `yaml:"rerank_candidates"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	Hybrid              *bool   `yaml:"hybrid"`
	VectorWeight        float64 `yaml:"vector_weight"`
	KeywordWeight       float64 `yaml:"keyword_weight"`
	Fusion              string  `yaml:"fusion"` // weighted, rrf
	Rerank              *bool   `yaml:"rerank"`
	MMR                 *bool   `yaml:"mmr"`
	Lambda              float64 `yaml:"lambda"`
	Expand              bool    `yaml:"expand"`
	ExpansionHops       int     `yaml:"expansion_hops"`
	TimeoutMs           int     `yaml:"timeout_ms"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	Workers      int `yaml:"workers"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Port int `yaml:"port"` // 0 = stdio
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables in data, decodes it and applies defaults.
func Parse(data []byte) (Config, error) {
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
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
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 8 << 20
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "clinrag:"
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 16
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 200
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Tokenizer.Kind == "" {
		c.Tokenizer.Kind = "lexical"
	}
	if c.Tokenizer.Encoding == "" {
		c.Tokenizer.Encoding = "cl100k_base"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hashing"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.ContextWindow <= 0 {
		c.Embedding.ContextWindow = 256
	}
	if c.Embedding.OverflowPolicy == "" {
		c.Embedding.OverflowPolicy = "truncate"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}

	if c.Rerank.Provider == "" {
		c.Rerank.Provider = "lexical"
	}
	if c.Rerank.TimeoutSec <= 0 {
		c.Rerank.TimeoutSec = 10
	}

	applyBounds(&c.Chunking.Guideline, ChunkBounds{TargetTokens: 384, MinTokens: 64, MaxTokens: 512, OverlapTokens: 48})
	applyBounds(&c.Chunking.Calculator, ChunkBounds{TargetTokens: 384, MinTokens: 32, MaxTokens: 512, OverlapTokens: 0})
	applyBounds(&c.Chunking.Literature, ChunkBounds{TargetTokens: 512, MinTokens: 96, MaxTokens: 768, OverlapTokens: 64})

	if c.Retrieval.K <= 0 {
		c.Retrieval.K = 5
	}
	if c.Retrieval.MaxK <= 0 {
		c.Retrieval.MaxK = 50
	}
	if c.Retrieval.RerankCandidates <= 0 {
		c.Retrieval.RerankCandidates = 20
	}
	if c.Retrieval.SimilarityThreshold == 0 {
		c.Retrieval.SimilarityThreshold = 0.2
	}
	if c.Retrieval.VectorWeight == 0 && c.Retrieval.KeywordWeight == 0 {
		c.Retrieval.VectorWeight = 0.7
		c.Retrieval.KeywordWeight = 0.3
	}
	if c.Retrieval.Fusion == "" {
		c.Retrieval.Fusion = "weighted"
	}
	if c.Retrieval.Lambda == 0 {
		c.Retrieval.Lambda = 0.5
	}
	if c.Retrieval.ExpansionHops <= 0 {
		c.Retrieval.ExpansionHops = 1
	}
	if c.Retrieval.TimeoutMs <= 0 {
		c.Retrieval.TimeoutMs = 5000
	}

	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.MaxBatchSize <= 0 {
		c.Ingest.MaxBatchSize = 100
	}
}

func applyBounds(b *ChunkBounds, def ChunkBounds) {
	if b.TargetTokens <= 0 {
		b.TargetTokens = def.TargetTokens
	}
	if b.MinTokens <= 0 {
		b.MinTokens = def.MinTokens
	}
	if b.MaxTokens <= 0 {
		b.MaxTokens = def.MaxTokens
	}
	// negative overlap disables it
	switch {
	case b.OverlapTokens == 0:
		b.OverlapTokens = def.OverlapTokens
	case b.OverlapTokens < 0:
		b.OverlapTokens = 0
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case "memory":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver redis")
		}
	case "neo4j":
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for driver neo4j")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("database.driver must be one of memory, redis, neo4j, postgres, got %q", c.Database.Driver)
	}

	switch c.Tokenizer.Kind {
	case "lexical", "tiktoken":
	default:
		return fmt.Errorf("tokenizer.kind must be \"lexical\" or \"tiktoken\", got %q", c.Tokenizer.Kind)
	}

	switch c.Embedding.Provider {
	case "hashing":
	case "openai":
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider openai")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"hashing\", got %q", c.Embedding.Provider)
	}
	switch c.Embedding.OverflowPolicy {
	case "truncate", "pool":
	default:
		return fmt.Errorf("embedding.overflow_policy must be \"truncate\" or \"pool\", got %q", c.Embedding.OverflowPolicy)
	}

	switch c.Rerank.Provider {
	case "lexical":
	case "http":
		if c.Rerank.URL == "" {
			return fmt.Errorf("rerank.url is required for provider http")
		}
	default:
		return fmt.Errorf("rerank.provider must be \"http\" or \"lexical\", got %q", c.Rerank.Provider)
	}

	for name, b := range map[string]ChunkBounds{
		"guideline":  c.Chunking.Guideline,
		"calculator": c.Chunking.Calculator,
		"literature": c.Chunking.Literature,
	} {
		if b.MinTokens > b.MaxTokens {
			return fmt.Errorf("chunking.%s.min_tokens (%d) must not exceed max_tokens (%d)", name, b.MinTokens, b.MaxTokens)
		}
		if b.OverlapTokens >= b.MaxTokens {
			return fmt.Errorf("chunking.%s.overlap_tokens (%d) must be below max_tokens (%d)", name, b.OverlapTokens, b.MaxTokens)
		}
	}

	r := c.Retrieval
	if r.SimilarityThreshold < -1 || r.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be between -1 and 1, got %g", r.SimilarityThreshold)
	}
	if r.VectorWeight < 0 || r.KeywordWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if r.Lambda < 0 || r.Lambda > 1 {
		return fmt.Errorf("retrieval.lambda must be between 0 and 1, got %g", r.Lambda)
	}
	switch r.Fusion {
	case "weighted", "rrf":
	default:
		return fmt.Errorf("retrieval.fusion must be \"weighted\" or \"rrf\", got %q", r.Fusion)
	}
	if r.K > r.MaxK {
		return fmt.Errorf("retrieval.k (%d) must not exceed retrieval.max_k (%d)", r.K, r.MaxK)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
