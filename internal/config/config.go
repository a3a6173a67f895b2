package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how extracted documents are split.
type ChunkerConfig struct {
	PageMarker string `yaml:"page_marker"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Supabase *SupabaseConfig `yaml:"supabase,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// SupabaseConfig contains connection details for a Supabase project.
type SupabaseConfig struct {
	URL                string `yaml:"url"`
	APIKeyEnv          string `yaml:"api_key_env"`
	ChunkTable         string `yaml:"chunk_table"`
	AudioTable         string `yaml:"audio_table"`
	MatchFunction      string `yaml:"match_function"`
	AudioMatchFunction string `yaml:"audio_match_function"`
	TimeoutSecs        int    `yaml:"timeout_secs"`
}

// PostgresConfig names the environment variable holding the DSN.
type PostgresConfig struct {
	DSNEnv string `yaml:"dsn_env"`
}

// GeneratorConfig configures the chat model used for answers.
type GeneratorConfig struct {
	Type        string  `yaml:"type"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// TranscriberConfig selects the speech engine.
type TranscriberConfig struct {
	Type        string `yaml:"type"`
	ServerURL   string `yaml:"server_url"`
	ModelPath   string `yaml:"model_path"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AudioEmbedderConfig configures the audio embedding model server.
type AudioEmbedderConfig struct {
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig sets the similarity threshold and result cap. Threshold is
// nil until set so that an explicit 0 survives defaulting.
type RetrievalConfig struct {
	Threshold *float64 `yaml:"threshold,omitempty"`
	TopK      int      `yaml:"top_k"`
}

// MinSimilarity returns the configured threshold, or 0.75 when unset.
func (r RetrievalConfig) MinSimilarity() float64 {
	if r.Threshold == nil {
		return defaultThreshold
	}
	return *r.Threshold
}

const defaultThreshold = 0.75

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LoggingConfig sets the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder      EmbedderConfig      `yaml:"embedder"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store"`
	Generator     GeneratorConfig     `yaml:"generator"`
	Transcriber   TranscriberConfig   `yaml:"transcriber"`
	AudioEmbedder AudioEmbedderConfig `yaml:"audio_embedder"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Summarizer    SummarizerConfig    `yaml:"summarizer"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	RecordingsDir string              `yaml:"recordings_dir"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
	}
	if cfg.Chunker.PageMarker == "" {
		cfg.Chunker.PageMarker = "\n=== Page "
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	switch cfg.VectorStore.Type {
	case "supabase":
		if cfg.VectorStore.Supabase == nil {
			cfg.VectorStore.Supabase = &SupabaseConfig{}
		}
		s := cfg.VectorStore.Supabase
		if s.URL == "" {
			s.URL = os.Getenv("SUPABASE_URL")
		}
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "SUPABASE_KEY"
		}
		if s.TimeoutSecs == 0 {
			s.TimeoutSecs = 15
		}
	case "postgres":
		if cfg.VectorStore.Postgres == nil {
			cfg.VectorStore.Postgres = &PostgresConfig{}
		}
		if cfg.VectorStore.Postgres.DSNEnv == "" {
			cfg.VectorStore.Postgres.DSNEnv = "DATABASE_URL"
		}
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Transcriber.Type == "" {
		cfg.Transcriber.Type = "vosk-server"
	}
	if cfg.Transcriber.Type == "vosk-server" && cfg.Transcriber.ServerURL == "" {
		cfg.Transcriber.ServerURL = "ws://localhost:2700"
	}
	if cfg.Transcriber.ModelPath == "" {
		cfg.Transcriber.ModelPath = os.Getenv("VOSK_MODEL_PATH")
	}
	if cfg.Transcriber.TimeoutSecs == 0 {
		cfg.Transcriber.TimeoutSecs = 15
	}
	if cfg.AudioEmbedder.Type == "" {
		cfg.AudioEmbedder.Type = "none"
	}
	if cfg.AudioEmbedder.Model == "" {
		cfg.AudioEmbedder.Model = "vggish"
	}
	if cfg.AudioEmbedder.TimeoutSecs == 0 {
		cfg.AudioEmbedder.TimeoutSecs = 30
	}
	if cfg.Retrieval.Threshold == nil {
		t := defaultThreshold
		cfg.Retrieval.Threshold = &t
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "pretty"
	}
	if cfg.RecordingsDir == "" {
		cfg.RecordingsDir = "recordings"
	}
}
