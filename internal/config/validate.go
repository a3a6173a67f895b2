package config

import (
	"fmt"
	"os"
	"strings"
)

// Path names a code path whose requirements Validate checks.
type Path int

const (
	PathIngestPDF Path = iota
	PathIngestAudio
	PathQuery
	PathListen
)

func (p Path) String() string {
	switch p {
	case PathIngestPDF:
		return "ingest pdf"
	case PathIngestAudio:
		return "ingest audio"
	case PathQuery:
		return "query"
	case PathListen:
		return "listen"
	default:
		return fmt.Sprintf("path(%d)", int(p))
	}
}

// ConfigError lists every missing or invalid setting for a code path.
type ConfigError struct {
	Path     Path
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Validate checks that the secrets and settings path needs are present.
// Secrets are looked up in the environment by their configured names.
func (c *AppConfig) Validate(path Path) error {
	v := &validator{}
	switch path {
	case PathIngestPDF:
		v.embedder(c)
		v.store(c)
	case PathIngestAudio:
		v.embedder(c)
		v.store(c)
		v.transcriber(c)
		v.audioEmbedder(c)
		if c.RecordingsDir == "" {
			v.add("recordings_dir is empty")
		}
	case PathQuery:
		v.embedder(c)
		v.store(c)
		v.generator(c)
	case PathListen:
		v.transcriber(c)
	}
	if t := c.Retrieval.MinSimilarity(); t < 0 || t > 1 {
		v.add(fmt.Sprintf("retrieval.threshold %.2f is outside [0, 1]", t))
	}
	if len(v.problems) > 0 {
		return &ConfigError{Path: path, Problems: v.problems}
	}
	return nil
}

type validator struct{ problems []string }

func (v *validator) add(p string) { v.problems = append(v.problems, p) }

func (v *validator) env(field, name string) {
	if name == "" {
		v.add(field + " is empty")
		return
	}
	if os.Getenv(name) == "" {
		v.add(fmt.Sprintf("environment variable %s (%s) is not set", name, field))
	}
}

func (v *validator) embedder(c *AppConfig) {
	switch c.Embedder.Type {
	case "hashing":
	case "openai":
		if c.Embedder.OpenAI == nil {
			v.add("embedder.openai is missing")
			return
		}
		v.env("embedder.openai.api_key_env", c.Embedder.OpenAI.APIKeyEnv)
	default:
		v.add(fmt.Sprintf("unknown embedder type %q", c.Embedder.Type))
	}
}

func (v *validator) store(c *AppConfig) {
	switch c.VectorStore.Type {
	case "memory":
	case "supabase":
		s := c.VectorStore.Supabase
		if s == nil {
			v.add("vector_store.supabase is missing")
			return
		}
		if s.URL == "" {
			v.add("vector_store.supabase.url is empty (or set SUPABASE_URL)")
		}
		v.env("vector_store.supabase.api_key_env", s.APIKeyEnv)
	case "postgres":
		if c.VectorStore.Postgres == nil {
			v.add("vector_store.postgres is missing")
			return
		}
		v.env("vector_store.postgres.dsn_env", c.VectorStore.Postgres.DSNEnv)
	default:
		v.add(fmt.Sprintf("unknown vector store type %q", c.VectorStore.Type))
	}
}

func (v *validator) generator(c *AppConfig) {
	switch c.Generator.Type {
	case "none":
	case "openai":
		v.env("generator.api_key_env", c.Generator.APIKeyEnv)
	default:
		v.add(fmt.Sprintf("unknown generator type %q", c.Generator.Type))
	}
}

func (v *validator) transcriber(c *AppConfig) {
	switch c.Transcriber.Type {
	case "vosk-server":
		if c.Transcriber.ServerURL == "" {
			v.add("transcriber.server_url is empty")
		}
	case "vosk-native":
		if c.Transcriber.ModelPath == "" {
			v.add("transcriber.model_path is empty (or set VOSK_MODEL_PATH)")
		} else if _, err := os.Stat(c.Transcriber.ModelPath); err != nil {
			v.add(fmt.Sprintf("transcriber.model_path %s does not exist", c.Transcriber.ModelPath))
		}
	default:
		v.add(fmt.Sprintf("unknown transcriber type %q", c.Transcriber.Type))
	}
}

func (v *validator) audioEmbedder(c *AppConfig) {
	switch c.AudioEmbedder.Type {
	case "none":
	case "tfserving":
		if c.AudioEmbedder.BaseURL == "" {
			v.add("audio_embedder.base_url is empty")
		}
	default:
		v.add(fmt.Sprintf("unknown audio embedder type %q", c.AudioEmbedder.Type))
	}
}
