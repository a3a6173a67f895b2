package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"multimodal-rag/internal/audiofeature"
	"multimodal-rag/internal/audiofeature/tfserving"
	"multimodal-rag/internal/chunker"
	"multimodal-rag/internal/config"
	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/embedding"
	"multimodal-rag/internal/embedding/hashing"
	"multimodal-rag/internal/embedding/openai"
	"multimodal-rag/internal/generation"
	"multimodal-rag/internal/llm"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/metrics"
	"multimodal-rag/internal/retrieval"
	"multimodal-rag/internal/service"
	"multimodal-rag/internal/summarizer"
	"multimodal-rag/internal/transcriber"
	"multimodal-rag/internal/transcriber/vosk"
	"multimodal-rag/internal/vectorstore/memory"
	"multimodal-rag/internal/vectorstore/postgres"
	"multimodal-rag/internal/vectorstore/supabase"
)

// App holds what a command needs once configuration is loaded.
type App struct {
	Config  *config.AppConfig
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	closers []func()
}

// loadApp reads the configuration, applies flag overrides, sets up logging
// and checks that path has everything it needs.
func loadApp(ctx context.Context, path config.Path) (*App, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lcfg := logger.DefaultConfig()
	lcfg.Level = level
	lcfg.Format = cfg.Logging.Format
	app := &App{Config: cfg, Logger: logger.New(lcfg), Metrics: metrics.New()}

	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		app.serveMetrics(ctx, addr)
	}
	return app, nil
}

// Close releases every resource opened through the app.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	a.Logger.Info("serving metrics", "addr", addr)
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
}

// Service assembles the pipeline for path. Stages path does not use are
// left out.
func (a *App) Service(ctx context.Context, path config.Path) (*service.Service, error) {
	cfg := a.Config
	emb, err := a.textEmbedder()
	if err != nil {
		return nil, err
	}
	store, err := a.vectorStore(ctx, emb)
	if err != nil {
		return nil, err
	}

	c := service.Components{
		Chunker:  chunker.NewPageChunker(cfg.Chunker.PageMarker),
		Embedder: emb,
		Store:    store,
		Retriever: retrieval.New(emb, store,
			retrieval.WithThreshold(cfg.Retrieval.MinSimilarity()),
			retrieval.WithTopK(cfg.Retrieval.TopK),
			retrieval.WithLogger(a.Logger),
			retrieval.WithMetrics(a.Metrics)),
		Summarizer: summarizer.NewFrequencySummarizer(),
	}
	if path == config.PathQuery && cfg.Generator.Type == "openai" {
		client, err := llm.NewOpenAIClient(llm.Config{
			BaseURL:     cfg.Generator.BaseURL,
			APIKeyEnv:   cfg.Generator.APIKeyEnv,
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
			Timeout:     seconds(cfg.Generator.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("chat client: %w", err)
		}
		c.Generator = generation.New(client, generation.WithLogger(a.Logger), generation.WithMetrics(a.Metrics))
	}
	if path == config.PathIngestAudio {
		if c.Transcriber, err = a.Transcriber(); err != nil {
			return nil, err
		}
		c.AudioFeatures = a.audioExtractor()
	}

	batch := 0
	if cfg.Embedder.OpenAI != nil {
		batch = cfg.Embedder.OpenAI.BatchSize
	}
	return service.New(c,
		service.WithLogger(a.Logger),
		service.WithMetrics(a.Metrics),
		service.WithRecordingsDir(cfg.RecordingsDir),
		service.WithSummarySentences(cfg.Summarizer.MaxSentences),
		service.WithBatchSize(batch),
	), nil
}

// Transcriber creates the configured speech engine and a file-mode
// transcriber on it.
func (a *App) Transcriber() (*transcriber.Transcriber, error) {
	tc := a.Config.Transcriber
	var engine transcriber.Engine
	switch tc.Type {
	case "vosk-server":
		engine = vosk.NewServerEngine(tc.ServerURL, seconds(tc.TimeoutSecs))
	case "vosk-native":
		e, closeFn, err := newNativeEngine(tc.ModelPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeFn)
		engine = e
	default:
		return nil, fmt.Errorf("unknown transcriber: %s", tc.Type)
	}
	a.Logger.Debug("speech engine ready", "type", tc.Type)
	return transcriber.New(engine, transcriber.WithLogger(a.Logger), transcriber.WithMetrics(a.Metrics)), nil
}

func (a *App) textEmbedder() (domain.TextEmbedder, error) {
	ec := a.Config.Embedder
	switch ec.Type {
	case "hashing":
		return hashing.NewEmbedder(ec.Dimension), nil
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:   ec.OpenAI.BaseURL,
			APIKeyEnv: ec.OpenAI.APIKeyEnv,
			Model:     ec.OpenAI.Model,
			Dimension: ec.Dimension,
			Timeout:   seconds(ec.OpenAI.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return embedding.Locked(client), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", ec.Type)
	}
}

func (a *App) vectorStore(ctx context.Context, emb domain.TextEmbedder) (domain.VectorStore, error) {
	vc := a.Config.VectorStore
	switch vc.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "supabase":
		return supabase.NewStorage(supabase.Config{
			URL:                vc.Supabase.URL,
			APIKey:             os.Getenv(vc.Supabase.APIKeyEnv),
			ChunkTable:         vc.Supabase.ChunkTable,
			AudioTable:         vc.Supabase.AudioTable,
			MatchFunction:      vc.Supabase.MatchFunction,
			AudioMatchFunction: vc.Supabase.AudioMatchFunction,
			Timeout:            seconds(vc.Supabase.TimeoutSecs),
		}), nil
	case "postgres":
		st, err := postgres.Open(ctx, os.Getenv(vc.Postgres.DSNEnv))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		dim := emb.Dimension()
		if dim == 0 {
			return nil, errors.New("postgres store needs a known embedding dimension: set embedder.dimension")
		}
		if err := st.EnsureSchema(ctx, dim); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", vc.Type)
	}
}

func (a *App) audioExtractor() *audiofeature.Extractor {
	ac := a.Config.AudioEmbedder
	var model audiofeature.FrameEmbedder
	if ac.Type == "tfserving" {
		model = tfserving.NewClient(tfserving.Config{BaseURL: ac.BaseURL, Model: ac.Model, Timeout: seconds(ac.TimeoutSecs)})
	}
	return audiofeature.NewExtractor(model, audiofeature.WithLogger(a.Logger), audiofeature.WithMetrics(a.Metrics))
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
