package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog_agent/pkg/api/assistant"
	"catalog_agent/pkg/api/auth"
	apicatalog "catalog_agent/pkg/api/catalog"
	apiconfig "catalog_agent/pkg/api/config"
	"catalog_agent/pkg/core/agent"
	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/config"
	"catalog_agent/pkg/core/extraction"
	"catalog_agent/pkg/core/llm"
	"catalog_agent/pkg/core/pipeline"
	"catalog_agent/pkg/core/prompt"
	"catalog_agent/pkg/core/reconcile"
	"catalog_agent/pkg/core/search"
	"catalog_agent/pkg/core/session"
	"catalog_agent/pkg/core/store"
	"catalog_agent/pkg/core/usage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load environment variables
	godotenv.Load()

	path := os.Getenv("CATALOG_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catalog store
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	cache := catalog.NewCache(st, cfg.Store.CacheTTL)
	if _, err := cache.Load(ctx); err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	}
	logger.Info("catalog connected", zap.String("backend", cfg.Store.Backend))

	kinds, err := cfg.Kinds()
	if err != nil {
		return err
	}

	// Prompt library: built-ins, optionally overridden from disk
	prompts := prompt.Get()
	if n, err := prompts.LoadFromDirectory(cfg.Prompts.Dir); err != nil {
		logger.Warn("prompt overrides not loaded, using built-in prompts", zap.String("dir", cfg.Prompts.Dir), zap.Error(err))
	} else {
		logger.Info("prompt overrides loaded", zap.Int("count", n), zap.String("dir", cfg.Prompts.Dir))
	}

	// Completion service
	var providers []llm.Provider
	if cfg.GeminiAPIKey != "" {
		providers = append(providers, llm.NewGeminiProvider(cfg.GeminiAPIKey, ""))
	}
	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, llm.NewDeepSeekProvider(cfg.DeepSeekAPIKey))
	}
	if len(providers) == 0 {
		logger.Warn("no completion provider configured; set GEMINI_API_KEY or DEEPSEEK_API_KEY")
	}
	agentMgr := agent.NewManager(cfg.Models, providers, usage.NewTracker(), logger.Named("agent"))

	// Optional write journal
	opts := reconcile.Options{
		Threshold: cfg.Catalog.MatchThreshold,
		AllowList: cfg.Catalog.AllowList,
		Kinds:     kinds,
		Logger:    logger.Named("reconcile"),
	}
	var journal *store.JournalRepo
	pool, err := store.OpenPool(ctx, cfg.Journal.DatabaseURL)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		journal = store.NewJournalRepo(pool)
		if err := journal.EnsureSchema(ctx); err != nil {
			return err
		}
		opts.Journal = journal
		logger.Info("write journal enabled")
	}
	engine := reconcile.NewEngine(cache, opts)

	extractor := extraction.NewPrompter(agentMgr, prompts, extraction.Options{
		Kinds:            kinds,
		Sentinel:         cfg.Catalog.Sentinel,
		MaxDocumentChars: cfg.Catalog.MaxDocumentChars,
		Logger:           logger.Named("extraction"),
	})
	orchestrator := pipeline.NewOrchestrator(cache, extractor, engine, logger.Named("pipeline"))
	searcher := search.NewPrompter(agentMgr, prompts, logger.Named("search"))
	sessions := session.NewManager(cfg.Secret, cfg.Server.SessionTTL)
	if cfg.Secret == "" {
		logger.Warn("CATALOG_SECRET is not set; every login will be refused")
	}

	// HTTP surface
	mux := http.NewServeMux()
	gate := auth.NewHandler(sessions, cfg.Server.SessionTTL, logger.Named("auth"))
	mux.HandleFunc("POST /api/login", gate.HandleLogin)
	mux.HandleFunc("POST /api/logout", gate.HandleLogout)

	catalogHandler := apicatalog.NewHandler(cache, engine, sessions, orchestrator, kinds, logger.Named("api"))
	catalogHandler.MaxUpload = cfg.Server.MaxUpload
	if journal != nil {
		catalogHandler.Journal = journal
	}
	catalogHandler.Register(mux, gate.Require)

	assistant.NewHandler(cache, searcher, logger.Named("api")).Register(mux, gate.Require)
	apiconfig.NewHandler(agentMgr, cfg.Catalog.MatchThreshold, cfg.Catalog.AllowList, logger.Named("api")).Register(mux, gate.Require)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (catalog.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSheets:
		return store.NewSheetsStore(ctx, []byte(cfg.CredentialsJSON), cfg.Store.SpreadsheetID, cfg.Store.Worksheet)
	case config.BackendXLSX:
		return store.NewWorkbookStore(cfg.Store.XLSXPath, cfg.Store.Worksheet, cfg.Store.Header)
	case config.BackendMemory:
		return store.NewMemoryStore(cfg.Store.Header), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
