package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/nidhogg/giffly/internal/analysis"
	"github.com/nidhogg/giffly/internal/api"
	"github.com/nidhogg/giffly/internal/cache"
	"github.com/nidhogg/giffly/internal/catalog"
	"github.com/nidhogg/giffly/internal/config"
	"github.com/nidhogg/giffly/internal/gateway"
	"github.com/nidhogg/giffly/internal/lexicon"
	"github.com/nidhogg/giffly/internal/provider"
	"github.com/nidhogg/giffly/internal/recommend"
	"github.com/nidhogg/giffly/internal/retry"
	msgrouter "github.com/nidhogg/giffly/internal/router"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/giffly.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	logger.Info("Starting giffly...", zap.String("config", cfgPath))
	ctx := context.Background()

	dict := loadDictionary(ctx, cfg, logger)

	// Catalog: PostgreSQL when configured, else the JSON seed file.
	var (
		cat     catalog.Catalog
		pgStore *catalog.Store
	)
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := catalog.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, falling back to seed catalog", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, cfg.Catalog.MigrationsDir); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			cat = ps
		}
	}
	if cat == nil {
		cat = loadSeedCatalog(cfg.Catalog.SeedPath, logger)
	}

	// Result cache: Redis when configured, else in-process.
	var resultCache cache.Cache
	if cfg.Database.Redis.URL != "" {
		rc, rErr := cache.NewRedis(ctx, cfg.Database.Redis.URL, cfg.Database.Redis.Prefix)
		if rErr != nil {
			logger.Warn("Redis unavailable, using in-memory cache", zap.Error(rErr))
		} else {
			resultCache = rc
			logger.Info("Redis cache connected")
		}
	}
	if resultCache == nil {
		mem := cache.NewMemory()
		resultCache = mem
		go sweepLoop(ctx, mem, time.Minute)
	}

	var analyzer *analysis.Analyzer
	if cfg.Analysis.Enabled {
		providers := buildProviders(cfg, logger)
		if providers.Len() == 0 {
			logger.Warn("AI analysis enabled but no providers configured")
		} else {
			analyzer = analysis.NewAnalyzer(providers, analysis.Config{
				Model:   cfg.Analysis.Model,
				Timeout: cfg.Analysis.Timeout.Std(),
				Retry: retry.Policy{
					MaxAttempts: cfg.Analysis.MaxAttempts,
					Backoff:     cfg.Analysis.Backoff.Std(),
					MaxBackoff:  cfg.Analysis.MaxBackoff.Std(),
				},
				BreakerFailures: cfg.Analysis.BreakerFailures,
				BreakerCooldown: cfg.Analysis.BreakerCooldown.Std(),
			}, logger)
			logger.Info("AI analysis enabled", zap.String("provider", providers.DefaultID()))
		}
	}

	svc := recommend.NewService(dict, cat, resultCache, analysisOrNil(analyzer), recommend.Config{
		Limit:        cfg.Recommend.Limit,
		CacheTTL:     cfg.Recommend.CacheTTL.Std(),
		MinScore:     cfg.Recommend.MinScore,
		MinRelevance: cfg.Recommend.MinRelevance,
	}, logger)

	// Gateway: the handler must be set before adapters are registered.
	gw := gateway.NewGateway(logger)
	gw.SetHandler(msgrouter.New(svc, gw, logger).Handle)
	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)
	if sc := cfg.Gateway.Slack; sc.Enabled && sc.BotToken != "" && sc.AppToken != "" {
		gw.Register(gateway.NewSlackAdapter(sc.BotToken, sc.AppToken, logger))
	}
	if dc := cfg.Gateway.Discord; dc.Enabled && dc.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(dc.BotToken, logger))
	}
	broadcaster := gateway.NewBroadcaster(gw, logger)

	gwCtx, gwCancel := context.WithCancel(ctx)
	if err := gw.ConnectAll(gwCtx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	handler := api.NewHandler(svc, analyzer, gw, restAdapter, broadcaster, cfg.Server.CORSOrigins, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("giffly listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down giffly...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	gwCancel()
	gw.Close()
	resultCache.Close()
	if pgStore != nil {
		pgStore.Close()
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	switch level {
	case "info", "warn", "error":
		zc := zap.NewProductionConfig()
		if lvl, lerr := zap.ParseAtomicLevel(level); lerr == nil {
			zc.Level = lvl
		}
		logger, err = zc.Build()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// analysisOrNil keeps a nil *Analyzer from becoming a non-nil interface.
func analysisOrNil(a *analysis.Analyzer) recommend.Analyzer {
	if a == nil {
		return nil
	}
	return a
}

func buildProviders(cfg *config.Config, logger *zap.Logger) *provider.Router {
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		var creds provider.Credentials = provider.StaticKey(pc.APIKey)
		if pc.Auth != nil && pc.Auth.TokenURL != "" {
			creds = provider.NewClientCredentials(pc.Auth.TokenURL, pc.Auth.ClientID, pc.Auth.ClientSecret, pc.Auth.Scope)
		}
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, Model: pc.Model, Extra: pc.Extra,
			Timeout: pc.Timeout.Std(), Credentials: creds,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if cfg.Analysis.Provider != "" {
		router.SetDefault(cfg.Analysis.Provider)
	}
	router.SetFallbacks(cfg.Analysis.Fallbacks)
	return router
}

func loadDictionary(ctx context.Context, cfg *config.Config, logger *zap.Logger) *lexicon.Dictionary {
	dict := lexicon.Default()
	if cfg.Dictionary.Path != "" {
		d, err := lexicon.Load(cfg.Dictionary.Path)
		if err != nil {
			logger.Fatal("failed to load dictionary", zap.Error(err))
		}
		dict = d
	}
	if !cfg.Dictionary.Graph || cfg.Database.Neo4j.URI == "" {
		return dict
	}

	nc := cfg.Database.Neo4j
	driver, err := neo4j.NewDriverWithContext(nc.URI, neo4j.BasicAuth(nc.User, nc.Password, ""))
	if err != nil {
		logger.Warn("Neo4j unavailable, using static synonyms", zap.Error(err))
		return dict
	}
	defer driver.Close(ctx)

	gctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(gctx); err != nil {
		logger.Warn("Neo4j unavailable, using static synonyms", zap.Error(err))
		return dict
	}
	merged, err := lexicon.LoadGraph(gctx, driver, dict, logger)
	if err != nil {
		logger.Warn("synonym graph load failed, using static synonyms", zap.Error(err))
		return dict
	}
	return merged
}

func loadSeedCatalog(path string, logger *zap.Logger) catalog.Catalog {
	if path == "" {
		logger.Warn("no catalog configured, starting with an empty catalog")
		return catalog.NewMemory()
	}
	mem, err := catalog.LoadMemory(path)
	if err != nil {
		logger.Fatal("failed to load seed catalog", zap.String("path", path), zap.Error(err))
	}
	logger.Info("seed catalog loaded", zap.String("path", path))
	return mem
}

func sweepLoop(ctx context.Context, m *cache.Memory, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
