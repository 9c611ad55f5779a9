// Command agentpanel serves the discussion API.
//
// Usage:
//
//	agentpanel                        # configuration from the environment
//	agentpanel -config agentpanel.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentpanel"
	"github.com/hupe1980/agentpanel/conversation/redis"
	"github.com/hupe1980/agentpanel/core"
	"github.com/hupe1980/agentpanel/engine"
	"github.com/hupe1980/agentpanel/internal/config"
	"github.com/hupe1980/agentpanel/internal/metrics"
	"github.com/hupe1980/agentpanel/internal/server"
	"github.com/hupe1980/agentpanel/logging"
	"github.com/hupe1980/agentpanel/model"
	"github.com/hupe1980/agentpanel/model/anthropic"
	"github.com/hupe1980/agentpanel/model/gemini"
	"github.com/hupe1980/agentpanel/model/ollama"
	"github.com/hupe1980/agentpanel/model/openai"
	"github.com/hupe1980/agentpanel/moderator"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "agentpanel: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger, flush, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	models, err := newModels(ctx, cfg.Providers)
	if err != nil {
		return err
	}
	if len(models.IDs()) == 0 {
		logger.Warn("no model backend configured; discussions will be rejected")
	}

	store, err := newStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(metrics.DefaultNamespace, prometheus.DefaultRegisterer)
	callbacks := engine.NewCallbackManager()
	collector.Register(callbacks)

	panel := agentpanel.New(models, func(o *agentpanel.Options) {
		o.EngineConfig = cfg.EngineConfig()
		o.Callbacks = callbacks
		o.Logger = logger
		if store != nil {
			o.Store = store
		}
		o.Synthesizer = moderator.New(models, func(mo *moderator.Options) {
			mo.DefaultBackend = cfg.Discussion.ModeratorBackend
			mo.DefaultModel = cfg.Discussion.ModeratorModel
			mo.Logger = logger
		})
	})

	srv := server.New(panel, func(o *server.Options) {
		o.Logger = logger
		o.Metrics = collector
		o.CORSOrigins = cfg.Server.CORSOrigins
		o.Services = cfg.Services()
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agentpanel listening", "addr", cfg.Server.Addr, "backends", models.IDs())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Backend == "zap" {
		zl, err := logging.NewZapLogger(level, cfg.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		adapter := logging.NewZapAdapter(zl)
		return adapter, func() { _ = adapter.Sync() }, nil
	}
	return logging.NewSlogLogger(level, cfg.Format, false).WithComponent("agentpanel"), func() {}, nil
}

// newModels registers one backend per configured provider.
func newModels(ctx context.Context, cfg config.ProvidersConfig) (*model.Registry, error) {
	reg := model.NewRegistry()

	if cfg.OpenAI.APIKey != "" {
		reg.Register("openai", openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.OpenAI.APIKey
			o.BaseURL = cfg.OpenAI.BaseURL
		}))
	}
	if cfg.Gemini.APIKey != "" {
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = cfg.Gemini.APIKey
		})
		if err != nil {
			return nil, fmt.Errorf("gemini backend: %w", err)
		}
		reg.Register("gemini", m)
	}
	if cfg.Claude.APIKey != "" {
		reg.Register("claude", anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.Claude.APIKey
			o.BaseURL = cfg.Claude.BaseURL
		}))
	}
	if cfg.Ollama.Enabled {
		m, err := ollama.NewModel(func(o *ollama.Options) {
			o.BaseURL = cfg.Ollama.BaseURL
		})
		if err != nil {
			return nil, fmt.Errorf("ollama backend: %w", err)
		}
		reg.Register("ollama", m)
	}
	return reg, nil
}

// newStore returns the Redis store when an address is configured and nil
// otherwise, leaving the in-memory default in place.
func newStore(ctx context.Context, cfg config.RedisConfig) (core.ConversationStore, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store := redis.New(client, func(o *redis.Options) {
		if cfg.KeyPrefix != "" {
			o.KeyPrefix = cfg.KeyPrefix
		}
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return store, nil
}
