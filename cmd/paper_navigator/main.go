package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"paper_navigator/internal/app"
	"paper_navigator/internal/config"
	"paper_navigator/internal/embedcache"
	"paper_navigator/internal/index"
	"paper_navigator/internal/llm"
	"paper_navigator/internal/logger"
	"paper_navigator/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// runtime is everything a subcommand needs, built from the environment.
type runtime struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	app     *app.App
	metrics *metrics.Recorder
	closers []func() error
}

// Close releases the Redis connection and flushes the logger.
func (rt *runtime) Close() {
	for _, c := range rt.closers {
		if err := c(); err != nil {
			rt.log.Warnf("close: %v", err)
		}
	}
	_ = rt.log.Sync()
}

// bootstrap loads the configuration and builds the pipeline.
func bootstrap(ctx context.Context) (*runtime, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log}

	log.Infof("Documents directory: %s", cfg.DocumentsPath)
	log.Infof("Vector database: %s (collection %s)", cfg.VectorDBPath, cfg.CollectionName)

	embed := chromem.NewEmbeddingFuncOllama(cfg.OllamaEmbedModel, strings.TrimRight(cfg.OllamaURL, "/")+"/api")
	if cfg.RedisAddr != "" {
		store := embedcache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CollectionName+":")
		if err := store.Ping(ctx); err != nil {
			log.Warnf("⚠️  Redis at %s unreachable, embedding cache disabled: %v", cfg.RedisAddr, err)
			_ = store.Close()
		} else {
			log.Infof("Embedding cache enabled (redis %s, ttl %s)", cfg.RedisAddr, cfg.EmbedCacheTTL)
			embed = embedcache.Wrap(embed, store, cfg.OllamaEmbedModel, cfg.EmbedCacheTTL, log)
			rt.closers = append(rt.closers, store.Close)
		}
	}

	idx, err := index.Open(index.Options{
		Path:        cfg.VectorDBPath,
		Collection:  cfg.CollectionName,
		Compress:    cfg.CompressDB,
		Concurrency: cfg.EmbedConcurrency,
		Embed:       embed,
	}, log)
	if err != nil {
		rt.Close()
		return nil, err
	}

	gen, err := llm.New(llm.Options{
		ServerURL:   cfg.OllamaURL,
		Model:       cfg.OllamaModel,
		Timeout:     cfg.LLMTimeout,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.metrics = metrics.New()
	rt.app = app.New(cfg, idx, gen, rt.metrics, log)
	if err := rt.app.Init(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return rt, nil
}
