package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xhad/webqa/internal/types"
	cfgPkg "github.com/xhad/webqa/pkg/config"
	"github.com/xhad/webqa/pkg/form"
	"github.com/xhad/webqa/pkg/llm"
	"github.com/xhad/webqa/pkg/processor"
	"github.com/xhad/webqa/pkg/rag"
	"github.com/xhad/webqa/pkg/scraper"
	"github.com/xhad/webqa/pkg/store"
	"github.com/xhad/webqa/server"
)

type flags struct {
	configPath  string
	addr        string
	model       string
	interactive bool
	streaming   bool
}

func main() {
	if err := run(parseFlags()); err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run(f flags) error {
	cfg, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	f.apply(cfg)

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		return errors.New("invalid configuration")
	}

	level := slog.LevelInfo
	if cfg.Server.GinMode == gin.DebugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, closeFn, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if f.interactive {
		err = runInteractive(ctx, controller)
	} else {
		err = serve(ctx, cfg, controller, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address")
	flag.StringVar(&f.model, "model", "", "LLM model to use")
	flag.BoolVar(&f.interactive, "interactive", false, "Ask questions from the terminal instead of serving HTTP")
	flag.BoolVar(&f.streaming, "stream", false, "Stream answers as they are generated")
	flag.Parse()
	return f
}

// apply overrides config values with the flags given on the command line.
func (f flags) apply(cfg *cfgPkg.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Server.Addr = f.addr
		case "model":
			cfg.LLM.Model = f.model
		case "stream":
			cfg.Server.Streaming = f.streaming
		}
	})
}

// build wires the pipeline behind a form controller.
func build(ctx context.Context, cfg *cfgPkg.Config, logger *slog.Logger) (*form.Controller, func(), error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		BatchSize: cfg.Embedder.BatchSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	fetcher := scraper.NewWithConfig(scraper.ScraperConfig{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.Scraper.Timeout,
		RateLimit: cfg.Scraper.RateLimit,
		OnProgress: func(url string) {
			logger.Debug("fetching page", "url", url)
		},
		Logger: logger,
	})

	chunker := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
		Separator:    cfg.Processor.Separator,
		Logger:       logger,
	})

	closeFn := func() {}
	var indexes types.IndexFactory = store.MemoryFactory{Embedder: embedder}
	if cfg.Retrieval.Backend == "pgvector" {
		vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			Embedder:   embedder,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		indexes = vectorStore
		closeFn = vectorStore.Close
	}

	pipeline := rag.New(fetcher, chunker, indexes, chatEngine, chatEngine, rag.Options{
		TopK:      cfg.Retrieval.TopK,
		Streaming: cfg.Server.Streaming,
	}, logger)

	return form.NewController(pipeline, logger), closeFn, nil
}

func serve(ctx context.Context, cfg *cfgPkg.Config, controller *form.Controller, logger *slog.Logger) error {
	srv := server.New(controller, server.Config{GinMode: cfg.Server.GinMode}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
