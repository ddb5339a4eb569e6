package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/capability"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/chat"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/config"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/core"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/frames"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/indexer"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/pipeline"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/search"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/sections"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/server"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/store"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/transcript"
	"github.com/Nawaf-TBE/Mutli-Video-analysis-2/vectorstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := core.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		// The server still serves stored data without model credentials;
		// processing and chat will fail until they are configured.
		log.Warn("incomplete configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := buildRepository(cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	vectors := buildVectorStore(ctx, cfg, log)

	cli := capability.NewOpenAIClient(cfg)
	generator := capability.NewOpenAIGenerator(cli, cfg.ChatModel)
	textEmbedder := capability.NewOpenAITextEmbedder(cli, cfg.EmbeddingModel)
	clip := capability.NewClipClient(cfg.ClipURL, 60*time.Second)
	media := capability.NewMediaTools()

	chain := transcript.NewChain(core.WithComponent(log, "transcript"), 5*time.Minute,
		transcript.NewModelStrategy(generator),
		transcript.NewCaptionStrategy(capability.NewCaptionClient(cfg.TranscriptAPIURL)),
		transcript.NewSubtitleStrategy(media, cfg.DataRoot),
	)
	segmenter := sections.NewSegmenter(generator, float64(cfg.SectionChunkSec), core.WithComponent(log, "sections"))
	sampler := frames.NewSampler(media, cfg.DataRoot, float64(cfg.FrameInterval), core.WithComponent(log, "frames"))
	frameIndexer := indexer.New(clip, vectors, cfg.IndexWorkers, cfg.IndexBatchSize, core.WithComponent(log, "indexer"))

	pipe := pipeline.New(repo, vectors, chain, segmenter, sampler, frameIndexer, media,
		cfg.DataRoot, float64(cfg.SectionChunkSec), core.WithComponent(log, "pipeline"))

	searchEngine := search.NewEngine(repo, vectors, clip,
		cfg.TextWeight, cfg.VisualWeight, cfg.TopK, core.WithComponent(log, "search"))

	var ranker chat.Ranker = chat.LexicalRanker{}
	if cfg.HasValidAPI() && cfg.EmbeddingModel != "" {
		ranker = chat.NewEmbeddingRanker(textEmbedder)
	}
	chatEngine := chat.NewEngine(repo, generator, ranker,
		cfg.HistoryTurns, cfg.ContextBudget, core.WithComponent(log, "chat"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.New(repo, pipe, searchEngine, chatEngine, float64(cfg.FrameInterval), core.WithComponent(log, "http")).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // processing runs synchronously
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func buildRepository(cfg *config.Config, log *slog.Logger) (store.Repository, func(), error) {
	if cfg.SQLitePath == config.MemoryStore {
		log.Info("using in-memory repository")
		return store.NewMemoryRepository(), func() {}, nil
	}
	repo, err := store.NewSQLiteRepository(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	log.Info("using sqlite repository", "path", cfg.SQLitePath)
	return repo, func() { _ = repo.Close() }, nil
}

// buildVectorStore picks the configured backend, falling back to the
// in-memory store when the external one is unreachable.
func buildVectorStore(ctx context.Context, cfg *config.Config, log *slog.Logger) vectorstore.VectorStore {
	switch cfg.Store {
	case "pgvector":
		s, err := vectorstore.NewPgVectorStore(ctx, cfg.PostgresURL, capability.ClipDimension)
		if err == nil {
			log.Info("using pgvector store")
			return s
		}
		log.Warn("pgvector unavailable, falling back to memory store", "error", err)
	case "milvus":
		s, err := vectorstore.NewMilvusVectorStore(ctx, cfg.MilvusAddr, capability.ClipDimension)
		if err == nil {
			log.Info("using milvus store")
			return s
		}
		log.Warn("milvus unavailable, falling back to memory store", "error", err)
	}
	log.Info("using in-memory vector store")
	return vectorstore.NewMemoryVectorStore()
}
