package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/askdb/internal/config"
	"github.com/leapstack-labs/askdb/internal/history"
	"github.com/leapstack-labs/askdb/internal/llm"
	"github.com/leapstack-labs/askdb/internal/pipeline"
	"github.com/leapstack-labs/askdb/internal/rag"
	"github.com/leapstack-labs/askdb/internal/store"
)

// app bundles the wired components behind the commands.
type app struct {
	store    store.Store
	history  *history.Store
	pipeline *pipeline.Pipeline
	rag      *rag.Service
	logger   *slog.Logger
}

// newApp connects the database and history stores, indexes the schema for
// retrieval, and assembles the pipeline.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st, err := store.New(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The embedded demo dataset gives a fresh SQLite database something
	// to answer questions about. Loading is idempotent.
	if sqliteStore, ok := st.(*store.SQLiteStore); ok {
		if err := sqliteStore.LoadSampleData(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to load sample data: %w", err)
		}
	}

	hist := history.NewStore(logger)
	if err := hist.Open(cfg.History.Path); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	if err := hist.InitSchema(); err != nil {
		_ = hist.Close()
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "openai":
		provider = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Timeout:     cfg.LLM.Timeout,
			Temperature: cfg.LLM.Temperature,
		})
	default:
		provider = &llm.Mock{}
	}

	ragService := rag.NewService(provider, logger)
	schemas, err := st.SchemaInfo(ctx, nil)
	if err != nil {
		logger.Warn("schema indexing skipped", "error", err)
	} else {
		ragService.IndexSchema(schemas)
	}

	p := pipeline.New(pipeline.Config{
		Retriever:  ragService,
		Generator:  ragService,
		Executor:   st,
		Recorder:   hist,
		Logger:     logger,
		MaxRetries: cfg.Pipeline.MaxRetries,
	})

	return &app{
		store:    st,
		history:  hist,
		pipeline: p,
		rag:      ragService,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.history.Close(); err != nil {
		a.logger.Warn("history close failed", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close failed", "error", err)
	}
}
