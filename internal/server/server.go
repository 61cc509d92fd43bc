package server

import (
	"context"
	"fmt"

	"github.com/baswilson/memory-engine/internal/ai"
	"github.com/baswilson/memory-engine/internal/config"
	"github.com/baswilson/memory-engine/internal/database"
	"github.com/baswilson/memory-engine/internal/memory"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MemoryStore is the persistence the memory handlers call into.
type MemoryStore interface {
	Create(ctx context.Context, req *memory.CreateRequest) (*memory.Record, error)
	Update(ctx context.Context, req *memory.UpdateRequest) (*memory.Record, error)
	Delete(ctx context.Context, id, userID int64) error
	Get(ctx context.Context, id int64, userID *int64) (*memory.Record, error)
	ListByUser(ctx context.Context, userID string) ([]*memory.Record, error)
}

// Embedder generates embeddings for the embeddings endpoint.
type Embedder interface {
	Embed(ctx context.Context, text string) (*ai.Embedding, error)
}

// Server is the main application server
type Server struct {
	config   *config.Config
	router   *chi.Mux
	logger   *zap.Logger
	dbDriver database.Driver
	memory   MemoryStore
	llm      Embedder
}

// New creates a new Server instance
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	driver, err := database.NewSQLiteDriver(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := driver.Initialize(context.Background()); err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Connected to SQLite database", zap.String("path", cfg.DatabasePath))

	if cfg.OpenRouterAPIKey == "" {
		logger.Warn("OPENROUTER_API_KEY is not set, LLM requests will be sent without credentials")
	}

	return newServer(cfg, logger, driver, memory.NewStore(driver.DB()), ai.NewClient(cfg)), nil
}

func newServer(cfg *config.Config, logger *zap.Logger, driver database.Driver, store MemoryStore, llm Embedder) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		dbDriver: driver,
		memory:   store,
		llm:      llm,
	}

	s.setupRoutes()

	return s
}

// Router returns the HTTP router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases the LLM handle and closes the database
func (s *Server) Shutdown(ctx context.Context) error {
	if c, ok := s.llm.(interface{ Close() }); ok {
		c.Close()
	}

	if s.dbDriver != nil {
		if err := s.dbDriver.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
