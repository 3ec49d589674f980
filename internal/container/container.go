package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	logpatternclient "obsnote/adapters/logpattern"
	"obsnote/adapters/mlagent"
	"obsnote/adapters/postgres"
	"obsnote/adapters/search"
	"obsnote/app"
	"obsnote/internal/analysis/bubbleup"
	"obsnote/internal/api"
	"obsnote/internal/config"
	"obsnote/internal/metrics"
	"obsnote/internal/migration"
	"obsnote/internal/state"
	"obsnote/ports"
	"obsnote/ui"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB      *sqlx.DB
	Metrics *metrics.Metrics
	States  *state.Store

	// Adapters
	Search       *search.Client
	LogPattern   ports.LogPatternPort
	AgentMemory  ports.AgentMemoryPort
	OutputRepo   ports.ParagraphOutputRepository
	EventStreams *api.SSEHub

	// Services
	BubbleUp    *app.BubbleUpService
	LogPatterns *app.LogPatternService
	Paragraphs  *app.ParagraphService
	AgentTraces *app.AgentTraceService
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:  cfg,
		Metrics: metrics.New(),
		States:  state.NewStore(),
	}
	c.initAdapters()
	return c, nil
}

// Open connects to the configured database and initializes everything
// that depends on it.
func Open(ctx context.Context, cfg *config.Config) (*Container, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Database.Driver == config.DriverSQLite {
		// sqlite serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := c.InitWithDatabase(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// InitWithDatabase migrates the schema and initializes repositories and
// services
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	c.OutputRepo = postgres.NewParagraphOutputRepository(db)
	c.initServices()

	logrus.WithField("driver", c.Config.Database.Driver).Info("container initialized")
	return nil
}

func (c *Container) initAdapters() {
	cfg := c.Config
	c.Search = search.NewClient(search.Config{
		BaseURL:       cfg.Search.URL,
		Username:      cfg.Search.Username,
		Password:      cfg.Search.Password,
		Timeout:       cfg.Search.Timeout,
		FieldCacheTTL: cfg.Search.FieldCacheTTL,
	})
	c.LogPattern = logpatternclient.NewClient(cfg.LogPattern.URL, cfg.LogPattern.Timeout)
	c.AgentMemory = mlagent.NewClient(cfg.Agent.URL, cfg.Search.Timeout)
	c.EventStreams = api.NewSSEHub(c.States)
}

// Analyzer builds the bubble-up analyzer from configuration
func (c *Container) Analyzer() *bubbleup.Analyzer {
	cfg := c.Config.Analysis
	return bubbleup.NewAnalyzer(
		bubbleup.NewSampler(c.Search, cfg.SampleSize),
		bubbleup.NewFieldDiscoverer(c.Search),
		bubbleup.Options{
			GroupCount: cfg.GroupCount,
			MaxResults: cfg.MaxResults,
			Workers:    cfg.FieldWorkers,
		},
	)
}

func (c *Container) initServices() {
	c.BubbleUp = app.NewBubbleUpService(c.Analyzer(), c.OutputRepo, c.States, c.Metrics)
	c.LogPatterns = app.NewLogPatternService(c.LogPattern, c.OutputRepo, c.States, c.Metrics)
	c.Paragraphs = app.NewParagraphService(c.OutputRepo, c.States)
	c.AgentTraces = app.NewAgentTraceService(c.AgentMemory, c.Config.Agent.PollInterval).
		WithRetention(c.Config.Agent.TraceRetention)
}

// Server builds the HTTP server over the container's services
func (c *Container) Server() *ui.Server {
	return ui.NewServer(ui.Services{
		BubbleUp:    c.BubbleUp,
		LogPatterns: c.LogPatterns,
		Paragraphs:  c.Paragraphs,
		AgentTraces: c.AgentTraces,
		Events:      c.EventStreams,
		Metrics:     c.Metrics,
	})
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.AgentTraces != nil {
		c.AgentTraces.StopAll()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
