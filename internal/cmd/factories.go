package cmd

import (
	"time"

	adaptercache "reqflow/internal/adapters/cache"
	adaptercapability "reqflow/internal/adapters/capability"
	adapterstorage "reqflow/internal/adapters/storage"
	"reqflow/internal/config"
	"reqflow/internal/logging"
	"reqflow/internal/ports"
	"reqflow/internal/services"
	"reqflow/internal/workflow"
)

// Default capability endpoints, overridable via settings.json
const (
	defaultAnalyzerURL  = "http://localhost:8001/invoke"
	defaultGeneratorURL = "http://localhost:8002/invoke"
)

// Container holds all dependencies for the application
type Container struct {
	Engine      *workflow.Engine
	Persistence *services.PersistenceManager
	Tracker     *services.FeedbackTracker

	// Internal - for cleanup only
	cache ports.Cache
	repo  ports.WorkflowRepository
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	if settings == nil {
		settings = &config.Settings{}
	}

	dbPath := settings.DBPath
	if dbPath == "" {
		dbPath = config.GetDBPath()
	}
	repo, err := adapterstorage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, err
	}

	cacheDir := settings.CacheDir
	if cacheDir == "" {
		cacheDir = config.GetCachePath()
	}
	var store ports.Cache
	badgerCache, err := adaptercache.NewBadgerCache(cacheDir)
	if err != nil {
		// The cache is an accelerator, never the source of truth; run
		// without one rather than failing startup.
		logging.Logger.Warn("cache unavailable, running without", "error", err)
		store = adaptercache.NoopCache{}
	} else {
		store = badgerCache
	}

	ttl := services.DefaultCacheTTL
	if settings.CacheTTLMinutes != nil && *settings.CacheTTLMinutes > 0 {
		ttl = time.Duration(*settings.CacheTTLMinutes) * time.Minute
	}
	persistence := services.NewPersistenceManager(repo, store, ttl)

	timeout := 120 * time.Second
	if settings.CapabilityTimeoutSeconds != nil && *settings.CapabilityTimeoutSeconds > 0 {
		timeout = time.Duration(*settings.CapabilityTimeoutSeconds) * time.Second
	}
	analyzerURL := settings.AnalyzerURL
	if analyzerURL == "" {
		analyzerURL = defaultAnalyzerURL
	}
	generatorURL := settings.GeneratorURL
	if generatorURL == "" {
		generatorURL = defaultGeneratorURL
	}
	analyzer := adaptercapability.NewHTTPCapability("requirement_analyzer", analyzerURL, timeout)
	generator := adaptercapability.NewHTTPCapability("test_case_generator", generatorURL, timeout)

	return &Container{
		Engine:      workflow.NewEngine(persistence, analyzer, generator),
		Persistence: persistence,
		Tracker:     services.NewFeedbackTracker(persistence),
		cache:       store,
		repo:        repo,
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var firstErr error
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			firstErr = err
		}
	}
	if c.repo != nil {
		if err := c.repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
