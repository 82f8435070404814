// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/recipe-importer/internal/ai"
	"github.com/JakeFAU/recipe-importer/internal/ai/claude"
	"github.com/JakeFAU/recipe-importer/internal/ai/gemini"
	"github.com/JakeFAU/recipe-importer/internal/api"
	"github.com/JakeFAU/recipe-importer/internal/breaker"
	"github.com/JakeFAU/recipe-importer/internal/clock/system"
	"github.com/JakeFAU/recipe-importer/internal/confidence"
	"github.com/JakeFAU/recipe-importer/internal/config"
	"github.com/JakeFAU/recipe-importer/internal/dispatcher"
	"github.com/JakeFAU/recipe-importer/internal/domains"
	"github.com/JakeFAU/recipe-importer/internal/extract"
	"github.com/JakeFAU/recipe-importer/internal/fetcher"
	collyfetcher "github.com/JakeFAU/recipe-importer/internal/fetcher/colly"
	"github.com/JakeFAU/recipe-importer/internal/fetcher/headless"
	"github.com/JakeFAU/recipe-importer/internal/id/uuid"
	"github.com/JakeFAU/recipe-importer/internal/linkdetect"
	"github.com/JakeFAU/recipe-importer/internal/logging"
	"github.com/JakeFAU/recipe-importer/internal/normalize"
	"github.com/JakeFAU/recipe-importer/internal/nutrition"
	"github.com/JakeFAU/recipe-importer/internal/orchestrator"
	"github.com/JakeFAU/recipe-importer/internal/policy/ratelimit"
	"github.com/JakeFAU/recipe-importer/internal/publisher"
	gcppublisher "github.com/JakeFAU/recipe-importer/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/recipe-importer/internal/queue/memory"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
	gcsstorage "github.com/JakeFAU/recipe-importer/internal/storage/gcs"
	memoryStorage "github.com/JakeFAU/recipe-importer/internal/storage/memory"
	pgstore "github.com/JakeFAU/recipe-importer/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	apiServer  *api.Server
	orch       *orchestrator.Orchestrator
	dispatch   *dispatcher.Dispatcher
	queue      *queueMemory.Queue
	classifier *domains.Classifier
	fetcher    *fetcher.Fetcher
	pgPool     *pgxpool.Pool
	closers    []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger   *zap.Logger
	notifier recipe.Notifier
}

// WithLogger uses logger instead of building one from the logging config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithNotifier overrides the configured job event notifier.
func WithNotifier(n recipe.Notifier) Option {
	return func(o *buildOptions) { o.notifier = n }
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Int("workers", cfg.Importer.Workers),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	if err := app.build(ctx, o); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, o buildOptions) error {
	jobs, recipes, err := a.setupStores(ctx)
	if err != nil {
		return err
	}
	blobs, err := a.setupBlobs(ctx)
	if err != nil {
		return err
	}
	notifier := o.notifier
	if notifier == nil {
		if notifier, err = a.setupNotifier(ctx); err != nil {
			return err
		}
	}
	aiExtractor, err := a.setupAI(ctx)
	if err != nil {
		return err
	}
	if a.fetcher, err = a.setupFetcher(); err != nil {
		return err
	}
	a.classifier, err = domains.NewClassifier(domains.Config{
		RegistryFile:   a.cfg.Domains.RegistryFile,
		UnknownWeight:  a.cfg.Domains.UnknownWeight,
		UnknownCeiling: a.cfg.Domains.UnknownCeiling,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("domain registry init failed: %w", err)
	}
	a.logger.Info("domain registry loaded", zap.Int("domains", a.classifier.Size()))

	ext := a.cfg.Extraction
	pipeline := extract.NewPipeline(a.logger,
		extract.Stage{Extractor: extract.NewStructured(), Min: ext.StructuredMin},
		extract.Stage{Extractor: extract.NewAdapter(), Min: ext.AdapterMin},
		extract.Stage{Extractor: extract.NewAIFallback(extract.AIConfig{
			Ceiling:        ext.AICeiling,
			Timeout:        a.cfg.AI.Timeout,
			MaxChars:       ext.AIMaxChars,
			MinTextQuality: ext.MinTextQuality,
		}, aiExtractor, a.logger), Min: ext.AIMin},
	)
	scorer, err := confidence.New(confidence.Weights{
		Extraction: a.cfg.Confidence.ExtractionWeight,
		Detector:   a.cfg.Confidence.DetectorWeight,
		Domain:     a.cfg.Confidence.DomainWeight,
	}, ext.AICeiling)
	if err != nil {
		return fmt.Errorf("confidence init failed: %w", err)
	}
	calc, err := a.setupNutrition()
	if err != nil {
		return err
	}

	a.queue = queueMemory.NewQueue(a.cfg.Importer.QueueDepth)
	a.orch, err = orchestrator.New(orchestrator.Config{
		Retry: orchestrator.RetryPolicy{
			MaxAttempts: a.cfg.Importer.MaxAttempts,
			BaseDelay:   a.cfg.Importer.BackoffInitial,
			MaxDelay:    a.cfg.Importer.BackoffMax,
		},
		JobTimeout:           a.cfg.Importer.JobTimeout,
		AutoSaveMin:          ext.AutoSaveMin,
		DedupScope:           normalize.Scope(a.cfg.Dedup.Scope),
		NutritionConcurrency: a.cfg.Nutrition.Concurrency,
	}, orchestrator.Deps{
		Jobs:       jobs,
		Recipes:    recipes,
		Queue:      a.queue,
		Detector:   linkdetect.New(),
		Classifier: a.classifier,
		Fetcher:    a.fetcher,
		Extractor:  pipeline,
		Scorer:     scorer,
		Nutrition:  calc,
		Notifier:   notifier,
		Blobs:      blobs,
		IDs:        uuid.New(),
		Clock:      system.New(),
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("orchestrator init failed: %w", err)
	}
	a.dispatch = dispatcher.New(a.queue, a.orch, a.cfg.Importer.Workers, a.logger)

	a.apiServer = api.NewServer(*a.cfg, api.Deps{
		Importer: a.orch,
		Health:   a.fetcher,
		Registry: a.classifier,
		Ready:    a.ready,
		Logger:   a.logger,
	})
	return nil
}

func (a *App) setupStores(ctx context.Context) (recipe.JobStore, recipe.RecipeStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no database DSN configured, keeping jobs and recipes in memory")
		return memoryStorage.NewJobStore(), memoryStorage.NewRecipeStore(), nil
	}
	pool, err := pgstore.Connect(ctx, pgstore.Config{DSN: a.cfg.DB.DSN, MaxConns: a.cfg.DB.MaxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres init failed: %w", err)
	}
	a.pgPool = pool
	a.addCloser("postgres", func() error { pool.Close(); return nil })
	if a.cfg.DB.Migrate {
		if err := pgstore.Migrate(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("postgres migrate failed: %w", err)
		}
		a.logger.Info("postgres schema migrated")
	}
	jobs, err := pgstore.NewJobStore(pool)
	if err != nil {
		return nil, nil, fmt.Errorf("job store init failed: %w", err)
	}
	recipes, err := pgstore.NewRecipeStore(pool)
	if err != nil {
		return nil, nil, fmt.Errorf("recipe store init failed: %w", err)
	}
	a.logger.Info("using postgres stores")
	return jobs, recipes, nil
}

func (a *App) setupBlobs(ctx context.Context) (recipe.BlobStore, error) {
	if a.cfg.Storage.Backend != config.BackendGCS {
		a.logger.Info("using in-memory snapshot storage")
		return memoryStorage.NewBlobStore(), nil
	}
	store, closeFn, err := gcsstorage.Open(ctx, gcsstorage.Config{
		Bucket: a.cfg.Storage.Bucket,
		Prefix: a.cfg.Storage.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("gcs blob store init failed: %w", err)
	}
	a.addCloser("gcs", closeFn)
	a.logger.Info("using GCS snapshot storage", zap.String("bucket", a.cfg.Storage.Bucket))
	return store, nil
}

func (a *App) setupNotifier(ctx context.Context) (recipe.Notifier, error) {
	if a.cfg.PubSub.Topic == "" {
		a.logger.Warn("no Pub/Sub topic configured, logging job events")
		return publisher.NewLog(a.logger), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	pub := client.Publisher(a.cfg.PubSub.Topic)
	a.addCloser("pubsub", func() error {
		pub.Stop()
		return client.Close()
	})
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic),
	)
	n, err := gcppublisher.New(pub)
	if err != nil {
		return nil, fmt.Errorf("pubsub notifier init failed: %w", err)
	}
	return n, nil
}

// setupAI returns nil when no provider is configured; the AI tier then
// reports ExtractionFailed instead of calling out.
func (a *App) setupAI(ctx context.Context) (recipe.AIExtractor, error) {
	var gen ai.Generator
	switch a.cfg.AI.Provider {
	case config.ProviderGemini:
		c, err := gemini.New(ctx, gemini.Config{APIKey: a.cfg.AI.APIKey, Model: a.cfg.AI.Model})
		if err != nil {
			return nil, fmt.Errorf("gemini init failed: %w", err)
		}
		gen = c
	case config.ProviderClaude:
		c, err := claude.New(claude.Config{APIKey: a.cfg.AI.APIKey, Model: a.cfg.AI.Model})
		if err != nil {
			return nil, fmt.Errorf("claude init failed: %w", err)
		}
		gen = c
	default:
		a.logger.Info("AI extraction disabled")
		return nil, nil
	}
	a.logger.Info("AI extraction enabled", zap.String("provider", gen.Name()))
	return ai.NewExtractor(gen, a.logger), nil
}

func (a *App) setupFetcher() (*fetcher.Fetcher, error) {
	fc := a.cfg.Fetch
	cache, err := fetcher.NewCache(fc.CacheMaxEntries, fc.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("page cache init failed: %w", err)
	}
	a.addCloser("page cache", func() error { cache.Close(); return nil })

	robots, err := fetcher.NewRobots(fetcher.RobotsConfig{
		Respect:    fc.RespectRobots,
		UserAgent:  fc.UserAgent,
		TTL:        fc.RobotsTTL,
		MaxEntries: fc.CacheMaxEntries,
		Timeout:    fc.Timeout,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("robots init failed: %w", err)
	}
	if r, ok := robots.(*fetcher.Robots); ok {
		a.addCloser("robots cache", func() error { r.Close(); return nil })
	}

	var renderer recipe.Renderer = headless.Disabled{}
	if a.cfg.Headless.Enabled {
		browser := headless.NewBrowser(headless.Config{UserAgent: fc.UserAgent})
		pool, err := headless.NewPool(a.cfg.Headless.PoolSize, browser.NewSession, a.logger)
		if err != nil {
			browser.Close()
			return nil, fmt.Errorf("render pool init failed: %w", err)
		}
		a.addCloser("render pool", func() error {
			pool.Close()
			browser.Close()
			return nil
		})
		renderer = pool
		a.logger.Info("headless rendering enabled", zap.Int("pool_size", a.cfg.Headless.PoolSize))
	}

	var shells *fetcher.ShellDetector
	if a.cfg.Headless.Enabled && a.cfg.Headless.PromoteSPA {
		shells = fetcher.NewShellDetector(0)
	}

	f, err := fetcher.New(fetcher.Config{
		Timeout:       fc.Timeout,
		RenderTimeout: a.cfg.Headless.RenderTimeout,
		PromoteShells: shells != nil,
	}, fetcher.Deps{
		Getter: collyfetcher.New(collyfetcher.Config{
			UserAgent:    fc.UserAgent,
			Timeout:      fc.Timeout,
			MaxBodyBytes: fc.MaxBodyBytes,
		}),
		Renderer: renderer,
		Breakers: breaker.NewRegistry(breaker.Config{
			Threshold:     a.cfg.Breaker.Threshold,
			Window:        a.cfg.Breaker.Window,
			Cooldown:      a.cfg.Breaker.Cooldown,
			BackoffFactor: a.cfg.Breaker.BackoffFactor,
			MaxCooldown:   a.cfg.Breaker.MaxCooldown,
		}),
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.RateLimit.RPS,
			DefaultBurst: a.cfg.RateLimit.Burst,
			MaxWait:      a.cfg.RateLimit.MaxWait,
		}),
		Robots:   robots,
		Cache:    cache,
		Detector: shells,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}
	a.logger.Info("fetcher initialized",
		zap.String("user_agent", fc.UserAgent),
		zap.Bool("respect_robots", fc.RespectRobots),
		zap.Float64("rps", a.cfg.RateLimit.RPS),
	)
	return f, nil
}

func (a *App) setupNutrition() (recipe.NutritionCalculator, error) {
	if a.cfg.Nutrition.Endpoint == "" {
		a.logger.Info("nutrition engine not configured")
		return nutrition.Disabled{}, nil
	}
	c, err := nutrition.New(nutrition.Config{
		Endpoint: a.cfg.Nutrition.Endpoint,
		Timeout:  a.cfg.Nutrition.Timeout,
		APIKey:   a.cfg.Nutrition.APIKey,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("nutrition client init failed: %w", err)
	}
	return c, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.pgPool == nil {
		return nil
	}
	if err := a.pgPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Orchestrator exposes the import coordinator for one-shot commands.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Import runs one URL or social-media import synchronously on the calling
// goroutine and returns the finished job.
func (a *App) Import(ctx context.Context, userID, source, bioURL string, text bool) (recipe.ImportJob, error) {
	var (
		job recipe.ImportJob
		err error
	)
	if text {
		job, err = a.orch.SubmitText(ctx, userID, source, bioURL)
	} else {
		job, err = a.orch.SubmitURL(ctx, userID, source)
	}
	if err != nil {
		return job, fmt.Errorf("submit import: %w", err)
	}
	if err := a.orch.Process(ctx, job.ID); err != nil {
		return job, fmt.Errorf("process import: %w", err)
	}
	done, err := a.orch.Status(ctx, job.ID)
	if err != nil {
		return job, fmt.Errorf("read job: %w", err)
	}
	return done, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Size()))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not stop before the shutdown deadline")
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application. Resources are released in
// reverse order of construction.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	var errs []error
	if a.orch != nil {
		if err := a.orch.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
