package philjs

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/philjs-dev/philjs/internal/config"
	"github.com/philjs-dev/philjs/internal/devfeed"
	"github.com/philjs-dev/philjs/internal/errors"
	"github.com/philjs-dev/philjs/pkg/isr"
	"github.com/philjs-dev/philjs/pkg/isr/badgerstore"
	"github.com/philjs-dev/philjs/pkg/isr/fsstore"
	"github.com/philjs-dev/philjs/pkg/middleware"
)

// Config is the main application configuration.
// This is the user-friendly entry point for configuring a PhilJS app.
type Config struct {
	// Render regenerates the HTML for a path. Required.
	Render RenderFunc

	// Settings is the loaded philjs.json. If nil, defaults are used.
	Settings *config.Config

	// Adapter overrides the cache storage adapter chosen by Settings.
	// Required when Settings selects the s3 adapter: construct the store
	// with s3store.New and your own S3 client.
	Adapter isr.Adapter

	// Logger is the structured logger for the application.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Sink receives cache lifecycle events in addition to the built-in
	// consumers (metrics, dev feed). Optional.
	Sink EventSink
}

// App wires the cache, tag index, revalidator, scheduler and HTTP routes
// into a single http.Handler.
//
//	app, err := philjs.New(philjs.Config{Render: renderPage})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(app.Addr(), app)
type App struct {
	settings *config.Config
	logger   *slog.Logger

	cache     *isr.CacheManager
	tags      *isr.TagManager
	rev       *isr.Revalidator
	scheduler *isr.Scheduler
	feed      *devfeed.Feed
	router    chi.Router

	started time.Time
	stopFns []func()
}

// New creates a new PhilJS application with the given configuration.
func New(cfg Config) (*App, error) {
	if cfg.Render == nil {
		return nil, errors.New("E401")
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.New()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adapter := cfg.Adapter
	if adapter == nil {
		var err error
		adapter, err = buildAdapter(settings, logger)
		if err != nil {
			return nil, err
		}
	}

	app := &App{
		settings: settings,
		logger:   logger.With("component", "app"),
		started:  time.Now(),
	}

	// Event plumbing: metrics, dev feed and the user sink all observe the
	// same stream.
	sinks := []isr.EventSink{}
	if settings.Observability.Metrics {
		sinks = append(sinks, middleware.EventSinkMetrics())
	}
	if settings.Dev.Feed {
		app.feed = devfeed.New()
		sinks = append(sinks, app.feed.Sink())
	}
	if cfg.Sink != nil {
		sinks = append(sinks, cfg.Sink)
	}
	sink := isr.CombineSinks(sinks...)

	app.cache = isr.NewCacheManager(adapter, isr.WithCacheLogger(logger))
	app.tags = isr.NewTagManager(app.cache,
		isr.WithTagLogger(logger),
		isr.WithTagEventSink(sink))
	app.rev = isr.NewRevalidator(isr.RevalidatorConfig{
		MaxConcurrent:     settings.ISR.MaxConcurrent,
		MaxRetries:        settings.ISR.MaxRetries,
		InitialDelay:      settings.InitialDelay(),
		MaxDelay:          settings.MaxDelay(),
		BackoffMultiplier: settings.ISR.BackoffMultiplier,
		DefaultInterval:   settings.Interval(),
	}, app.cache, app.tags, cfg.Render,
		isr.WithRevalidatorLogger(logger),
		isr.WithRevalidatorEventSink(sink))

	if interval := settings.SchedulerInterval(); interval > 0 {
		app.scheduler = isr.NewScheduler(interval, app.cache, app.rev,
			isr.WithSchedulerLogger(logger))
	}

	app.router = buildRouter(app, sink, settings)
	return app, nil
}

// buildAdapter constructs the storage adapter selected in philjs.json.
func buildAdapter(settings *config.Config, logger *slog.Logger) (isr.Adapter, error) {
	switch settings.Cache.Adapter {
	case config.AdapterMemory:
		return isr.NewMemoryAdapter(settings.Cache.MaxEntries), nil
	case config.AdapterFS:
		return fsstore.New(settings.Cache.Dir)
	case config.AdapterBadger:
		bcfg := badgerstore.DefaultConfig()
		bcfg.Path = settings.Cache.BadgerPath
		bcfg.Logger = logger
		return badgerstore.Open(bcfg)
	case config.AdapterS3:
		return nil, errors.New("E302").
			WithDetail("the s3 adapter needs an S3 client").
			WithSuggestion("Construct the store with s3store.New and pass it as Config.Adapter")
	default:
		return nil, errors.New("E302").WithDetail("unknown cache.adapter " + settings.Cache.Adapter)
	}
}

// buildRouter assembles the chi router: observability middleware, the
// admin surface under /_philjs, and the ISR page handler for everything
// else.
func buildRouter(app *App, sink isr.EventSink, settings *config.Config) chi.Router {
	r := chi.NewRouter()

	if settings.Observability.Tracing {
		r.Use(middleware.OpenTelemetry())
	}
	if settings.Observability.Metrics {
		r.Use(middleware.Prometheus())
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/_philjs", func(r chi.Router) {
		r.Post("/revalidate", app.handleRevalidate)
		r.Post("/invalidate", app.handleInvalidate)
		r.Get("/status", app.handleStatus)
		if app.feed != nil {
			r.Get("/events", app.feed.HandleWebSocket)
		}
	})

	pages := middleware.NewISR(app.cache, app.rev,
		middleware.WithSWRWindow(settings.SWRWindow()),
		middleware.WithISRLogger(app.logger),
		middleware.WithISREventSink(sink))
	r.Handle("/*", pages.Wrap(http.NotFoundHandler()))

	return r
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Addr returns the host:port from the configuration.
func (a *App) Addr() string {
	return a.settings.Address()
}

// Cache returns the cache manager.
func (a *App) Cache() *isr.CacheManager {
	return a.cache
}

// Tags returns the tag manager.
func (a *App) Tags() *isr.TagManager {
	return a.tags
}

// Revalidator returns the revalidation manager.
func (a *App) Revalidator() *isr.Revalidator {
	return a.rev
}

// Start launches the background scheduler and, when metrics are enabled,
// the queue depth sampler. It returns immediately; ctx cancellation or
// Shutdown stops the background work.
func (a *App) Start(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		a.stopFns = append(a.stopFns, a.scheduler.Stop)
	}

	if a.settings.Observability.Metrics {
		sampleCtx, cancel := context.WithCancel(ctx)
		a.stopFns = append(a.stopFns, cancel)
		go func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-sampleCtx.Done():
					return
				case <-ticker.C:
					middleware.RecordQueueDepth(a.rev.QueueLen())
				}
			}
		}()
	}

	a.logger.Info("started",
		"addr", a.Addr(),
		"adapter", a.settings.Cache.Adapter,
		"scheduler", a.scheduler != nil)
}

// Shutdown stops background workers and disconnects dev clients. It does
// not close the storage adapter; the caller owns adapters it passed in.
func (a *App) Shutdown() {
	for _, stop := range a.stopFns {
		stop()
	}
	a.stopFns = nil
	a.rev.Stop()
	if a.feed != nil {
		a.feed.Close()
	}
	a.logger.Info("stopped")
}
