package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/uireg/internal/analyzer"
	"github.com/vango-dev/uireg/internal/api"
	"github.com/vango-dev/uireg/internal/config"
	"github.com/vango-dev/uireg/internal/deps"
	"github.com/vango-dev/uireg/internal/logging"
	"github.com/vango-dev/uireg/internal/metrics"
	"github.com/vango-dev/uireg/internal/registry"
	"github.com/vango-dev/uireg/internal/search"
	"github.com/vango-dev/uireg/internal/store"
	"github.com/vango-dev/uireg/internal/submission"
	"github.com/vango-dev/uireg/internal/tracing"
	"github.com/vango-dev/uireg/pkg/middleware"
	"github.com/vango-dev/uireg/pkg/upload"
)

// Temp uploads that no submission claimed are removed after tempMaxAge.
const (
	tempMaxAge       = 24 * time.Hour
	tempSweepPeriod  = time.Hour
	sessionSweepTick = 30 * time.Second
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		port      int
		host      string
		publicURL string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the registry server",
		Long: `Run the registry HTTP server.

Pending database migrations are applied on start. The server shuts down
gracefully on SIGINT or SIGTERM.

Examples:
  uireg serve
  uireg serve --port=9000 --public-url=https://ui.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if publicURL != "" {
				cfg.Server.PublicURL = publicURL
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from uireg.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from uireg.json)")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "Externally visible base URL")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	tp, err := tracing.New(cfg.Tracing, cfg.TracingFile())
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	printBanner()
	fmt.Println("  serve")
	fmt.Println()
	success("Listening on http://%s", cfg.Address())
	info("Public URL: %s", cfg.BaseURL())
	info("Database:   %s", cfg.DatabasePath())
	info("Storage:    %s", cfg.Storage.Driver)
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.sweepTempUploads(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\n  Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		return a.submissions.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// app is the wired registry server.
type app struct {
	handler     http.Handler
	db          *store.Store
	temp        upload.TempStore
	submissions *submission.Manager
	logger      *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := store.Open(ctx, cfg.DatabasePath(),
		store.WithSearchLimit(cfg.Search.Limit),
		store.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	blobs, files, err := openStorage(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	var (
		domain  *metrics.Metrics
		httpMet *middleware.Metrics
	)
	if cfg.Metrics.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		domain = metrics.New(reg, cfg.Metrics.Namespace)
		httpMet = middleware.NewMetrics(
			middleware.WithRegistry(reg),
			middleware.WithNamespace(cfg.Metrics.Namespace),
		)
	}

	resolver := deps.NewNPMResolver(
		deps.WithRegistry(cfg.Versions.NPMRegistry),
		deps.WithDeclared(cfg.Versions.Declared),
		deps.WithResolverLogger(logger),
	)
	var pinner submission.VersionPinner
	if cfg.Versions.NPM {
		pinner = resolver
	}

	subConfig := submission.DefaultConfig()
	subConfig.SlugDebounce = cfg.SlugDebounce()
	subConfig.PublicURL = cfg.BaseURL()
	subConfig.Baseline = deps.Manifest(cfg.Preview.Baseline)

	manager := submission.NewManager(submission.Services{
		Analyzer: analyzer.New(
			analyzer.WithVersions(resolver),
			analyzer.WithLogger(logger),
			analyzer.WithObserver(domain.ObserveAnalysis),
		),
		Slugs:    db,
		Blobs:    blobs,
		Records:  db,
		Versions: pinner,
		Images:   blobs,
	}, subConfig, &submission.ManagerConfig{
		IdleTimeout:     cfg.IdleTimeout(),
		MaxPerUser:      cfg.Submission.MaxPerUser,
		CleanupInterval: sessionSweepTick,
	}, logger, submission.WithSubmitObserver(domain.ObserveSubmit))
	manager.SetOnCreate(func(*submission.Submission) { domain.SessionOpened() })
	manager.SetOnClose(func(*submission.Submission) { domain.SessionClosed() })

	sections, err := search.LoadSections(cfg.SectionsPath())
	if err != nil {
		manager.Shutdown(ctx)
		db.Close()
		return nil, err
	}
	var searcher search.Searcher = db
	if cfg.Search.RemoteURL != "" {
		searcher = search.NewRemoteClient(cfg.Search.RemoteURL, cfg.Search.APIKey, logger)
	}
	palette := search.NewPalette(searcher, sections,
		search.WithCacheTTL(cfg.SearchCacheTTL()),
		search.WithLimit(cfg.Search.Limit),
		search.WithLogger(logger),
		search.WithLookupObserver(domain.ObserveSearchLookup),
	)

	handler := api.New(api.Deps{
		Users:       db,
		Slugs:       db,
		Submissions: manager,
		Palette:     palette,
		Registry: registry.New(db, cfg.BaseURL(),
			registry.WithBlobs(blobs),
			registry.WithLogger(logger)),
		Uploads: blobs,
		UploadCfg: &upload.Config{
			MaxFileSize:  cfg.Storage.MaxFileSize,
			AllowedTypes: upload.ImageTypes,
		},
		Files:             files,
		Gatherer:          reg,
		Metrics:           httpMet,
		Tracing:           cfg.Tracing.Enabled,
		ExternalResources: cfg.Preview.ExternalResources,
		Logger:            logger,
	})

	return &app{
		handler:     handler,
		db:          db,
		temp:        blobs,
		submissions: manager,
		logger:      logger,
	}, nil
}

// storage is what the server needs from an upload backend.
type storage interface {
	upload.Store
	KeyFromURL(u string) (string, bool)
}

// openStorage opens the configured upload backend. files serves stored
// blobs and is nil for backends that serve themselves.
func openStorage(cfg *config.Config) (storage, http.Handler, error) {
	switch cfg.Storage.Driver {
	case config.StorageS3:
		opts := upload.S3Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			Prefix:          cfg.Storage.Prefix,
			PathStyle:       cfg.Storage.PathStyle,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			MaxSize:         cfg.Storage.MaxFileSize,
		}
		if strings.HasPrefix(cfg.Storage.BaseURL, "http://") || strings.HasPrefix(cfg.Storage.BaseURL, "https://") {
			opts.PublicBaseURL = cfg.Storage.BaseURL
		}
		return upload.NewS3Store(upload.NewS3Client(opts), opts), nil, nil
	default:
		baseURL := cfg.Storage.BaseURL
		if strings.HasPrefix(baseURL, "/") {
			baseURL = strings.TrimRight(cfg.BaseURL(), "/") + baseURL
		}
		disk, err := upload.NewDiskStore(cfg.StorageDir(), baseURL, cfg.Storage.MaxFileSize)
		if err != nil {
			return nil, nil, err
		}
		return disk, disk.FileServer(), nil
	}
}

// sweepTempUploads removes unclaimed temp uploads until ctx ends.
func (a *app) sweepTempUploads(ctx context.Context) {
	ticker := time.NewTicker(tempSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.temp.Cleanup(tempMaxAge); err != nil {
				a.logger.Warn("temp upload cleanup failed", "error", err)
			}
		}
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.submissions.Shutdown(ctx)
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}
