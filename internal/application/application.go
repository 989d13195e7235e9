package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/coin-dispenser/internal/api"
	"github.com/eugenenazirov/coin-dispenser/internal/config"
	"github.com/eugenenazirov/coin-dispenser/internal/detection"
	"github.com/eugenenazirov/coin-dispenser/internal/dispenser"
	"github.com/eugenenazirov/coin-dispenser/internal/metrics"
	"github.com/eugenenazirov/coin-dispenser/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	detector detection.Source
	logger   *zap.Logger
	server   *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if err := store.SetDenominations(cfg.InitialDenominations); err != nil {
		return nil, fmt.Errorf("failed to apply initial denominations: %w", err)
	}

	detector, err := NewDetector(ctx, cfg.Detection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detection: %w", err)
	}

	m := metrics.New()
	handler := api.NewHandler(dispenser.New(), store,
		api.WithDetector(detector),
		api.WithMetrics(m),
		api.WithLogger(logger),
		api.WithCurrencySymbol(cfg.CurrencySymbol),
		api.WithMaxUploadBytes(cfg.Detection.MaxUploadBytes),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithTrustedForwardedFor(cfg.TrustForwardedFor),
	)

	rootHandler, err := BuildRootHandler(apiRouter, m.Handler())
	if err != nil {
		_ = detector.Close()
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	return &App{
		detector: detector,
		logger:   logger,
		server:   NewServer(cfg, rootHandler),
	}, nil
}

// NewDetector creates the bill detection source selected by cfg.
func NewDetector(ctx context.Context, cfg config.DetectionConfig) (detection.Source, error) {
	switch cfg.Source {
	case config.SourceSimulated, "":
		return detection.NewSimulated(), nil
	case config.SourceRemote:
		return detection.NewRemote(cfg.RemoteURL, cfg.RemoteTimeout)
	case config.SourceGemini:
		return detection.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown detection source %q", cfg.Source)
	}
}

// BuildRootHandler constructs the root HTTP handler that serves the UI, the
// metrics endpoint and routes API requests.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) (http.Handler, error) {
	mux := http.NewServeMux()

	staticPath, err := resolveProjectPath(filepath.Join("web", "static"))
	if err != nil {
		return nil, err
	}
	staticDir := http.Dir(staticPath)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(staticDir)))
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	indexPath, err := resolveProjectPath(filepath.Join("web", "templates", "index.html"))
	if err != nil {
		return nil, err
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	}))

	return mux, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.String("detector", a.detector.Name()),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the detection source.
func (a *App) Close() error {
	if a.detector == nil {
		return nil
	}
	return a.detector.Close()
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
