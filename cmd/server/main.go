package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/coin-dispenser/internal/application"
	"github.com/eugenenazirov/coin-dispenser/internal/config"
	"github.com/eugenenazirov/coin-dispenser/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("coin-dispenser", "Coin Dispenser - breaks a detected bill amount into coin change")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	denominationsStr := kingpinApp.Flag("denominations", "Comma-separated default coin selection").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	detectionSource := kingpinApp.Flag("detection-source", "Bill detection source").Enum(config.SourceSimulated, config.SourceRemote, config.SourceGemini)
	detectionURL := kingpinApp.Flag("detection-url", "Remote detector endpoint used by the remote source").String()
	geminiKey := kingpinApp.Flag("gemini-key", "Gemini API key used by the gemini source").String()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *denominationsStr != "" {
		overrides.DenominationsStr = denominationsStr
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	if *detectionSource != "" {
		overrides.DetectionSource = detectionSource
	}

	if *detectionURL != "" {
		overrides.DetectionURL = detectionURL
	}

	if *geminiKey != "" {
		overrides.GeminiAPIKey = geminiKey
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger, app)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger, closers ...io.Closer) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}

	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("failed to release resource", zap.Error(err))
		}
	}
}
