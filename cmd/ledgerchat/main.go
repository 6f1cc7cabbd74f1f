package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LedgerChat/internal/api"
	"LedgerChat/internal/chatbot"
	"LedgerChat/internal/completion"
	"LedgerChat/internal/config"
	"LedgerChat/internal/ledger"
	"LedgerChat/internal/store"
	"LedgerChat/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func main() {
	var envFile string
	var debug bool
	var port int

	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.IntVar(&port, "port", 0, "Listen port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Debug = true
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logFile.Close()

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	hederaClient, err := ledger.NewHederaClient(cfg.Ledger, logger, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger client: %w", err)
	}
	defer hederaClient.Close()

	completer, err := completion.NewClient(cfg.Completion, nil, logger, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize completion client: %w", err)
	}

	messages, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer messages.Close()

	bot, err := chatbot.New(hederaClient, completer, messages, logger, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(cfg.Server, bot, logger, tracer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
