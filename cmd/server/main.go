package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Parthmh361/pure-harvest/internal/app"
	"github.com/Parthmh361/pure-harvest/pkg/logger"
)

const defaultShutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pureharvest-notifications", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	configPath := fs.String("config", "", "Path to configuration directory or file")
	envFile := fs.String("env-file", ".env", "Optional dotenv file loaded before configuration")
	checkOnly := fs.Bool("check", false, "Validate configuration and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return err
	}
	cfg, err := loadApplicationConfig(*configPath)
	if err != nil {
		return err
	}
	if *checkOnly {
		fmt.Fprintf(fs.Output(), "configuration ok (database=%s, events=%s)\n", cfg.Database.Driver, cfg.Events.Kafka.Mode)
		return nil
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("bootstrap")
	for _, key := range generated {
		log.Warn("generated runtime secret; tokens from other services will not validate", zap.String("key", key))
	}

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}

	err = serve(ctx, cfg, stack, log)
	stack.Shutdown(context.Background(), log)
	if err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// serve runs the HTTP server and the event consumer until ctx is cancelled
// or one of them fails, then drains the server.
func serve(ctx context.Context, cfg *app.Config, stack *runtimeStack, log *zap.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if stack.Consumer != nil {
		group.Go(func() error { return stack.Consumer.Run(groupCtx) })
	}
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cmp.Or(cfg.Server.ShutdownTimeout, defaultShutdownTimeout))
		defer cancel()

		// hijacked websocket connections are not tracked by server.Shutdown
		stack.Hub.Shutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// loadEnvFile populates the environment from a dotenv file. A missing file is
// not an error; existing variables are never overridden.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
