package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trynightnotes/nightnotes/internal/analysis"
	"github.com/trynightnotes/nightnotes/internal/api"
	"github.com/trynightnotes/nightnotes/internal/config"
	"github.com/trynightnotes/nightnotes/internal/llm"
	"github.com/trynightnotes/nightnotes/internal/mailer"
	"github.com/trynightnotes/nightnotes/internal/reflection"
	"github.com/trynightnotes/nightnotes/internal/store"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "nightnotes",
	Short: "Night Notes - Mental Shutdown Ritual Service",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 3. Initialize logger
	initLogger(cfg)
	slog.Info("configuration loaded")

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize LLM-backed services. Reflection and analysis may run on
	// different models.
	reflector := reflection.NewReflector(llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.ReflectionModel))
	analyzer := analysis.NewAnalyzer(db, llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.AnalysisModel))
	slog.Info("llm services initialized",
		"reflection_model", cfg.LLM.ReflectionModel,
		"analysis_model", cfg.LLM.AnalysisModel,
	)

	// 6. Initialize mail delivery, if enabled
	var digest api.DigestRunner
	if cfg.Mail.Enabled {
		digest = mailer.NewDigest(db, mailer.NewResendSender(cfg.Mail.APIKey, cfg.Mail.From))
		slog.Info("mailer initialized", "from", cfg.Mail.From)
	} else {
		slog.Info("mail delivery disabled")
	}

	// 7. Initialize HTTP router
	handler := api.NewHandler(db, reflector, analyzer, digest, Version)
	router := api.NewRouter(handler, cfg.Auth.APIKey, cfg.Auth.CronSecret)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called
		// gracefully. Any other error is a server failure.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 10. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 11. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 11a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 11b. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// initLogger installs the process-wide slog handler from config.
func initLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}

	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
