package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/scottopell/nightlies/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg = config.Load()
	setupLogger(cfg)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// setupLogger sends structured logs to stderr so report output on stdout
// stays pipeable.
func setupLogger(cfg *config.Config) {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
	})
	slog.SetDefault(slog.New(handler))
}
