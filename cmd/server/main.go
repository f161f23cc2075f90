package main

import (
	"log/slog"
	"os"

	"hp-booking/internal/app"
	"hp-booking/internal/logger"
)

func main() {
	// Replaced once the configured level and format are known.
	slog.SetDefault(logger.New(os.Stdout, slog.LevelInfo, "pretty"))

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
