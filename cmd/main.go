package main

import (
	"log/slog"
	"os"

	"research_intake/app"
)

func main() {
	if err := app.Run(); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}
