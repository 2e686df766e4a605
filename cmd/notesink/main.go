// Command notesink is a local stand-in for the notes service. It accepts
// POST /notes, lists what it received on GET /notes and keeps nothing on disk.
package main

import (
	"log"

	"github.com/alkime/memnote/internal/config"
	"github.com/alkime/memnote/internal/logger"
	"github.com/alkime/memnote/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.SetupLogger(cfg)

	logger.Info("Starting notes sink",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	s := server.New(cfg, logger)
	if err := server.Run(s); err != nil {
		logger.Error("Server stopped", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
}
