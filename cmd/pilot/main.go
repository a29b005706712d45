package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"mcp-pilot/internal/cli"
	"mcp-pilot/internal/logger"
)

func main() {
	// .env is optional; the environment may already be set.
	_ = godotenv.Load()

	logFile := os.Getenv("PILOT_LOG_FILE")
	if logFile == "" {
		logFile = "pilot.log"
	}
	if err := logger.Init(logFile); err != nil {
		log.Fatalf("Fatal Error: Could not initialize logger: %v", err)
	}

	cli.Execute()
}
