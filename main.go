package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"overcount/app"
	"overcount/internal"
	"overcount/internal/archive"
	"overcount/internal/config"
	"overcount/internal/simulate"
)

// main runs the pipeline once with the configured scenario and writes
// the report. The CLI under cmd/cli exposes the stages individually.
func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.DefaultLogger

	// Resolve the generator scenario: defaults, then the optional
	// scenario file, then the seed override.
	sim := simulate.DefaultConfig()
	if appConfig.Sim.ConfigFile != "" {
		sim, err = simulate.LoadConfig(appConfig.Sim.ConfigFile)
		if err != nil {
			log.Fatalf("Failed to load scenario file: %v", err)
		}
		logger.Info("Loaded scenario from %s", appConfig.Sim.ConfigFile)
	}
	if appConfig.Sim.Seed != 0 {
		sim.Seed = appConfig.Sim.Seed
	}

	// Open the run archive
	var store *archive.Store
	if appConfig.Archive.Enabled {
		store, err = archive.NewStore(appConfig.Archive.Path)
		if err != nil {
			log.Fatalf("Failed to open run archive: %v", err)
		}
		defer store.Close()
	}

	svc := app.NewReportService(appConfig, store, logger)
	result, err := svc.Run(context.Background(), app.ReportRequest{Sim: sim})
	if err != nil {
		log.Fatalf("Report run failed: %v", err)
	}

	logger.Info("Report written to %s", result.ReportPath)
	for _, g := range result.Gof {
		logger.Info("%s: McFadden %.4f, Cox-Snell %.4f, Nagelkerke %.4f",
			g.Model, g.McFadden, g.CoxSnell, g.Nagelkerke)
	}
	if result.RunID != "" {
		logger.Info("Archived as %s", result.RunID)
	}
	logger.Info("Done in %dms", result.RuntimeMs)
}
