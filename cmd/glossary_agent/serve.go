package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/glossary-agent/internal/batch"
	"github.com/jonathan/glossary-agent/internal/llm"
	"github.com/jonathan/glossary-agent/internal/prompts"
	"github.com/jonathan/glossary-agent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes endpoints for starting, watching, and cancelling generation batches.`,
	RunE:  runServe,
}

var (
	servePort        int
	serveCatalogPath string
	serveDatabaseURL string
	serveAPIKey      string
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveCatalogPath, "catalog", "", "Path to a custom catalog YAML file")
	serveCmd.Flags().StringVar(&serveDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	registry, err := loadCatalog(serveCatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	promptStore, err := prompts.NewStore()
	if err != nil {
		return err
	}

	apiKey, err := resolveAPIKey(serveAPIKey)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, serveDatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := llm.NewClient(ctx, llm.DefaultGeminiConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	defer client.Close()

	scheduler := batch.NewScheduler(db, db, registry, promptStore, client)
	manager := batch.NewManager(scheduler)

	srv := server.New(server.Config{Port: servePort}, manager, db, db, registry, db)
	return srv.Start()
}
