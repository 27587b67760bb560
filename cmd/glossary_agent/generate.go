package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/glossary-agent/internal/batch"
	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/config"
	"github.com/jonathan/glossary-agent/internal/llm"
	"github.com/jonathan/glossary-agent/internal/observability"
	"github.com/jonathan/glossary-agent/internal/pipeline"
	"github.com/jonathan/glossary-agent/internal/prompts"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a content generation batch",
	Long: `Enumerates the requested terms and catalog columns, skips units that are
already final, and drives the rest through generation, evaluation, and
improvement in bounded concurrent waves.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runGenerate,
}

var (
	genConfigPath   string
	genTerms        []string
	genColumns      []string
	genTier         string
	genSection      string
	genMode         string
	genBatchSize    int
	genThreshold    int
	genMaxRetries   int
	genBatchDelayMS int
	genOrder        string
	genSkipExisting bool
	genForce        bool
	genCatalogPath  string
	genAPIKey       string
	genDatabaseURL  string
	genVerbose      bool
)

func init() {
	generateCmd.Flags().StringVar(&genConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	generateCmd.Flags().StringSliceVar(&genTerms, "term", nil, "Term ID to process (repeatable; default all terms)")
	generateCmd.Flags().StringSliceVar(&genColumns, "column", nil, "Column ID to process (repeatable; default all columns)")
	generateCmd.Flags().StringVar(&genTier, "tier", "", "Only columns in this tier (essential, important, supplementary, advanced)")
	generateCmd.Flags().StringVar(&genSection, "section", "", "Only columns in this section")

	generateCmd.Flags().StringVar(&genMode, "mode", "", "Pipeline mode: generate, evaluate, or full (default full)")
	generateCmd.Flags().IntVar(&genBatchSize, "batch-size", 0, "Concurrent units per wave (default 10)")
	generateCmd.Flags().IntVar(&genThreshold, "quality-threshold", 0, "Minimum passing score, 1-10 (default 7)")
	generateCmd.Flags().IntVar(&genMaxRetries, "max-retries", 0, "Attempts per model call (default 3)")
	generateCmd.Flags().IntVar(&genBatchDelayMS, "batch-delay-ms", 0, "Pause between waves in milliseconds")
	generateCmd.Flags().StringVar(&genOrder, "order", "", "Enumeration order: topdown or bottomup (default topdown)")
	generateCmd.Flags().BoolVar(&genSkipExisting, "skip-existing", true, "Skip units that are already final")
	generateCmd.Flags().BoolVar(&genForce, "force", false, "Regenerate final units (implies --skip-existing=false)")

	generateCmd.Flags().StringVar(&genCatalogPath, "catalog", "", "Path to a custom catalog YAML file")
	generateCmd.Flags().StringVar(&genAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	generateCmd.Flags().StringVar(&genDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "Print detailed progress information")

	rootCmd.AddCommand(generateCmd)
}

// loadGenerateConfig merges the config file with explicitly set CLI flags.
func loadGenerateConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if genConfigPath != "" {
		loaded, err := config.LoadConfig(genConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
		if genVerbose {
			fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", genConfigPath)
		}
	}

	if cmd.Flags().Changed("mode") {
		cfg.Mode = genMode
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = genBatchSize
	}
	if cmd.Flags().Changed("quality-threshold") {
		cfg.QualityThreshold = genThreshold
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = genMaxRetries
	}
	if cmd.Flags().Changed("batch-delay-ms") {
		cfg.BatchDelayMS = genBatchDelayMS
	}
	if cmd.Flags().Changed("order") {
		cfg.Order = genOrder
	}
	if cmd.Flags().Changed("catalog") {
		cfg.CatalogPath = genCatalogPath
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = genAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = genDatabaseURL
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = genVerbose
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildBatchOptions converts the merged config plus behavior flags into
// validated scheduler options.
func buildBatchOptions(cfg config.Config, skipExisting, force bool) (batch.Options, error) {
	opts := batch.DefaultOptions()

	if cfg.Mode != "" {
		mode, err := pipeline.ParseMode(cfg.Mode)
		if err != nil {
			return batch.Options{}, err
		}
		opts.Mode = mode
	}
	if cfg.BatchSize > 0 {
		opts.BatchSize = cfg.BatchSize
	}
	if cfg.QualityThreshold > 0 {
		opts.QualityThreshold = cfg.QualityThreshold
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.BatchDelayMS > 0 {
		opts.InterBatchDelay = time.Duration(cfg.BatchDelayMS) * time.Millisecond
	}
	if cfg.Order != "" {
		opts.Order = batch.Order(cfg.Order)
	}

	opts.Force = force
	opts.SkipExisting = skipExisting && !force

	if err := opts.Validate(); err != nil {
		return batch.Options{}, err
	}
	return opts, nil
}

// buildScope converts the scope flags into a scheduler scope.
func buildScope(terms, columns []string, tier, section string) (batch.Scope, error) {
	scope := batch.Scope{
		TermIDs:   terms,
		ColumnIDs: columns,
		Section:   section,
	}
	if tier != "" {
		parsed, err := catalog.ParseTier(tier)
		if err != nil {
			return batch.Scope{}, err
		}
		scope.Tier = parsed
	}
	return scope, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadGenerateConfig(cmd)
	if err != nil {
		return err
	}

	scope, err := buildScope(genTerms, genColumns, genTier, genSection)
	if err != nil {
		return err
	}
	opts, err := buildBatchOptions(cfg, genSkipExisting, genForce)
	if err != nil {
		return err
	}

	registry, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	promptStore, err := prompts.NewStore()
	if err != nil {
		return err
	}

	apiKey, err := resolveAPIKey(cfg.APIKey)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := llm.NewClient(ctx, llm.DefaultGeminiConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	defer client.Close()

	printer := observability.NewPrinter(os.Stdout)
	if cfg.Verbose {
		printer.PrintCatalog(registry)
	}

	scheduler := batch.NewScheduler(db, db, registry, promptStore, client)
	manager := batch.NewManager(scheduler)

	run, err := manager.StartBatch(ctx, scope, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Batch %s started: %d units (%s, batch size %d)\n",
		run.ID, run.TotalUnits, opts.Mode, opts.BatchSize)

	if events, cancelSub, err := manager.Subscribe(run.ID); err == nil {
		defer cancelSub()
		go func() {
			for event := range events {
				if cfg.Verbose {
					printer.PrintEvent(event)
				}
			}
		}()
	}

	// Ctrl-C drains in-flight units and reports the partial aggregate.
	go func() {
		<-ctx.Done()
		_, _ = manager.CancelBatch(context.Background(), run.ID)
	}()

	final, err := manager.Wait(context.Background(), run.ID)
	if err != nil {
		return err
	}

	printer.PrintBatchSummary(final)
	if final.Status == batch.StatusCancelled {
		fmt.Fprintln(os.Stdout, "Batch cancelled; rerun to resume remaining units.")
	}
	return nil
}
