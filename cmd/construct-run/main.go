// Command construct-run executes a collection run: every configured condition
// against every configured architecture, writing the resulting run file and
// optionally archiving it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coglab/selfconstruct/internal/config"
	"github.com/coglab/selfconstruct/internal/experiment"
	"github.com/coglab/selfconstruct/internal/llm"
	"github.com/coglab/selfconstruct/internal/storage"
	"github.com/coglab/selfconstruct/internal/storage/postgres"
	"github.com/coglab/selfconstruct/internal/storage/sqlite"
	"github.com/coglab/selfconstruct/pkg/types"
)

var (
	architectures = flag.String("architectures", "", "Comma-separated architectures to run (overrides config)")
	conditionList = flag.String("conditions", "", "Comma-separated condition labels to run (overrides config)")
	queryCount    = flag.Int("queries", 0, "Number of queries per cell, 0 = full template (overrides config)")
	templatePath  = flag.String("template", "", "Query template YAML file (overrides config)")
	outPath       = flag.String("out", "", "Run file path (default: <data-dir>/run_<timestamp>.json)")
	dataDir       = flag.String("data-dir", "", "Directory for run files (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlags(cfg)

	template, err := loadTemplate(cfg)
	if err != nil {
		log.Fatalf("Failed to load query template: %v", err)
	}
	if cfg.Experiment.QueryCount > 0 {
		template = template.Truncate(cfg.Experiment.QueryCount)
	}

	conditions, err := resolveConditions(cfg.Experiment.Conditions)
	if err != nil {
		log.Fatalf("Failed to resolve conditions: %v", err)
	}

	generators, err := buildGenerators(cfg)
	if err != nil {
		log.Fatalf("Failed to build providers: %v", err)
	}

	runner := experiment.NewRunner(generators, experiment.CollectorOptions{
		Retry: llm.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			BackoffFactor:  cfg.Retry.BackoffFactor,
			Retryable:      llm.IsRetryable,
		},
		QueriesPerSecond: cfg.Experiment.QueriesPerSecond,
		MemoryWindow:     cfg.Experiment.MemoryWindow,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting run: %d architectures × %d conditions × %d queries",
		len(generators), len(conditions), template.Len())
	for _, cond := range conditions {
		log.Printf("  condition %s", cond)
	}

	run, runErr := runner.Run(ctx, conditions, template)
	if runErr != nil {
		log.Printf("Run interrupted: %v", runErr)
	}
	if run == nil || len(run.Records) == 0 {
		log.Fatal("No records collected, nothing to save")
	}

	path := *outPath
	if path == "" {
		path = storage.RunFilename(cfg.Storage.DataPath, run.Meta.StartedAt)
	}
	if err := storage.SaveRunFile(path, run); err != nil {
		log.Fatalf("Failed to save run file: %v", err)
	}
	log.Printf("Saved %d records to %s", len(run.Records), path)

	if cfg.Storage.ArchiveEngine != "none" {
		if err := archiveRun(ctx, cfg, run); err != nil {
			log.Fatalf("Failed to archive run: %v", err)
		}
		log.Printf("Archived run %s to %s", run.Meta.RunID, cfg.Storage.ArchiveEngine)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// applyFlags overrides config with command-line flags.
func applyFlags(cfg *config.Config) {
	if *architectures != "" {
		cfg.Experiment.Architectures = splitList(*architectures)
	}
	if *conditionList != "" {
		cfg.Experiment.Conditions = splitList(*conditionList)
	}
	if *queryCount > 0 {
		cfg.Experiment.QueryCount = *queryCount
	}
	if *templatePath != "" {
		cfg.Experiment.TemplatePath = *templatePath
	}
	if *dataDir != "" {
		cfg.Storage.DataPath = *dataDir
	}
}

func loadTemplate(cfg *config.Config) (experiment.QueryTemplate, error) {
	if cfg.Experiment.TemplatePath == "" {
		return experiment.DefaultTemplate(), nil
	}
	return experiment.LoadTemplate(cfg.Experiment.TemplatePath)
}

func resolveConditions(labels []string) ([]types.Condition, error) {
	conditions := make([]types.Condition, 0, len(labels))
	for _, label := range labels {
		cond, err := types.ConditionByLabel(label)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

func buildGenerators(cfg *config.Config) ([]llm.Generator, error) {
	generators := make([]llm.Generator, 0, len(cfg.Experiment.Architectures))
	for _, arch := range cfg.Experiment.Architectures {
		pc, err := providerConfig(cfg, arch)
		if err != nil {
			return nil, err
		}
		gen, err := llm.NewGenerator(pc)
		if err != nil {
			return nil, err
		}
		log.Printf("Provider %s ready (model %s)", gen.Name(), gen.Model())
		generators = append(generators, gen)
	}
	return generators, nil
}

func providerConfig(cfg *config.Config, arch string) (llm.ProviderConfig, error) {
	pc := llm.ProviderConfig{
		Provider:  arch,
		MaxTokens: cfg.Providers.MaxTokens,
		Timeout:   cfg.Providers.RequestTimeout,
	}
	switch arch {
	case "anthropic", "claude":
		pc.APIKey, pc.Model = cfg.Providers.AnthropicAPIKey, cfg.Providers.AnthropicModel
	case "openai", "gpt":
		pc.APIKey, pc.Model = cfg.Providers.OpenAIAPIKey, cfg.Providers.OpenAIModel
	case "gemini":
		pc.APIKey, pc.Model = cfg.Providers.GeminiAPIKey, cfg.Providers.GeminiModel
	default:
		return llm.ProviderConfig{}, fmt.Errorf("unknown architecture %q", arch)
	}
	return pc, nil
}

func archiveRun(ctx context.Context, cfg *config.Config, run *types.Run) error {
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, run)
}

func openArchive(cfg *config.Config) (storage.RecordStore, error) {
	switch cfg.Storage.ArchiveEngine {
	case "sqlite":
		return sqlite.NewRecordStore(cfg.Storage.SQLitePath)
	case "postgres":
		return postgres.NewRecordStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown archive engine %q", cfg.Storage.ArchiveEngine)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
