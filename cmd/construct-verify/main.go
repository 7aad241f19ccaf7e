// Command construct-verify checks run files for the problems that corrupt
// analysis quietly, merges overlapping run files into one dataset, and
// imports runs into the archive store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/coglab/selfconstruct/internal/config"
	"github.com/coglab/selfconstruct/internal/storage"
	"github.com/coglab/selfconstruct/internal/storage/postgres"
	"github.com/coglab/selfconstruct/internal/storage/sqlite"
	"github.com/coglab/selfconstruct/pkg/types"
)

var (
	expectPerCell = flag.Int("expect-per-cell", 0, "Expected successful records per cell, 0 disables the balance check")
	expectArch    = flag.String("expect-architectures", "", "Comma-separated architectures every record must belong to")
	expectCond    = flag.String("expect-conditions", "", "Comma-separated condition labels every record must belong to")
	mergeOut      = flag.String("merge", "", "Merge the run files into one dataset written to this path")
	importFlag    = flag.Bool("import", false, "Import the run files into the configured archive store")
)

func main() {
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		log.Fatal("at least one run file is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := storage.VerifyOptions{ExpectedPerCell: *expectPerCell}
	if *expectArch != "" {
		opts.ExpectedArchitectures = splitList(*expectArch)
	}
	if *expectCond != "" {
		opts.ExpectedConditions = splitList(*expectCond)
	}

	runs := make([]*types.Run, 0, len(paths))
	clean := true
	for _, path := range paths {
		run, err := storage.LoadRunFile(path)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", path, err)
		}
		runs = append(runs, run)

		report := storage.VerifyRun(run, opts)
		printReport(path, report)
		if !report.OK() {
			clean = false
		}
	}

	if *mergeOut != "" {
		merged, err := storage.MergeRuns(runs)
		if err != nil {
			log.Fatalf("Failed to merge runs: %v", err)
		}
		if err := storage.SaveRunFile(*mergeOut, merged); err != nil {
			log.Fatalf("Failed to save merged dataset: %v", err)
		}
		log.Printf("Merged %d runs into %s (%d records, run %s)",
			len(runs), *mergeOut, len(merged.Records), merged.Meta.RunID)
	}

	if *importFlag {
		if err := importRuns(cfg, runs); err != nil {
			log.Fatalf("Failed to import runs: %v", err)
		}
	}

	if !clean {
		os.Exit(1)
	}
}

func printReport(path string, report storage.VerifyReport) {
	fmt.Printf("%s (run %s): %d records\n", path, report.RunID, report.Records)
	for _, cell := range report.Cells {
		fmt.Printf("  %-30s total=%d failed=%d empty=%d\n", cell.Cell, cell.Total, cell.Failed, cell.Empty)
	}
	if report.OK() {
		fmt.Println("  OK")
		return
	}
	for _, issue := range report.Issues {
		fmt.Printf("  ISSUE: %s\n", issue)
	}
}

func importRuns(cfg *config.Config, runs []*types.Run) error {
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("run %s: %w", run.Meta.RunID, err)
		}
		log.Printf("Imported run %s (%d records)", run.Meta.RunID, len(run.Records))
	}
	return nil
}

func openArchive(cfg *config.Config) (storage.RecordStore, error) {
	switch cfg.Storage.ArchiveEngine {
	case "sqlite":
		return sqlite.NewRecordStore(cfg.Storage.SQLitePath)
	case "postgres":
		return postgres.NewRecordStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("no archive engine configured (CONSTRUCT_ARCHIVE_ENGINE=%q)", cfg.Storage.ArchiveEngine)
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
