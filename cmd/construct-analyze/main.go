// Command construct-analyze computes metrics, qualitative codes, aggregates,
// and statistical comparisons from a run file and writes a text report. Its
// sole input is the run file, so analysis is replayable without touching any
// provider.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/coglab/selfconstruct/internal/analysis"
	"github.com/coglab/selfconstruct/internal/config"
	"github.com/coglab/selfconstruct/internal/storage"
)

var (
	runPath     = flag.String("run", "", "Run file to analyze (required)")
	lexiconPath = flag.String("lexicon", "", "Lexicon YAML file (overrides config; default: built-in seed lexicon)")
	outPath     = flag.String("out", "", "Report output path (default: stdout)")
	baseline    = flag.String("baseline", "", "Reference condition label (overrides config)")
	comparison  = flag.String("comparison", "", "Condition compared against the baseline (overrides config)")
)

func main() {
	flag.Parse()

	if *runPath == "" {
		flag.Usage()
		log.Fatal("-run is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *lexiconPath != "" {
		cfg.Analysis.LexiconPath = *lexiconPath
	}
	if *baseline != "" {
		cfg.Analysis.BaselineLabel = *baseline
	}
	if *comparison != "" {
		cfg.Analysis.ComparisonLabel = *comparison
	}

	run, err := storage.LoadRunFile(*runPath)
	if err != nil {
		log.Fatalf("Failed to load run file: %v", err)
	}
	log.Printf("Loaded run %s: %d records", run.Meta.RunID, len(run.Records))

	lexicon := analysis.DefaultLexicon()
	if cfg.Analysis.LexiconPath != "" {
		lexicon, err = analysis.LoadLexicon(cfg.Analysis.LexiconPath)
		if err != nil {
			log.Fatalf("Failed to load lexicon: %v", err)
		}
	}

	scorer, err := analysis.NewScorer(lexicon)
	if err != nil {
		log.Fatalf("Failed to compile lexicon: %v", err)
	}

	reporter := analysis.NewReporter(scorer, analysis.NewCoder(), analysis.ReportOptions{
		BaselineLabel:   cfg.Analysis.BaselineLabel,
		ComparisonLabel: cfg.Analysis.ComparisonLabel,
	})

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create report file: %v", err)
		}
		defer f.Close()
		out = f
	}

	if err := reporter.Write(out, *run); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	if *outPath != "" {
		log.Printf("Report written to %s", *outPath)
	}
}
