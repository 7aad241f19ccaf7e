package analysis

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/coglab/selfconstruct/pkg/types"
)

// ReportOptions selects which pair of conditions the effect-size section
// compares, per architecture.
type ReportOptions struct {
	// BaselineLabel is the reference condition. Default "baseline".
	BaselineLabel string

	// ComparisonLabel is the condition compared against the baseline.
	// Default "full_meta".
	ComparisonLabel string
}

// Reporter renders a plain-text analysis report from a run.
type Reporter struct {
	scorer *Scorer
	coder  *Coder
	strict *Coder
	opts   ReportOptions
}

// NewReporter builds a reporter. The strict coder is constructed internally
// from the given coder's recurring threshold and used only for the
// inter-rater agreement section.
func NewReporter(scorer *Scorer, coder *Coder, opts ReportOptions) *Reporter {
	if opts.BaselineLabel == "" {
		opts.BaselineLabel = "baseline"
	}
	if opts.ComparisonLabel == "" {
		opts.ComparisonLabel = "full_meta"
	}
	return &Reporter{
		scorer: scorer,
		coder:  coder,
		strict: NewCoderWithOptions(CoderOptions{RecurringThreshold: coder.opts.RecurringThreshold, Strict: true}),
		opts:   opts,
	}
}

// metricColumn names one of the four lexical rates for tables and tests.
type metricColumn struct {
	name    string
	extract func(types.MetricVector) float64
}

func metricColumns() []metricColumn {
	return []metricColumn{
		{"temporal", func(m types.MetricVector) float64 { return m.TemporalRate }},
		{"self-reference", func(m types.MetricVector) float64 { return m.SelfReferenceRate }},
		{"autobiographical", func(m types.MetricVector) float64 { return m.AutobiographicalRate }},
		{"metacognitive", func(m types.MetricVector) float64 { return m.MetacognitiveRate }},
	}
}

// Write renders the full report for a run. The report is a pure function of
// the run's records plus the compiled lexicon and coder configuration, so a
// re-run over the same run file is byte-identical.
func (r *Reporter) Write(w io.Writer, run types.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("analysis: cannot report on invalid run: %w", err)
	}

	var b strings.Builder
	r.writeHeader(&b, run)

	aggregates, err := AggregateRun(run.Records, r.scorer, r.coder)
	if err != nil {
		return err
	}
	r.writeCells(&b, aggregates)
	r.writeTrajectory(&b, run)
	r.writeComparisons(&b, run)
	r.writeMainEffects(&b, run)
	r.writeAgreement(&b, run)
	r.writeFailures(&b, run)

	_, err = io.WriteString(w, b.String())
	return err
}

func (r *Reporter) writeHeader(b *strings.Builder, run types.Run) {
	fmt.Fprintf(b, "SELF-CONSTRUCTION ANALYSIS REPORT\n")
	fmt.Fprintf(b, "=================================\n\n")
	fmt.Fprintf(b, "Run:           %s\n", run.Meta.RunID)
	fmt.Fprintf(b, "Started:       %s\n", run.Meta.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(b, "Architectures: %s\n", strings.Join(run.Meta.Architectures, ", "))

	labels := make([]string, len(run.Meta.Conditions))
	for i, cond := range run.Meta.Conditions {
		labels[i] = cond.Label
	}
	fmt.Fprintf(b, "Conditions:    %s\n", strings.Join(labels, ", "))
	fmt.Fprintf(b, "Template:      %s (%d queries)\n", run.Meta.TemplateVersion, run.Meta.QueryCount)
	fmt.Fprintf(b, "Lexicon:       %s\n", r.scorer.LexiconVersion())
	fmt.Fprintf(b, "Records:       %d\n\n", len(run.Records))
}

func (r *Reporter) writeCells(b *strings.Builder, aggregates []types.CellAggregate) {
	fmt.Fprintf(b, "PER-CELL AGGREGATES (rates per 100 words, mean±SD)\n")
	fmt.Fprintf(b, "--------------------------------------------------\n\n")
	fmt.Fprintf(b, "%-10s %-14s %4s %4s %12s %12s %12s %12s %12s\n",
		"arch", "condition", "n", "fail", "words", "temporal", "self-ref", "autobio", "metacog")

	for _, agg := range aggregates {
		fmt.Fprintf(b, "%-10s %-14s %4d %4d %12s %12s %12s %12s %12s\n",
			agg.Architecture, agg.ConditionLabel, agg.N, agg.FailureCount,
			formatMeanSD(agg.WordCount),
			formatMeanSD(agg.Temporal),
			formatMeanSD(agg.SelfReference),
			formatMeanSD(agg.Autobiographical),
			formatMeanSD(agg.Metacognitive))
	}

	fmt.Fprintf(b, "\n%-10s %-14s %8s %8s %8s %8s %10s\n",
		"arch", "condition", "mem-ref", "self-aw", "ack", "struct", "recurring")
	for _, agg := range aggregates {
		fmt.Fprintf(b, "%-10s %-14s %7.0f%% %7.0f%% %7.0f%% %7.0f%% %10.1f\n",
			agg.Architecture, agg.ConditionLabel,
			agg.MemoryReferenceRate*100, agg.SelfAwarenessRate*100,
			agg.InstructionAcknowledgedRate*100, agg.StructuredAnalysisRate*100,
			agg.MeanRecurringConcepts)
	}
	fmt.Fprintf(b, "\n")
}

// metricSamples collects the per-record values of one metric for a cell,
// excluding failed sentinel records.
func (r *Reporter) metricSamples(records []types.ResponseRecord, col metricColumn) []float64 {
	var xs []float64
	for _, rec := range records {
		if rec.Failed {
			continue
		}
		xs = append(xs, col.extract(r.scorer.Metrics(rec)))
	}
	return xs
}

// writeTrajectory shows how the self-reference rate moves across the query
// sequence, per condition, averaged over architectures. Drift over the
// sequence is the effect the temporal and memory manipulations are meant to
// produce, so it gets its own table.
func (r *Reporter) writeTrajectory(b *strings.Builder, run types.Run) {
	selfRef := metricColumns()[1]

	samples := make(map[string]map[int][]float64)
	maxIndex := -1
	for _, rec := range run.Records {
		if rec.Failed {
			continue
		}
		byIndex, ok := samples[rec.ConditionLabel]
		if !ok {
			byIndex = make(map[int][]float64)
			samples[rec.ConditionLabel] = byIndex
		}
		byIndex[rec.QueryIndex] = append(byIndex[rec.QueryIndex], selfRef.extract(r.scorer.Metrics(rec)))
		if rec.QueryIndex > maxIndex {
			maxIndex = rec.QueryIndex
		}
	}
	if maxIndex < 0 {
		return
	}

	fmt.Fprintf(b, "PER-QUERY TRAJECTORY (%s rate per 100 words, mean over architectures)\n", selfRef.name)
	fmt.Fprintf(b, "--------------------------------------------------\n\n")

	labels := make([]string, len(run.Meta.Conditions))
	fmt.Fprintf(b, "%-6s", "query")
	for i, cond := range run.Meta.Conditions {
		labels[i] = cond.Label
		fmt.Fprintf(b, " %14s", cond.Label)
	}
	fmt.Fprintf(b, "\n")

	for idx := 0; idx <= maxIndex; idx++ {
		fmt.Fprintf(b, "%-6d", idx+1)
		for _, label := range labels {
			xs := samples[label][idx]
			if len(xs) == 0 {
				fmt.Fprintf(b, " %14s", "-")
				continue
			}
			fmt.Fprintf(b, " %14.2f", mean(xs))
		}
		fmt.Fprintf(b, "\n")
	}
	fmt.Fprintf(b, "\n")
}

func (r *Reporter) writeComparisons(b *strings.Builder, run types.Run) {
	fmt.Fprintf(b, "CONDITION COMPARISON: %s vs %s\n", r.opts.BaselineLabel, r.opts.ComparisonLabel)
	fmt.Fprintf(b, "--------------------------------------------------\n\n")

	cells := run.RecordsByCell()
	arches := append([]string(nil), run.Meta.Architectures...)
	sort.Strings(arches)

	// direction[metric] collects the sign of d per architecture for the
	// convergence assessment.
	direction := make(map[string][]float64)

	for _, arch := range arches {
		base := cells[types.CellKey{Architecture: arch, ConditionLabel: r.opts.BaselineLabel}]
		comp := cells[types.CellKey{Architecture: arch, ConditionLabel: r.opts.ComparisonLabel}]
		if len(base) == 0 || len(comp) == 0 {
			fmt.Fprintf(b, "%s: missing %s or %s cell, skipped\n\n", arch, r.opts.BaselineLabel, r.opts.ComparisonLabel)
			continue
		}

		fmt.Fprintf(b, "%s\n", arch)
		fmt.Fprintf(b, "%-18s %10s %10s %8s %8s %8s\n", "metric", r.opts.BaselineLabel, r.opts.ComparisonLabel, "d", "t", "p")
		for _, col := range metricColumns() {
			a := r.metricSamples(base, col)
			c := r.metricSamples(comp, col)

			res, err := WelchTTest(a, c)
			if err != nil {
				fmt.Fprintf(b, "%-18s insufficient data\n", col.name)
				continue
			}
			fmt.Fprintf(b, "%-18s %10.2f %10.2f %+8.2f %8.2f %8.4f%s\n",
				col.name, mean(a), mean(c), res.D, res.T, res.P, significanceMark(res.P))
			if res.D != 0 {
				direction[col.name] = append(direction[col.name], res.D)
			}
		}
		fmt.Fprintf(b, "\n")
	}

	if len(arches) > 1 {
		fmt.Fprintf(b, "Cross-architecture convergence (effect direction of %s vs %s):\n",
			r.opts.BaselineLabel, r.opts.ComparisonLabel)
		for _, col := range metricColumns() {
			ds := direction[col.name]
			fmt.Fprintf(b, "  %-18s %s\n", col.name, convergenceLabel(ds, len(arches)))
		}
		fmt.Fprintf(b, "\n")
	}
}

func (r *Reporter) writeMainEffects(b *strings.Builder, run types.Run) {
	fmt.Fprintf(b, "MAIN EFFECTS (one-way ANOVA)\n")
	fmt.Fprintf(b, "--------------------------------------------------\n\n")

	cells := run.RecordsByCell()
	for _, col := range metricColumns() {
		byCondition := make(map[string][]float64)
		byArch := make(map[string][]float64)
		for key, records := range cells {
			xs := r.metricSamples(records, col)
			byCondition[key.ConditionLabel] = append(byCondition[key.ConditionLabel], xs...)
			byArch[key.Architecture] = append(byArch[key.Architecture], xs...)
		}

		fmt.Fprintf(b, "%s:\n", col.name)
		writeANOVALine(b, "condition", groupValues(byCondition))
		writeANOVALine(b, "architecture", groupValues(byArch))
	}
	fmt.Fprintf(b, "\n")
}

func writeANOVALine(b *strings.Builder, factor string, groups [][]float64) {
	res, err := OneWayANOVA(groups)
	if err != nil {
		fmt.Fprintf(b, "  %-13s insufficient data\n", factor)
		return
	}
	fmt.Fprintf(b, "  %-13s F(%d,%d) = %.2f, p = %.4f%s\n",
		factor, res.DFAmong, res.DFWith, res.F, res.P, significanceMark(res.P))
}

func (r *Reporter) writeAgreement(b *strings.Builder, run types.Run) {
	fmt.Fprintf(b, "INTER-RATER AGREEMENT (default vs strict coder)\n")
	fmt.Fprintf(b, "--------------------------------------------------\n\n")

	var ok []types.ResponseRecord
	for _, rec := range run.Records {
		if !rec.Failed {
			ok = append(ok, rec)
		}
	}

	a := make([]types.QualitativeCodeSet, len(ok))
	c := make([]types.QualitativeCodeSet, len(ok))
	for i, rec := range ok {
		a[i] = r.coder.Code(rec)
		c[i] = r.strict.Code(rec)
	}

	kappa, err := Kappa(a, c)
	if err != nil {
		fmt.Fprintf(b, "unavailable: %v\n\n", err)
		return
	}
	fmt.Fprintf(b, "Cohen's kappa over %d coded responses: %.3f (%s)\n\n",
		len(ok), kappa, kappaLabel(kappa))
}

func (r *Reporter) writeFailures(b *strings.Builder, run types.Run) {
	var failed []types.ResponseRecord
	for _, rec := range run.Records {
		if rec.Failed {
			failed = append(failed, rec)
		}
	}
	if len(failed) == 0 {
		fmt.Fprintf(b, "FAILURES: none\n")
		return
	}

	fmt.Fprintf(b, "FAILURES (%d of %d records)\n", len(failed), len(run.Records))
	fmt.Fprintf(b, "--------------------------------------------------\n\n")
	for _, rec := range failed {
		fmt.Fprintf(b, "  %s query %d: %s\n", rec.Cell(), rec.QueryIndex, rec.FailureReason)
	}
}

func formatMeanSD(m types.MeanSD) string {
	if math.IsNaN(m.Mean) {
		return "-"
	}
	if math.IsNaN(m.SD) {
		return fmt.Sprintf("%.2f", m.Mean)
	}
	return fmt.Sprintf("%.2f±%.2f", m.Mean, m.SD)
}

func significanceMark(p float64) string {
	switch {
	case p < 0.001:
		return " ***"
	case p < 0.01:
		return " **"
	case p < 0.05:
		return " *"
	default:
		return ""
	}
}

// convergenceLabel summarizes whether the effect points the same way across
// architectures.
func convergenceLabel(ds []float64, arches int) string {
	if len(ds) == 0 {
		return "no effect"
	}
	pos, neg := 0, 0
	for _, d := range ds {
		if d > 0 {
			pos++
		} else {
			neg++
		}
	}
	switch {
	case len(ds) < arches:
		return fmt.Sprintf("partial (%d of %d architectures show an effect)", len(ds), arches)
	case pos == len(ds) || neg == len(ds):
		return fmt.Sprintf("convergent across %d architectures", len(ds))
	default:
		return fmt.Sprintf("divergent (%d positive, %d negative)", pos, neg)
	}
}

func kappaLabel(k float64) string {
	switch {
	case k >= 0.8:
		return "almost perfect"
	case k >= 0.6:
		return "substantial"
	case k >= 0.4:
		return "moderate"
	case k >= 0.2:
		return "fair"
	default:
		return "slight"
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func groupValues(m map[string][]float64) [][]float64 {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	groups := make([][]float64, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, m[k])
	}
	return groups
}
