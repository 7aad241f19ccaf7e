package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTestResult holds a two-sample comparison of one metric between two groups.
type TTestResult struct {
	T        float64 // Welch's t statistic
	DF       float64 // Welch–Satterthwaite degrees of freedom
	P        float64 // two-sided p-value
	MeanDiff float64 // mean(b) − mean(a)
	D        float64 // Cohen's d effect size
}

// CohensD computes Cohen's d between two groups using the pooled standard
// deviation, positive when b exceeds a. It returns 0 when either group has
// fewer than two observations or the pooled deviation is zero.
func CohensD(a, b []float64) float64 {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return 0
	}
	v1 := stat.Variance(a, nil)
	v2 := stat.Variance(b, nil)
	pooled := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	if pooled == 0 {
		return 0
	}
	return (stat.Mean(b, nil) - stat.Mean(a, nil)) / pooled
}

// WelchTTest runs a two-sided Welch's t-test comparing group b against
// group a. Both groups need at least two observations.
func WelchTTest(a, b []float64) (TTestResult, error) {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return TTestResult{}, fmt.Errorf("%w: need n>=2 per group, got %d and %d", ErrInsufficientData, len(a), len(b))
	}

	m1, m2 := stat.Mean(a, nil), stat.Mean(b, nil)
	v1, v2 := stat.Variance(a, nil), stat.Variance(b, nil)

	se := math.Sqrt(v1/n1 + v2/n2)
	result := TTestResult{
		MeanDiff: m2 - m1,
		D:        CohensD(a, b),
	}

	if se == 0 {
		// Identical constant groups: no detectable difference.
		result.DF = n1 + n2 - 2
		result.P = 1
		return result, nil
	}

	result.T = (m2 - m1) / se
	result.DF = math.Pow(v1/n1+v2/n2, 2) /
		(math.Pow(v1/n1, 2)/(n1-1) + math.Pow(v2/n2, 2)/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: result.DF}
	result.P = 2 * (1 - dist.CDF(math.Abs(result.T)))
	return result, nil
}

// ANOVAResult holds a one-way main-effect test.
type ANOVAResult struct {
	F       float64
	P       float64
	DFAmong int
	DFWith  int
}

// OneWayANOVA runs a one-way fixed-effects ANOVA across k groups, used for
// the condition and architecture main effects. Groups with no data are
// skipped; at least two non-empty groups with two total degrees of freedom
// within are required.
func OneWayANOVA(groups [][]float64) (ANOVAResult, error) {
	var nonEmpty [][]float64
	total := 0
	for _, g := range groups {
		if len(g) > 0 {
			nonEmpty = append(nonEmpty, g)
			total += len(g)
		}
	}
	k := len(nonEmpty)
	if k < 2 || total-k < 1 {
		return ANOVAResult{}, fmt.Errorf("%w: need at least 2 non-empty groups, got %d", ErrInsufficientData, k)
	}

	var all []float64
	for _, g := range nonEmpty {
		all = append(all, g...)
	}
	grand := stat.Mean(all, nil)

	var ssAmong, ssWithin float64
	for _, g := range nonEmpty {
		mean := stat.Mean(g, nil)
		ssAmong += float64(len(g)) * (mean - grand) * (mean - grand)
		for _, x := range g {
			ssWithin += (x - mean) * (x - mean)
		}
	}

	result := ANOVAResult{DFAmong: k - 1, DFWith: total - k}
	msAmong := ssAmong / float64(result.DFAmong)
	msWithin := ssWithin / float64(result.DFWith)
	if msWithin == 0 {
		if msAmong == 0 {
			result.P = 1
			return result, nil
		}
		result.F = math.Inf(1)
		result.P = 0
		return result, nil
	}

	result.F = msAmong / msWithin
	dist := distuv.F{D1: float64(result.DFAmong), D2: float64(result.DFWith)}
	result.P = 1 - dist.CDF(result.F)
	return result, nil
}
