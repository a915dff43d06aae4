// Command validate performs end-to-end integrity checks across one run's
// artifacts: the NetCDF subset, the area-mean CSV, and the QA report. It
// verifies structure, cross-artifact alignment, and recomputes the area mean
// and the QA counts from scratch to confirm the artifacts agree with the
// data they were derived from.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -subset outputs/aorc_subset_apcp_2010_2020.nc \
//	  -series outputs/aorc_area_mean_apcp_hourly_2010_2020.csv \
//	  -report outputs/aorc_qa_report_apcp_2010_2020.json
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/archive"
	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	subset := flag.String("subset", "", "path to the NetCDF subset artifact")
	series := flag.String("series", "", "path to the area-mean CSV artifact")
	report := flag.String("report", "", "path to the QA report JSON artifact")
	tolerance := flag.Float64("tolerance", 1e-6, "maximum |difference| when recomputing means")
	flag.Parse()

	if *subset == "" || *series == "" || *report == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*subset, *series, *report, *tolerance); code != 0 {
		os.Exit(code)
	}
}

func run(subsetPath, seriesPath, reportPath string, tolerance float64) int {
	// ── Load all artifacts ──
	fmt.Println("=== AORC Artifact Integrity Validation ===")
	fmt.Println()

	field, err := archive.ReadSubset(subsetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load subset: %v\n", err)
		return 1
	}

	series, err := archive.ReadSeries(seriesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load series: %v\n", err)
		return 1
	}

	report, err := archive.ReadReport(reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load report: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateSubsetIntegrity(field),
		validateSeriesAlignment(series, field),
		validateRecomputedMean(series, field, tolerance),
		validateReportConsistency(report, series),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Artifacts: %d timesteps x %d x %d subset, %d series rows, report generated %s\n",
		field.Data.Shape[0], field.Data.Shape[1], field.Data.Shape[2],
		series.Len(), report.GeneratedAt.Format(time.RFC3339))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Subset Integrity ──
// Validates the NetCDF subset's structure: dimensioned axes, ordered
// coordinates, and plausible cell values.

func validateSubsetIntegrity(field *domain.Field) *phase {
	p := &phase{name: "Phase 1: Subset Integrity (NetCDF)"}

	nt, ny, nx := field.Data.Shape[0], field.Data.Shape[1], field.Data.Shape[2]
	if nt == 0 || ny == 0 || nx == 0 {
		p.errorf("empty subset: shape %v", field.Data.Shape)
		return p
	}
	if field.Variable == "" {
		p.errorf("subset has no variable name")
	}

	for i := 1; i < len(field.Times); i++ {
		if !field.Times[i].After(field.Times[i-1]) {
			p.errorf("time axis not strictly increasing at index %d: %s then %s",
				i, field.Times[i-1].Format(time.RFC3339), field.Times[i].Format(time.RFC3339))
			break
		}
	}
	checkAxisMonotonic(p, "latitude", field.Grid.Lats)
	checkAxisMonotonic(p, "longitude", field.Grid.Lons)

	var negatives int
	for _, v := range field.Data.Elements {
		if !math.IsNaN(v) && v < 0 {
			negatives++
		}
	}
	if negatives > 0 {
		p.errorf("%d negative cell values (accumulated precipitation cannot be negative)", negatives)
	}
	return p
}

// checkAxisMonotonic accepts either axis direction: subsets keep the store's
// coordinate order, so descending latitude is as legal as ascending. Duplicate
// values or a direction flip mean a corrupt artifact.
func checkAxisMonotonic(p *phase, name string, axis []float64) {
	if len(axis) < 2 {
		return
	}
	ascending := axis[1] > axis[0]
	for i := 1; i < len(axis); i++ {
		ok := axis[i] > axis[i-1]
		if !ascending {
			ok = axis[i] < axis[i-1]
		}
		if !ok {
			p.errorf("%s axis not strictly monotonic at index %d: %g then %g", name, i, axis[i-1], axis[i])
			return
		}
	}
}

// ── Phase 2: Series Alignment ──
// Validates that the CSV series covers exactly the subset's time axis.

func validateSeriesAlignment(series domain.Series, field *domain.Field) *phase {
	p := &phase{name: "Phase 2: Series Alignment (CSV vs NetCDF)"}

	if want := field.Variable + "_area_mean"; series.Name != want {
		p.errorf("series column %q, want %q", series.Name, want)
	}
	if series.Len() != len(field.Times) {
		p.errorf("series has %d rows, subset has %d timesteps", series.Len(), len(field.Times))
		return p
	}
	for i := range series.Times {
		if !series.Times[i].Equal(field.Times[i]) {
			p.errorf("timestep %d: series %s, subset %s",
				i, series.Times[i].Format(time.RFC3339), field.Times[i].Format(time.RFC3339))
		}
	}
	return p
}

// ── Phase 3: Recomputed Mean ──
// Recomputes the cos(latitude)-weighted area mean from the subset and
// compares it against the CSV within tolerance.

func validateRecomputedMean(series domain.Series, field *domain.Field, tolerance float64) *phase {
	p := &phase{name: "Phase 3: Recomputed Mean (cos-lat weights)"}

	recomputed, err := domain.AreaMean(field, domain.CosineWeights(field.Grid))
	if err != nil {
		p.errorf("recompute area mean: %v", err)
		return p
	}
	if recomputed.Len() != series.Len() {
		p.errorf("recomputed %d values, series has %d", recomputed.Len(), series.Len())
		return p
	}

	for i, want := range recomputed.Values {
		got := series.Values[i]
		switch {
		case domain.IsMissing(want) && domain.IsMissing(got):
		case domain.IsMissing(want):
			p.errorf("timestep %d: recomputed missing, series has %g", i, got)
		case domain.IsMissing(got):
			p.errorf("timestep %d: series missing, recomputed %g", i, want)
		case math.Abs(want-got) > tolerance:
			p.errorf("timestep %d: recomputed %g, series %g (|diff| %g > %g)",
				i, want, got, math.Abs(want-got), tolerance)
		}
	}
	return p
}

// ── Phase 4: Report Consistency ──
// Re-runs the QA checks on the CSV series with the thresholds embedded in
// the report and compares every count.

func validateReportConsistency(report domain.QAReport, series domain.Series) *phase {
	p := &phase{name: "Phase 4: Report Consistency (QA recount)"}

	recount := domain.RunQA(series, report.Config)

	if recount.TimestepCount != report.TimestepCount {
		p.errorf("timestep count: recounted %d, report says %d", recount.TimestepCount, report.TimestepCount)
	}
	if recount.MissingCount != report.MissingCount {
		p.errorf("missing count: recounted %d, report says %d", recount.MissingCount, report.MissingCount)
	}
	if recount.RangeCheck != report.RangeCheck {
		p.errorf("range check: recounted %+v, report says %+v", recount.RangeCheck, report.RangeCheck)
	}
	if recount.MissingCheck != report.MissingCheck {
		p.errorf("missing check: recounted %+v, report says %+v", recount.MissingCheck, report.MissingCheck)
	}
	if recount.TimeCheck != report.TimeCheck {
		p.errorf("time check: recounted %+v, report says %+v", recount.TimeCheck, report.TimeCheck)
	}
	if recount.Stats.ValidCount != report.Stats.ValidCount {
		p.errorf("valid count: recounted %d, report says %d", recount.Stats.ValidCount, report.Stats.ValidCount)
	}
	if !floatEq(recount.Stats.Max, report.Stats.Max) {
		p.errorf("series max: recounted %g, report says %g", recount.Stats.Max, report.Stats.Max)
	}
	if !floatEq(recount.Stats.Mean, report.Stats.Mean) {
		p.errorf("series mean: recounted %g, report says %g", recount.Stats.Mean, report.Stats.Mean)
	}
	if recount.Stats.ValidCount > 0 && !recount.Stats.MaxTime.Equal(report.Stats.MaxTime) {
		p.errorf("series max time: recounted %s, report says %s",
			recount.Stats.MaxTime.Format(time.RFC3339), report.Stats.MaxTime.Format(time.RFC3339))
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
