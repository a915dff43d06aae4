package domain

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// QAConfig holds the plausibility thresholds a series is checked against.
type QAConfig struct {
	// MinPlausible and MaxPlausible bound non-missing values (inclusive).
	// For hourly APCP area means, [0, 100] mm is generous: the largest
	// point observation on record is ~305 mm/h and spatial averaging pulls
	// values far below that.
	MinPlausible float64 `json:"min_plausible"`
	MaxPlausible float64 `json:"max_plausible"`

	// MaxMissingFraction is the tolerated share of missing timesteps.
	MaxMissingFraction float64 `json:"max_missing_fraction"`

	// ExpectedInterval is the sampling interval of the time axis. Gaps
	// larger than this count as violations; zero disables gap detection.
	ExpectedInterval time.Duration `json:"expected_interval"`
}

// CheckResult records one QA check's outcome.
type CheckResult struct {
	Pass       bool `json:"pass"`
	Violations int  `json:"violations"`
}

// SeriesStats summarizes the non-missing values of a series. All fields are
// zero when ValidCount is zero (never NaN, which would not survive JSON).
type SeriesStats struct {
	ValidCount int       `json:"valid_count"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Mean       float64   `json:"mean"`
	MaxTime    time.Time `json:"max_time"`
}

// QAReport is the outcome of RunQA: one result per check, the counts behind
// them, and summary statistics. A report is data, not an error; callers
// decide whether a failed check warns, blocks publication, or aborts.
type QAReport struct {
	GeneratedAt     time.Time   `json:"generated_at"`
	Config          QAConfig    `json:"config"`
	TimestepCount   int         `json:"timestep_count"`
	MissingCount    int         `json:"missing_count"`
	MissingFraction float64     `json:"missing_fraction"`
	RangeCheck      CheckResult `json:"range_check"`
	MissingCheck    CheckResult `json:"missing_check"`
	TimeCheck       CheckResult `json:"time_check"`
	TimeDuplicates  int         `json:"time_duplicates"`
	TimeOutOfOrder  int         `json:"time_out_of_order"`
	TimeGaps        int         `json:"time_gaps"`
	Stats           SeriesStats `json:"stats"`
}

// Pass reports whether every check passed.
func (r QAReport) Pass() bool {
	return r.RangeCheck.Pass && r.MissingCheck.Pass && r.TimeCheck.Pass
}

// RunQA evaluates all checks against the series and returns the full report.
// Checks never short-circuit: a series failing the range check still gets its
// missing fraction and time axis examined. The series itself is not modified;
// out-of-range values are counted, not clipped.
func RunQA(series Series, cfg QAConfig) QAReport {
	report := QAReport{
		GeneratedAt:   clock.Now().UTC(),
		Config:        cfg,
		TimestepCount: series.Len(),
	}

	valid := make([]float64, 0, series.Len())
	maxIdx := -1
	for i, v := range series.Values {
		if IsMissing(v) {
			report.MissingCount++
			continue
		}
		if v < cfg.MinPlausible || v > cfg.MaxPlausible {
			report.RangeCheck.Violations++
		}
		if maxIdx < 0 || v > series.Values[maxIdx] {
			maxIdx = i
		}
		valid = append(valid, v)
	}
	report.RangeCheck.Pass = report.RangeCheck.Violations == 0

	if report.TimestepCount > 0 {
		report.MissingFraction = float64(report.MissingCount) / float64(report.TimestepCount)
	}
	report.MissingCheck.Violations = report.MissingCount
	report.MissingCheck.Pass = report.MissingFraction <= cfg.MaxMissingFraction

	for i := 1; i < len(series.Times); i++ {
		prev, cur := series.Times[i-1], series.Times[i]
		switch {
		case cur.Equal(prev):
			report.TimeDuplicates++
		case cur.Before(prev):
			report.TimeOutOfOrder++
		case cfg.ExpectedInterval > 0 && cur.Sub(prev) > cfg.ExpectedInterval:
			report.TimeGaps++
		}
	}
	report.TimeCheck.Violations = report.TimeDuplicates + report.TimeOutOfOrder + report.TimeGaps
	report.TimeCheck.Pass = report.TimeCheck.Violations == 0

	if len(valid) > 0 {
		report.Stats = SeriesStats{
			ValidCount: len(valid),
			Min:        floats.Min(valid),
			Max:        series.Values[maxIdx],
			Mean:       stat.Mean(valid, nil),
			MaxTime:    series.Times[maxIdx],
		}
	}
	return report
}
