package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Dataset selection.
	DatasetURI string // Zarr store root, s3://, https:// or file:// scheme
	Variable   string
	AWSRegion  string

	// Space-time window. Times are UTC; the range is inclusive on both ends.
	TimeStart time.Time
	TimeEnd   time.Time
	LatMin    float64
	LatMax    float64
	LonMin    float64
	LonMax    float64

	// Output artifacts. File names are relative to OutputDir.
	OutputDir  string
	SubsetFile string
	SeriesFile string
	ReportFile string

	FetchConcurrency int
	FetchTimeout     time.Duration // per-object timeout for plain-HTTP dataset stores
	ChunkCacheBytes  int64         // in-memory store cache budget; 0 disables

	// QA thresholds and policy.
	QAMinPlausible       float64
	QAMaxPlausible       float64
	QAMaxMissingFraction float64
	QAExpectedInterval   time.Duration
	QAEnforce            bool

	// Run summary publishing (optional; disabled when no brokers are set).
	KafkaBrokers      []string
	KafkaSummaryTopic string
	PublishEnabled    bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// Defaults target the public AORC v1.1 store and a southern-Illinois test basin.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	timeStart, err := parseTimeEnv("TIME_START", "2010-01-01T00:00:00")
	if err != nil {
		return nil, err
	}
	timeEnd, err := parseTimeEnv("TIME_END", "2020-12-31T23:00:00")
	if err != nil {
		return nil, err
	}

	latMin, err := parseFloatEnv("LAT_MIN", 37.60)
	if err != nil {
		return nil, err
	}
	latMax, err := parseFloatEnv("LAT_MAX", 37.85)
	if err != nil {
		return nil, err
	}
	lonMin, err := parseFloatEnv("LON_MIN", -89.35)
	if err != nil {
		return nil, err
	}
	lonMax, err := parseFloatEnv("LON_MAX", -89.05)
	if err != nil {
		return nil, err
	}

	fetchConcurrency, err := parseFetchConcurrency()
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDurationEnv("FETCH_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	chunkCacheBytes, err := parseBytesEnv("CHUNK_CACHE_BYTES", 128<<20)
	if err != nil {
		return nil, err
	}

	qaMin, err := parseFloatEnv("QA_MIN_PLAUSIBLE", 0)
	if err != nil {
		return nil, err
	}
	qaMax, err := parseFloatEnv("QA_MAX_PLAUSIBLE", 100)
	if err != nil {
		return nil, err
	}
	qaMissing, err := parseFloatEnv("QA_MAX_MISSING_FRACTION", 0.05)
	if err != nil {
		return nil, err
	}
	qaInterval, err := parseDurationEnv("QA_EXPECTED_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	variable := sharedcfg.EnvOrDefault("AORC_VARIABLE", "apcp")

	brokers := []string{}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	publishEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_PUBLISH"); v != "" {
		publishEnabled = v == "true"
	}

	cfg := &Config{
		DatasetURI: sharedcfg.EnvOrDefault("AORC_ZARR_URI", "s3://noaa-nws-aorc-v1-1-1km"),
		Variable:   variable,
		AWSRegion:  sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),

		TimeStart: timeStart,
		TimeEnd:   timeEnd,
		LatMin:    latMin,
		LatMax:    latMax,
		LonMin:    lonMin,
		LonMax:    lonMax,

		OutputDir:  sharedcfg.EnvOrDefault("OUTPUT_DIR", "outputs"),
		SubsetFile: sharedcfg.EnvOrDefault("SUBSET_FILE", defaultArtifactName("aorc_subset_%s_%d_%d.nc", variable, timeStart, timeEnd)),
		SeriesFile: sharedcfg.EnvOrDefault("SERIES_FILE", defaultArtifactName("aorc_area_mean_%s_hourly_%d_%d.csv", variable, timeStart, timeEnd)),
		ReportFile: sharedcfg.EnvOrDefault("REPORT_FILE", defaultArtifactName("aorc_qa_report_%s_%d_%d.json", variable, timeStart, timeEnd)),

		FetchConcurrency: fetchConcurrency,
		FetchTimeout:     fetchTimeout,
		ChunkCacheBytes:  chunkCacheBytes,

		QAMinPlausible:       qaMin,
		QAMaxPlausible:       qaMax,
		QAMaxMissingFraction: qaMissing,
		QAExpectedInterval:   qaInterval,
		QAEnforce:            os.Getenv("QA_ENFORCE") == "true",

		KafkaBrokers:      brokers,
		KafkaSummaryTopic: sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "aorc-run-summaries"),
		PublishEnabled:    publishEnabled,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.DatasetURI == "" {
		return nil, errors.New("AORC_ZARR_URI is required")
	}
	if cfg.Variable == "" {
		return nil, errors.New("AORC_VARIABLE is required")
	}
	if cfg.TimeEnd.Before(cfg.TimeStart) {
		return nil, errors.New("TIME_END precedes TIME_START")
	}
	if cfg.LatMin > cfg.LatMax {
		return nil, errors.New("LAT_MIN exceeds LAT_MAX")
	}
	if cfg.LonMin > cfg.LonMax {
		return nil, errors.New("LON_MIN exceeds LON_MAX")
	}
	if cfg.QAMaxPlausible < cfg.QAMinPlausible {
		return nil, errors.New("QA_MAX_PLAUSIBLE is below QA_MIN_PLAUSIBLE")
	}
	if cfg.QAMaxMissingFraction < 0 || cfg.QAMaxMissingFraction > 1 {
		return nil, errors.New("QA_MAX_MISSING_FRACTION must be within [0, 1]")
	}
	if cfg.PublishEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_PUBLISH is true but KAFKA_BROKERS is not set")
	}
	if cfg.PublishEnabled && cfg.KafkaSummaryTopic == "" {
		return nil, errors.New("KAFKA_SUMMARY_TOPIC is required when publishing")
	}

	return cfg, nil
}

// SubsetPath returns the gridded NetCDF artifact path.
func (c *Config) SubsetPath() string { return filepath.Join(c.OutputDir, c.SubsetFile) }

// SeriesPath returns the area-mean CSV artifact path.
func (c *Config) SeriesPath() string { return filepath.Join(c.OutputDir, c.SeriesFile) }

// ReportPath returns the QA report JSON artifact path.
func (c *Config) ReportPath() string { return filepath.Join(c.OutputDir, c.ReportFile) }

// defaultArtifactName stamps the variable and year range into a file name,
// e.g. aorc_subset_apcp_2010_2020.nc.
func defaultArtifactName(format, variable string, start, end time.Time) string {
	return fmt.Sprintf(format, variable, start.Year(), end.Year())
}

// parseTimeEnv accepts RFC3339 or the zone-less ISO forms used by the AORC
// tooling; zone-less values are taken as UTC.
func parseTimeEnv(key, def string) (time.Time, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q: want RFC3339 or 2006-01-02T15:04:05", key, s)
}

func parseFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseFetchConcurrency() (int, error) {
	s := os.Getenv("FETCH_CONCURRENCY")
	if s == "" {
		return 8, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 64 {
		return 0, errors.New("FETCH_CONCURRENCY must be an integer between 1 and 64")
	}
	return n, nil
}

func parseBytesEnv(key string, def int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: want a non-negative byte count", key, s)
	}
	return n, nil
}
