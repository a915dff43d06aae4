package archive

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/couchcryptid/aorc-precip-etl/internal/domain"
)

// WriteReport stores the QA report as indented JSON.
func WriteReport(path string, report domain.QAReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal qa report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a QA report written by WriteReport.
func ReadReport(path string) (domain.QAReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.QAReport{}, fmt.Errorf("archive: open %s: %w", path, err)
	}
	var report domain.QAReport
	if err := json.Unmarshal(data, &report); err != nil {
		return domain.QAReport{}, fmt.Errorf("archive: parse %s: %w", path, err)
	}
	return report, nil
}
