package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RunSummary is the compact record of one pipeline run: enough to identify
// the run (dataset, variable, window) and judge it (QA report) without
// shipping the gridded data. It is what gets published to the summary topic
// and logged at completion.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	DatasetURI string    `json:"dataset_uri"`
	Variable   string    `json:"variable"`
	Selection  Selection `json:"selection"`
	Timesteps  int       `json:"timesteps"`
	GridCells  int       `json:"grid_cells"`
	QA         QAReport  `json:"qa"`
}

// RunID produces a deterministic ID from the run's key inputs. Deterministic
// IDs keep replays idempotent downstream: reprocessing the same window of the
// same dataset yields the same ID, so consumers can dedupe without
// coordination.
func RunID(datasetURI, variable string, sel Selection) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%.4f|%.4f|%.4f|%.4f",
		datasetURI, variable,
		sel.Start.UTC().Format(time.RFC3339), sel.End.UTC().Format(time.RFC3339),
		sel.LatMin, sel.LatMax, sel.LonMin, sel.LonMax,
	)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	return variable + "-" + short
}
