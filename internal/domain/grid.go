package domain

import (
	"fmt"
	"time"
)

// Grid holds the 1-D coordinate axes of a regular latitude/longitude grid.
// Axes keep the order they had in the source dataset, which may be ascending
// or descending.
type Grid struct {
	Lats []float64
	Lons []float64
}

// Ny returns the number of grid rows (latitude points).
func (g Grid) Ny() int { return len(g.Lats) }

// Nx returns the number of grid columns (longitude points).
func (g Grid) Nx() int { return len(g.Lons) }

// Cells returns the number of grid cells, Ny × Nx.
func (g Grid) Cells() int { return len(g.Lats) * len(g.Lons) }

// Selection is a rectangular space-time window into a dataset: an inclusive
// time range plus a bounding box in degrees. Latitude bounds are south/north,
// longitude bounds west/east (negative west of Greenwich).
type Selection struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	LatMin float64   `json:"lat_min"`
	LatMax float64   `json:"lat_max"`
	LonMin float64   `json:"lon_min"`
	LonMax float64   `json:"lon_max"`
}

// Validate checks that the window is non-empty and the bounds are ordered.
func (s Selection) Validate() error {
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("selection: start and end must both be set")
	}
	if s.End.Before(s.Start) {
		return fmt.Errorf("selection: end %s precedes start %s",
			s.End.Format(time.RFC3339), s.Start.Format(time.RFC3339))
	}
	if s.LatMin > s.LatMax {
		return fmt.Errorf("selection: lat_min %.4f exceeds lat_max %.4f", s.LatMin, s.LatMax)
	}
	if s.LonMin > s.LonMax {
		return fmt.Errorf("selection: lon_min %.4f exceeds lon_max %.4f", s.LonMin, s.LonMax)
	}
	if s.LatMin < -90 || s.LatMax > 90 {
		return fmt.Errorf("selection: latitude bounds [%.4f, %.4f] outside [-90, 90]", s.LatMin, s.LatMax)
	}
	if s.LonMin < -180 || s.LonMax > 360 {
		return fmt.Errorf("selection: longitude bounds [%.4f, %.4f] outside [-180, 360]", s.LonMin, s.LonMax)
	}
	return nil
}
