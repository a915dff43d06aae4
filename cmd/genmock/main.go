// Command genmock writes a synthetic AORC-style Zarr store for offline runs
// and test fixtures. Precipitation comes from a seeded storm-cell process, so
// the same flags always produce the same store. It uses the actual Zarr
// builder, so everything it writes can be read back by the ETL.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/aorc-zarr \
//	  -start 2024-03-01T00:00:00 \
//	  -hours 72 -rows 24 -cols 24 \
//	  -missing-rate 0.01 -omit-chunks 1
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/couchcryptid/aorc-precip-etl/internal/adapter/zarr"
)

// cellSize is the AORC grid spacing, 30 arc seconds.
const cellSize = 1.0 / 120.0

type params struct {
	out         string
	start       time.Time
	hours       int
	rows, cols  int
	lat0, lon0  float64
	seed        uint64
	missingRate float64
	omitChunks  int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the Zarr store")
	start := flag.String("start", "2024-03-01T00:00:00", "first timestep, UTC")
	hours := flag.Int("hours", 72, "number of hourly timesteps")
	rows := flag.Int("rows", 24, "grid rows (latitude)")
	cols := flag.Int("cols", 24, "grid columns (longitude)")
	lat0 := flag.Float64("lat0", 37.50, "southernmost cell latitude")
	lon0 := flag.Float64("lon0", -89.50, "westernmost cell longitude")
	seed := flag.Uint64("seed", 1, "PRNG seed")
	missingRate := flag.Float64("missing-rate", 0.01, "fraction of cells written as missing")
	omitChunks := flag.Int("omit-chunks", 0, "number of data chunks to leave unwritten")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *hours < 1 || *rows < 1 || *cols < 1 {
		return fmt.Errorf("-hours, -rows and -cols must be positive")
	}

	startTime, err := time.Parse("2006-01-02T15:04:05", *start)
	if err != nil {
		return fmt.Errorf("invalid -start %q: %w", *start, err)
	}

	p := params{
		out:   *out,
		start: startTime.UTC(),
		hours: *hours,
		rows:  *rows, cols: *cols,
		lat0: *lat0, lon0: *lon0,
		seed:        *seed,
		missingRate: *missingRate,
		omitChunks:  *omitChunks,
	}

	data := generate(p)

	omitted, err := writeStore(p, data)
	if err != nil {
		return err
	}
	log.Printf("wrote store: %s", p.out)

	printStats(p, data, omitted)
	return nil
}

// --- storm-cell generator ---

// storm is one synthetic precipitation cell: a Gaussian footprint that
// drifts east and decays hour over hour.
type storm struct {
	y, x      float64 // center, in cell coordinates
	intensity float64 // peak mm/h
	radius    float64 // in cells
}

// generate produces hours×rows×cols of precipitation in row-major order.
// Dry hours stay exactly zero; wet hours carry one or more storm cells.
// A missingRate fraction of cells is replaced with NaN afterwards.
func generate(p params) []float64 {
	r := rand.New(rand.NewPCG(p.seed, p.seed))
	data := make([]float64, p.hours*p.rows*p.cols)

	var active []storm
	for ti := 0; ti < p.hours; ti++ {
		// Spawn a new cell now and then; drift and decay the live ones.
		if r.Float64() < 0.12 {
			active = append(active, storm{
				y:         r.Float64() * float64(p.rows),
				x:         r.Float64() * float64(p.cols) * 0.5, // enter from the west
				intensity: 2 + r.ExpFloat64()*6,
				radius:    2 + r.Float64()*float64(max(p.rows, p.cols))/4,
			})
		}
		kept := active[:0]
		for _, s := range active {
			s.x += 0.5 + r.Float64()
			s.y += r.Float64() - 0.5
			s.intensity *= 0.85
			if s.intensity > 0.1 {
				kept = append(kept, s)
			}
		}
		active = kept

		for y := 0; y < p.rows; y++ {
			for x := 0; x < p.cols; x++ {
				var v float64
				for _, s := range active {
					d2 := (float64(y)-s.y)*(float64(y)-s.y) + (float64(x)-s.x)*(float64(x)-s.x)
					v += s.intensity * math.Exp(-d2/(2*s.radius*s.radius))
				}
				data[(ti*p.rows+y)*p.cols+x] = v
			}
		}
	}

	for i := range data {
		if r.Float64() < p.missingRate {
			data[i] = math.NaN()
		}
	}
	return data
}

// --- store writing ---

// writeStore lays the hierarchy down on disk and returns the chunk keys it
// deliberately left unwritten.
func writeStore(p params, data []float64) ([]string, error) {
	ctx := context.Background()
	b := zarr.NewBuilder(zarr.NewDirStore(p.out))

	timeVals := make([]float64, p.hours)
	for i := range timeVals {
		timeVals[i] = float64(i)
	}
	timeUnits := "hours since " + p.start.Format("2006-01-02 15:04:05")
	if err := b.Write(ctx, zarr.ArraySpec{
		Name:       "time",
		Shape:      []int{p.hours},
		Chunks:     []int{p.hours},
		Dtype:      "<f8",
		Dimensions: []string{"time"},
		Units:      timeUnits,
		Calendar:   "standard",
		Data:       timeVals,
	}); err != nil {
		return nil, fmt.Errorf("write time axis: %w", err)
	}

	lats := make([]float64, p.rows)
	for i := range lats {
		lats[i] = p.lat0 + float64(i)*cellSize
	}
	if err := b.Write(ctx, zarr.ArraySpec{
		Name:       "latitude",
		Shape:      []int{p.rows},
		Chunks:     []int{p.rows},
		Dtype:      "<f8",
		Dimensions: []string{"latitude"},
		Units:      "degrees_north",
		Data:       lats,
	}); err != nil {
		return nil, fmt.Errorf("write latitude axis: %w", err)
	}

	lons := make([]float64, p.cols)
	for i := range lons {
		lons[i] = p.lon0 + float64(i)*cellSize
	}
	if err := b.Write(ctx, zarr.ArraySpec{
		Name:       "longitude",
		Shape:      []int{p.cols},
		Chunks:     []int{p.cols},
		Dtype:      "<f8",
		Dimensions: []string{"longitude"},
		Units:      "degrees_east",
		Data:       lons,
	}); err != nil {
		return nil, fmt.Errorf("write longitude axis: %w", err)
	}

	chunks := []int{min(6, p.hours), min(16, p.rows), min(16, p.cols)}
	omitted := pickOmitted(p, chunks)
	if err := b.Write(ctx, zarr.ArraySpec{
		Name:       "apcp",
		Shape:      []int{p.hours, p.rows, p.cols},
		Chunks:     chunks,
		Dtype:      "<f4",
		Compressor: &zarr.CompressorMeta{ID: "zlib", Level: 4},
		FillValue:  math.NaN(),
		Dimensions: []string{"time", "latitude", "longitude"},
		Units:      "mm",
		LongName:   "Total precipitation",
		Data:       data,
		OmitChunks: omitted,
	}); err != nil {
		return nil, fmt.Errorf("write apcp array: %w", err)
	}

	if err := b.Finalize(ctx); err != nil {
		return nil, fmt.Errorf("finalize store: %w", err)
	}
	return omitted, nil
}

// pickOmitted selects omitChunks distinct chunk keys, seeded separately from
// the data stream so changing one flag does not reshuffle the other.
func pickOmitted(p params, chunks []int) []string {
	if p.omitChunks <= 0 {
		return nil
	}
	shape := []int{p.hours, p.rows, p.cols}
	var keys []string
	for t := 0; t < ceilDiv(shape[0], chunks[0]); t++ {
		for y := 0; y < ceilDiv(shape[1], chunks[1]); y++ {
			for x := 0; x < ceilDiv(shape[2], chunks[2]); x++ {
				keys = append(keys, fmt.Sprintf("%d.%d.%d", t, y, x))
			}
		}
	}
	r := rand.New(rand.NewPCG(p.seed+1, p.seed+1))
	r.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	n := min(p.omitChunks, len(keys))
	picked := keys[:n]
	sort.Strings(picked)
	return picked
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// --- stats ---

func printStats(p params, data []float64, omitted []string) {
	var wetHours, missing int
	var maxVal, wetSum float64
	for ti := 0; ti < p.hours; ti++ {
		wet := false
		for i := ti * p.rows * p.cols; i < (ti+1)*p.rows*p.cols; i++ {
			v := data[i]
			if math.IsNaN(v) {
				missing++
				continue
			}
			if v > 0.01 {
				wet = true
				wetSum += v
			}
			if v > maxVal {
				maxVal = v
			}
		}
		if wet {
			wetHours++
		}
	}

	end := p.start.Add(time.Duration(p.hours-1) * time.Hour)
	latMax := p.lat0 + float64(p.rows-1)*cellSize
	lonMax := p.lon0 + float64(p.cols-1)*cellSize
	cells := p.hours * p.rows * p.cols

	fmt.Println("\n=== Store summary ===")
	fmt.Printf("Hours: %d (%s .. %s)\n", p.hours,
		p.start.Format(time.RFC3339), end.Format(time.RFC3339))
	fmt.Printf("Grid: %d x %d cells (lat %.4f..%.4f, lon %.4f..%.4f)\n",
		p.rows, p.cols, p.lat0, latMax, p.lon0, lonMax)
	fmt.Printf("Wet hours: %d/%d\n", wetHours, p.hours)
	fmt.Printf("Max cell value: %.2f mm\n", maxVal)
	fmt.Printf("Missing cells: %d of %d (%.2f%%)\n", missing, cells, 100*float64(missing)/float64(cells))
	if len(omitted) > 0 {
		fmt.Printf("Omitted chunks: %d (%v)\n", len(omitted), omitted)
	}

	fmt.Println("\nRun the ETL against it:")
	fmt.Printf("  AORC_ZARR_URI=file://%s \\\n", p.out)
	fmt.Printf("  TIME_START=%s TIME_END=%s \\\n",
		p.start.Format("2006-01-02T15:04:05"), end.Format("2006-01-02T15:04:05"))
	fmt.Printf("  LAT_MIN=%.4f LAT_MAX=%.4f LON_MIN=%.4f LON_MAX=%.4f \\\n",
		p.lat0, latMax, p.lon0, lonMax)
	fmt.Println("  go run ./cmd/etl")
}
