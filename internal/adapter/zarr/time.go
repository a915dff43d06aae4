package zarr

import (
	"fmt"
	"strings"
	"time"
)

// cfEpochLayouts are the epoch formats seen in CF "since" strings, most
// specific first.
var cfEpochLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// parseTimeUnits splits a CF units string such as
// "hours since 2010-01-01 00:00:00" into the sampling unit and the epoch.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("zarr: time units %q lack a 'since' epoch", units)
	}

	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "seconds", "second", "sec", "s":
		unit = time.Second
	case "minutes", "minute", "min":
		unit = time.Minute
	case "hours", "hour", "hr", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("zarr: unsupported time unit %q", strings.TrimSpace(parts[0]))
	}

	epochStr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(parts[1]), " UTC"))
	for _, layout := range cfEpochLayouts {
		if epoch, err := time.Parse(layout, epochStr); err == nil {
			return unit, epoch.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("zarr: unparseable epoch %q in time units", parts[1])
}

// checkCalendar rejects the non-Gregorian CF calendars (360_day, noleap, …)
// that cannot be mapped onto time.Time arithmetic.
func checkCalendar(calendar string) error {
	switch strings.ToLower(calendar) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		return nil
	}
	return fmt.Errorf("zarr: calendar %q unsupported", calendar)
}

// decodeTimes converts raw CF offsets into UTC timestamps.
func decodeTimes(values []float64, units, calendar string) ([]time.Time, error) {
	if err := checkCalendar(calendar); err != nil {
		return nil, err
	}
	unit, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(values))
	for i, v := range values {
		out[i] = epoch.Add(time.Duration(v * float64(unit)))
	}
	return out, nil
}

// encodeTimes is the inverse of decodeTimes, for the writer.
func encodeTimes(times []time.Time, unit time.Duration, epoch time.Time) []float64 {
	out := make([]float64, len(times))
	for i, ts := range times {
		out[i] = float64(ts.Sub(epoch)) / float64(unit)
	}
	return out
}

// EncodeCFTimes converts timestamps to offsets under a CF units string, e.g.
// "hours since 2024-01-01 00:00:00". Fixture writers pair it with Builder.
func EncodeCFTimes(times []time.Time, units string) ([]float64, error) {
	unit, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	return encodeTimes(times, unit, epoch), nil
}

// DecodeCFTimes is the inverse of EncodeCFTimes, assuming a Gregorian
// calendar.
func DecodeCFTimes(values []float64, units string) ([]time.Time, error) {
	return decodeTimes(values, units, "")
}
