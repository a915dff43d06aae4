package zarr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnits(t *testing.T) {
	cases := []struct {
		units string
		unit  time.Duration
		epoch time.Time
	}{
		{"hours since 2010-01-01 00:00:00", time.Hour, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01", time.Second, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 2000-01-01T12:00:00Z", 24 * time.Hour, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"minutes since 1900-01-01 00:00:00 UTC", time.Minute, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"Hours since 2024-06-01T00:00:00", time.Hour, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.units, func(t *testing.T) {
			unit, epoch, err := parseTimeUnits(tc.units)
			require.NoError(t, err)
			assert.Equal(t, tc.unit, unit)
			assert.True(t, epoch.Equal(tc.epoch), "epoch %s, want %s", epoch, tc.epoch)
		})
	}
}

func TestParseTimeUnits_Errors(t *testing.T) {
	for _, units := range []string{
		"hours",
		"fortnights since 2010-01-01",
		"hours since someday",
		"",
	} {
		_, _, err := parseTimeUnits(units)
		assert.Error(t, err, "units %q", units)
	}
}

func TestDecodeTimes(t *testing.T) {
	times, err := decodeTimes([]float64{0, 1, 2.5}, "hours since 2024-01-01 00:00:00", "standard")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), times[0])
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), times[1])
	assert.Equal(t, time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC), times[2])
}

func TestDecodeTimes_RejectsNonGregorianCalendar(t *testing.T) {
	_, err := decodeTimes([]float64{0}, "days since 2000-01-01", "360_day")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calendar")
}

func TestEncodeCFTimes_RoundTrip(t *testing.T) {
	units := "hours since 2024-01-01 00:00:00"
	in := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 15, 23, 0, 0, 0, time.UTC),
	}

	offsets, err := EncodeCFTimes(in, units)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 7, 1103}, offsets)

	out, err := decodeTimes(offsets, units, "")
	require.NoError(t, err)
	for i := range in {
		assert.True(t, out[i].Equal(in[i]), "index %d: %s, want %s", i, out[i], in[i])
	}
}
