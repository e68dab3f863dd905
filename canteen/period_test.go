package canteen_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cantina/canteen"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func TestDayPeriod_WholeLocalDay(t *testing.T) {
	loc := saoPaulo(t)
	// 01:30 UTC on the 11th is still the 10th in São Paulo (UTC-3).
	now := time.Date(2025, time.March, 11, 1, 30, 0, 0, time.UTC)

	p := canteen.DayPeriod(now, loc)

	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, loc), p.Start)
	assert.True(t, p.Contains(time.Date(2025, time.March, 10, 23, 59, 59, 0, loc)))
	assert.False(t, p.Contains(time.Date(2025, time.March, 11, 0, 0, 0, 0, loc)))
	assert.True(t, p.Contains(p.Start))
}

func TestMonthToDate(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, loc)

	p := canteen.MonthToDate(now, loc)

	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, loc), p.Start)
	assert.Equal(t, now, p.End)
	assert.False(t, p.Contains(time.Date(2025, time.February, 28, 23, 59, 0, 0, loc)))
	assert.False(t, p.Contains(now.Add(time.Second)))
}

func TestStartOfDay_ConvertsZone(t *testing.T) {
	loc := saoPaulo(t)
	got := canteen.StartOfDay(time.Date(2025, time.June, 1, 2, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2025, time.May, 31, 0, 0, 0, 0, loc), got)
}

func TestParseDateRange(t *testing.T) {
	loc := saoPaulo(t)

	t.Run("both bounds", func(t *testing.T) {
		p, err := canteen.ParseDateRange("2025-03-01", "2025-03-31", loc)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, loc), p.Start)
		assert.True(t, p.Contains(time.Date(2025, time.March, 31, 23, 59, 59, 0, loc)))
		assert.False(t, p.Contains(time.Date(2025, time.April, 1, 0, 0, 0, 0, loc)))
	})

	t.Run("open bounds", func(t *testing.T) {
		p, err := canteen.ParseDateRange("", "", loc)
		require.NoError(t, err)
		assert.True(t, p.Start.IsZero())
		assert.True(t, p.End.IsZero())
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := canteen.ParseDateRange("01/03/2025", "", loc)
		assert.ErrorIs(t, err, canteen.ErrValidation)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := canteen.ParseDateRange("2025-03-10", "2025-03-01", loc)
		assert.ErrorIs(t, err, canteen.ErrValidation)
	})
}
