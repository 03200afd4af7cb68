package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbeckmann/matchplan/internal/interval"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildMatrix(t *testing.T) {
	windows := map[time.Weekday]interval.Interval{
		time.Saturday: interval.MustParse("10:00-14:00"),
	}

	// 2026-09-05 is a Saturday, 2026-09-06 a Sunday without a window.
	slots := BuildMatrix(windows, day(2026, time.September, 5), day(2026, time.September, 6), 30, 60)

	require.Len(t, slots, 7, "the trailing 13:30 slot cannot fit a full match")
	assert.Equal(t, "2026-09-05 10:00", slots[0].Key())
	assert.Equal(t, "2026-09-05 13:00", slots[6].Key())
}

func TestBuildMatrixSpansWeeks(t *testing.T) {
	windows := map[time.Weekday]interval.Interval{
		time.Saturday: interval.MustParse("10:00-12:00"),
		time.Sunday:   interval.MustParse("12:00-13:00"),
	}

	slots := BuildMatrix(windows, day(2026, time.September, 5), day(2026, time.September, 13), 60, 60)

	// Two Saturdays with two slots each, two Sundays with one slot each.
	require.Len(t, slots, 6)
	assert.Equal(t, "2026-09-05 10:00", slots[0].Key())
	assert.Equal(t, "2026-09-06 12:00", slots[2].Key())
	assert.Equal(t, "2026-09-13 12:00", slots[5].Key())

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].At().Before(slots[i].At()), "matrix is ordered by instant")
	}
}

func TestBuildMatrixEmptyWindow(t *testing.T) {
	slots := BuildMatrix(nil, day(2026, time.September, 5), day(2026, time.September, 30), 30, 60)
	assert.Empty(t, slots)
}

func TestSlotAt(t *testing.T) {
	s := Slot{Date: day(2026, time.September, 5), Start: 845}

	assert.Equal(t, time.Date(2026, time.September, 5, 14, 5, 0, 0, time.UTC), s.At())
	assert.Equal(t, "14:05", s.Clock())
	assert.Equal(t, "2026-09-05 14:05", s.Key())
}
