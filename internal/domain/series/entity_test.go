package series_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandroom/bandroom-api/internal/domain/series"
)

func TestAnchorCombinesDateAndWallClock(t *testing.T) {
	ser := &series.Series{
		StartTime: "19:30",
		StartDate: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	}

	anchor, err := ser.Anchor()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 3, 19, 30, 0, 0, time.UTC), anchor)
}

func TestAnchorKeepsStartDateLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	ser := &series.Series{
		StartTime: "09:00",
		StartDate: time.Date(2025, 6, 3, 0, 0, 0, 0, loc),
	}

	anchor, err := ser.Anchor()
	require.NoError(t, err)
	assert.Equal(t, loc, anchor.Location())
	assert.Equal(t, 9, anchor.Hour())
}

func TestAnchorRejectsBadWallClock(t *testing.T) {
	for _, startTime := range []string{"", "25:00", "19:75", "evening"} {
		ser := &series.Series{
			StartTime: startTime,
			StartDate: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		}
		_, err := ser.Anchor()
		assert.Error(t, err, "start time %q", startTime)
	}
}

func TestDuration(t *testing.T) {
	ser := &series.Series{DurationMinutes: 120}
	assert.Equal(t, 2*time.Hour, ser.Duration())
}

func TestIsActive(t *testing.T) {
	assert.True(t, (&series.Series{Status: series.StatusActive}).IsActive())
	assert.False(t, (&series.Series{Status: series.StatusCancelled}).IsActive())
}
