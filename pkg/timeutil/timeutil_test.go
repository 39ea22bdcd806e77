package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinuteOfDay_ConvertsToLocalZone(t *testing.T) {
	// 00:30 UTC is 09:30 in Seoul.
	utc := time.Date(2024, 3, 4, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, 9*60+30, MinuteOfDay(utc, SeoulTZ))
	assert.Equal(t, 30, MinuteOfDay(utc, time.UTC))
}

func TestFormatAndParseClock(t *testing.T) {
	assert.Equal(t, "08:00", FormatClock(480))
	assert.Equal(t, "22:00", FormatClock(1320))
	assert.Equal(t, "16:40", FormatClock(1000))

	m, err := ParseClock("16:40")
	require.NoError(t, err)
	assert.Equal(t, 1000, m)

	_, err = ParseClock("24:00")
	assert.Error(t, err)
	_, err = ParseClock("nope")
	assert.Error(t, err)
}

func TestAtMinute_UsesLocalDate(t *testing.T) {
	// 2024-03-04 20:00 UTC is already 2024-03-05 05:00 in Seoul.
	utc := time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)
	at := AtMinute(utc, 600, SeoulTZ)

	assert.Equal(t, 5, at.Day())
	assert.Equal(t, 10, at.Hour())
	assert.Equal(t, 0, at.Minute())
}

func TestIsSameDay(t *testing.T) {
	a := time.Date(2024, 3, 4, 14, 59, 0, 0, time.UTC) // 23:59 KST
	b := time.Date(2024, 3, 4, 15, 1, 0, 0, time.UTC)  // 00:01 KST next day
	assert.False(t, IsSameDay(a, b, SeoulTZ))
	assert.True(t, IsSameDay(a, b, time.UTC))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", FormatDuration(20*time.Second))
	assert.Equal(t, "45m", FormatDuration(45*time.Minute))
	assert.Equal(t, "1h05m", FormatDuration(65*time.Minute+10*time.Second))
}

func TestLoadLocation_FallsBack(t *testing.T) {
	assert.Equal(t, SeoulTZ, LoadLocation(""))
	assert.Equal(t, SeoulTZ, LoadLocation("Not/AZone"))
}
