package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthBounds(t *testing.T) {
	first, next := MonthBounds(time.Date(2026, time.February, 14, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), next)

	// December rolls over into the next year
	first, next = MonthBounds(time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), next)
}

func TestMonthBoundsNormalizesZone(t *testing.T) {
	// 2026-03-01 08:00 +10 is 2026-02-28 22:00 UTC, so the bounds are February's
	loc := time.FixedZone("AEST", 10*3600)
	first, next := MonthBounds(time.Date(2026, time.March, 1, 8, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), next)
}

func TestSamePeriod(t *testing.T) {
	jan1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2026, time.January, 31, 23, 59, 59, 0, time.UTC)
	feb1 := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, SamePeriod(jan1, jan31))
	assert.False(t, SamePeriod(jan31, feb1))

	// Same month of a different year is a different period
	assert.False(t, SamePeriod(jan1, jan1.AddDate(1, 0, 0)))
}
