package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextWeekdayAt(t *testing.T) {
	loc := time.FixedZone("COT", -5*3600)

	// 2024-03-06 是星期三
	wed := time.Date(2024, 3, 6, 10, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 11, 3, 0, 0, 0, loc), nextWeekdayAt(wed, time.Monday, 3))

	monEarly := time.Date(2024, 3, 11, 2, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 11, 3, 0, 0, 0, loc), nextWeekdayAt(monEarly, time.Monday, 3))

	monLate := time.Date(2024, 3, 11, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 18, 3, 0, 0, 0, loc), nextWeekdayAt(monLate, time.Monday, 3))
}
