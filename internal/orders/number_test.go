package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextOrderNumber(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		last string
		want string
	}{
		{"first of the day", "", "ORD-20260829-0001"},
		{"increments same day", "ORD-20260829-0007", "ORD-20260829-0008"},
		{"rolls past four digits", "ORD-20260829-9999", "ORD-20260829-10000"},
		{"restarts after midnight", "ORD-20260828-0042", "ORD-20260829-0001"},
		{"malformed last restarts", "garbage", "ORD-20260829-0001"},
		{"wrong prefix restarts", "XYZ-20260829-0042", "ORD-20260829-0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextOrderNumber(tt.last, now))
		})
	}
}

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	assert.NoError(t, err)

	now := time.Date(2026, 8, 29, 0, 30, 0, 0, loc)
	start := StartOfDay(now)

	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, loc), start)
	assert.Equal(t, loc, start.Location())
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusShipped))
	assert.False(t, ValidStatus(Status("teleported")))
}
