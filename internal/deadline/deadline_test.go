package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"just started", start, Active},
		{"within duration", start.Add(59 * time.Minute), Active},
		{"inside grace", start.Add(61 * time.Minute), Active},
		{"exactly at boundary", start.Add(62 * time.Minute), Active},
		{"one nanosecond late", start.Add(62*time.Minute + time.Nanosecond), Expired},
		{"hours late", start.Add(5 * time.Hour), Expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(start, 60, Grace, tt.now))
		})
	}
}

func TestCheckZeroDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, Active, Check(start, 0, Grace, start.Add(time.Minute)))
	assert.Equal(t, Expired, Check(start, 0, 0, start.Add(time.Second)))
}

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 12*time.Minute, Remaining(start, 10, Grace, start))
	assert.Equal(t, time.Duration(0), Remaining(start, 10, Grace, start.Add(time.Hour)))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ACTIVE", Active.String())
	assert.Equal(t, "EXPIRED", Expired.String())
}
