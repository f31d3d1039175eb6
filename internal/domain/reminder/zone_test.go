package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneRoundTrip(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
	}{
		{name: "utc", at: time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)},
		{name: "named zone", at: time.Date(2030, 7, 1, 8, 0, 0, 0, berlin)},
		{name: "fixed offset", at: time.Date(2030, 7, 1, 8, 0, 0, 0, time.FixedZone("custom", -3*3600))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone, offset := ZoneOf(tt.at)
			// Stores hand back the instant in UTC.
			restored := tt.at.UTC().In(RestoreZone(zone, offset))
			assert.True(t, restored.Equal(tt.at))
			assert.Equal(t, tt.at.Hour(), restored.Hour())
			assert.Equal(t, tt.at.Weekday(), restored.Weekday())
		})
	}
}
