package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestService_ComputeLengthKm tests corridor distance accumulation
func TestService_ComputeLengthKm(t *testing.T) {
	tests := []struct {
		name        string
		stations    []string
		expected    float64
		description string
	}{
		{
			name:        "FullCorridor",
			stations:    []string{"CHURCHGATE", "VIRAR"},
			expected:    60,
			description: "Churchgate to Virar is the full corridor",
		},
		{
			name:        "IntermediateStops",
			stations:    []string{"CHURCHGATE", "DADAR", "BANDRA", "ANDHERI"},
			expected:    22,
			description: "Stops along one direction sum to the end-to-end distance",
		},
		{
			name:        "ReversingPath",
			stations:    []string{"BANDRA", "CHURCHGATE", "BANDRA"},
			expected:    30,
			description: "A there-and-back run counts both legs",
		},
		{
			name:        "SingleStop",
			stations:    []string{"DADAR"},
			expected:    0,
			description: "One event covers no distance",
		},
		{
			name:        "NoEvents",
			stations:    nil,
			expected:    0,
			description: "A service without events covers no distance",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService("93002", DirectionUp, 400, tc.stations...)
			svc.ComputeLengthKm()
			assert.Equal(t, tc.expected, svc.LengthKm, tc.description)
		})
	}
}

// TestService_ComputeDurationMinutes tests first-to-last timing
func TestService_ComputeDurationMinutes(t *testing.T) {
	svc := newTestService("93002", DirectionUp, 400, "VIRAR", "BORIVALI", "CHURCHGATE")
	svc.ComputeDurationMinutes()
	assert.Equal(t, float64(20), svc.DurationMinutes)

	empty := &Service{}
	empty.ComputeDurationMinutes()
	assert.Equal(t, float64(0), empty.DurationMinutes)
}

// TestService_LastTimeAt tests the per-station time lookup used by filters
func TestService_LastTimeAt(t *testing.T) {
	svc := newTestService("93002", DirectionUp, 400, "VIRAR", "BORIVALI", "BORIVALI", "CHURCHGATE")

	tm, ok := svc.LastTimeAt("BORIVALI")
	assert.True(t, ok)
	assert.Equal(t, float64(420), tm, "the later of the two Borivali events wins")

	_, ok = svc.LastTimeAt("DADAR")
	assert.False(t, ok, "service never calls at Dadar")
}

// TestService_IDString tests id formatting for display
func TestService_IDString(t *testing.T) {
	multi := &Service{IDs: []string{"93002", "93003"}}
	assert.Equal(t, "93002,93003", multi.IDString())
	assert.Equal(t, "93002", multi.PrimaryID())

	stabling := &Service{}
	assert.Equal(t, "?", stabling.IDString())
	assert.Equal(t, "?", stabling.PrimaryID())
}

// TestNormalizeStationName tests known WTT spelling fixes
func TestNormalizeStationName(t *testing.T) {
	assert.Equal(t, "M'BAI CENTRAL(L)", NormalizeStationName("M'BAI CENTRAL (L)"))
	assert.Equal(t, "KANDIVALI", NormalizeStationName("KANDIVLI"))
	assert.Equal(t, "BANDRA", NormalizeStationName("  BANDRA  "))
}

// TestNewDirection tests direction validation
func TestNewDirection(t *testing.T) {
	d, err := NewDirection("UP")
	assert.NoError(t, err)
	assert.Equal(t, DirectionUp, d)

	_, err = NewDirection("sideways")
	assert.Error(t, err)
}
