package rakeops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardi.app/cli/internal/core/timetable"
)

func makeTimetable() *timetable.Timetable {
	tt := timetable.New()

	svcA := &timetable.Service{IDs: []string{"93002"}}
	rcA := timetable.NewRakeCycle("A")
	rcA.ServicePath = []*timetable.Service{svcA}
	rcA.Rake = timetable.NewRake(0)

	svcB := &timetable.Service{IDs: []string{"94001"}, NeedsAC: true}
	rcB := timetable.NewRakeCycle("B")
	rcB.ServicePath = []*timetable.Service{svcB}
	rcB.Rake = timetable.NewRake(1)
	rcB.Rake.IsAC = true

	tt.RakeCycles = []*timetable.RakeCycle{rcA, rcB}
	tt.SuburbanServices = []*timetable.Service{svcA, svcB}
	return tt
}

// TestConvertToAC_ConvertsRakeAndServices tests the basic conversion
func TestConvertToAC_ConvertsRakeAndServices(t *testing.T) {
	tt := makeTimetable()

	result := ConvertToAC(tt, []string{"A"})

	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, []string{"A"}, result.Links)

	rcA := tt.CycleByLink("A")
	require.NotNil(t, rcA)
	assert.True(t, rcA.Rake.IsAC)
	assert.True(t, rcA.ServicePath[0].NeedsAC, "services in the link follow the rake")
}

// TestConvertToAC_SkipsAlreadyAC tests idempotence
func TestConvertToAC_SkipsAlreadyAC(t *testing.T) {
	tt := makeTimetable()

	result := ConvertToAC(tt, []string{"B"})
	assert.Equal(t, 0, result.Converted, "link B is already AC")
	assert.Empty(t, result.Links)

	// Converting A twice converts once.
	ConvertToAC(tt, []string{"A"})
	second := ConvertToAC(tt, []string{"A"})
	assert.Equal(t, 0, second.Converted)
}

// TestConvertToAC_EmptySelection tests the no-op path
func TestConvertToAC_EmptySelection(t *testing.T) {
	tt := makeTimetable()
	result := ConvertToAC(tt, nil)
	assert.Equal(t, 0, result.Converted)
	assert.NotNil(t, result.Links)
}

// TestConvertToAC_UnknownLink tests that unknown names convert nothing
func TestConvertToAC_UnknownLink(t *testing.T) {
	tt := makeTimetable()
	result := ConvertToAC(tt, []string{"ZZ"})
	assert.Equal(t, 0, result.Converted)
}

// TestDetectGaps_CountsLongIntervals tests headway gap counting
func TestDetectGaps_CountsLongIntervals(t *testing.T) {
	tt := timetable.New()
	for _, at := range []float64{400, 410, 450, 460, 530} {
		tt.EventsByStation["DADAR"] = append(tt.EventsByStation["DADAR"],
			&timetable.StationEvent{AtStation: "DADAR", AtTime: at})
	}

	tests := []struct {
		name        string
		threshold   float64
		window      [2]float64
		expected    int
		description string
	}{
		{
			name:        "TwoGapsOverThirty",
			threshold:   30,
			window:      [2]float64{165, 1605},
			expected:    2,
			description: "410->450 and 460->530 exceed 30 minutes",
		},
		{
			name:        "OneGapOverFifty",
			threshold:   50,
			window:      [2]float64{165, 1605},
			expected:    1,
			description: "Only 460->530 exceeds 50 minutes",
		},
		{
			name:        "WindowExcludesLateEvents",
			threshold:   30,
			window:      [2]float64{165, 470},
			expected:    1,
			description: "Dropping the 530 event leaves one long interval",
		},
		{
			name:        "NoEventsInWindow",
			threshold:   30,
			window:      [2]float64{165, 200},
			expected:    0,
			description: "An empty window has no gaps",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gaps := DetectGaps(tt, tc.threshold, []string{"DADAR"}, tc.window)
			assert.Equal(t, tc.expected, gaps["DADAR"], tc.description)
		})
	}
}

// TestDetectGaps_UnknownStation tests stations without any events
func TestDetectGaps_UnknownStation(t *testing.T) {
	tt := timetable.New()
	gaps := DetectGaps(tt, 15, []string{"BANDRA"}, [2]float64{165, 1605})
	assert.Equal(t, 0, gaps["BANDRA"])
}
