// Package rakeops holds what-if operations over a parsed timetable:
// converting rake links to AC stock and finding headway gaps at stations.
package rakeops

import (
	"sort"

	"github.com/charmbracelet/log"

	"gardi.app/cli/internal/core/timetable"
)

// ConversionResult reports the outcome of an AC conversion.
type ConversionResult struct {
	Converted int      `json:"converted"`
	Links     []string `json:"links"`
}

// ConvertToAC converts the named rake links to AC stock, updating both the
// rake and every service in the link's path. Links that are already AC are
// skipped; the operation is idempotent.
func ConvertToAC(tt *timetable.Timetable, linkNames []string) ConversionResult {
	if len(linkNames) == 0 {
		return ConversionResult{Links: []string{}}
	}

	selected := make(map[string]bool, len(linkNames))
	for _, name := range linkNames {
		selected[name] = true
	}

	converted := []string{}
	for _, rc := range tt.RakeCycles {
		if !selected[rc.LinkName] {
			continue
		}
		if rc.Rake != nil && rc.Rake.IsAC {
			continue
		}

		if rc.Rake != nil {
			rc.Rake.IsAC = true
		}
		for _, svc := range rc.ServicePath {
			svc.NeedsAC = true
		}
		converted = append(converted, rc.LinkName)
	}

	log.Debug("converted rake links to AC", "requested", len(linkNames), "converted", len(converted))
	return ConversionResult{Converted: len(converted), Links: converted}
}

// StationGaps is the gap count per station, keyed by station name.
type StationGaps map[string]int

// DetectGaps counts, per station, the number of consecutive-event intervals
// longer than thresholdMinutes among events inside the given time window.
// Stations with no events in the window report zero gaps.
func DetectGaps(tt *timetable.Timetable, thresholdMinutes float64, stations []string, window [2]float64) StationGaps {
	gaps := make(StationGaps, len(stations))
	lower, upper := window[0], window[1]

	for _, stn := range stations {
		events := tt.EventsByStation[stn]

		times := make([]float64, 0, len(events))
		for _, ev := range events {
			if lower <= ev.AtTime && ev.AtTime <= upper {
				times = append(times, ev.AtTime)
			}
		}
		if len(times) == 0 {
			gaps[stn] = 0
			continue
		}
		sort.Float64s(times)

		count := 0
		for i := 1; i < len(times); i++ {
			if times[i]-times[i-1] > thresholdMinutes {
				count++
			}
		}
		gaps[stn] = count
	}

	return gaps
}
