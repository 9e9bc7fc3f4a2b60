package timetable

import (
	"fmt"
	"math"
	"strings"
)

// StationEvent is a single arrival or departure of a service at a station.
// AtTime is minutes since midnight on the operating day.
type StationEvent struct {
	AtStation string
	AtTime    float64
	Kind      EventKind
	Render    bool
}

// Service is everything extractable from a single timetable column. A column
// can carry multiple service ids when a run changes identity mid-journey.
type Service struct {
	Type ServiceType
	Zone ServiceZone

	IDs       []string
	Direction Direction
	Line      Line

	RakeLinkName string
	RakeSizeReq  int
	NeedsAC      bool

	// LinkedTo is the id of the service this rake works next, taken from the
	// "Reversed as" row of the sheet. Empty when the column has no onward link.
	LinkedTo string

	InitStation  *Station
	FinalStation *Station

	Events []*StationEvent

	Render          bool
	LengthKm        float64
	DurationMinutes float64
}

// PrimaryID returns the first id of the service, or "?" for stabling columns
// that carry none.
func (s *Service) PrimaryID() string {
	if len(s.IDs) == 0 {
		return "?"
	}
	return s.IDs[0]
}

// IDString joins all ids of the service for display.
func (s *Service) IDString() string {
	if len(s.IDs) == 0 {
		return "?"
	}
	return strings.Join(s.IDs, ",")
}

func (s *Service) String() string {
	ac := "NON-AC"
	if s.NeedsAC {
		ac = "AC"
	}
	size := "?"
	if s.RakeSizeReq > 0 {
		size = fmt.Sprintf("%d-CAR", s.RakeSizeReq)
	}
	init, final := "?", "?"
	if s.InitStation != nil {
		init = s.InitStation.Name
	}
	if s.FinalStation != nil {
		final = s.FinalStation.Name
	}
	return fmt.Sprintf("<Service %s (%s, %s, %s) %s->%s>",
		s.IDString(), s.Direction.String(), ac, size, init, final)
}

// ComputeLengthKm sums the corridor distance between consecutive events.
func (s *Service) ComputeLengthKm() {
	if len(s.Events) == 0 {
		s.LengthKm = 0
		return
	}
	var total float64
	prev, ok := DistanceMap[s.Events[0].AtStation]
	if !ok {
		s.LengthKm = 0
		return
	}
	for _, ev := range s.Events[1:] {
		km, ok := DistanceMap[ev.AtStation]
		if !ok {
			continue
		}
		total += math.Abs(prev - km)
		prev = km
	}
	s.LengthKm = total
}

// ComputeDurationMinutes measures first event to last event.
func (s *Service) ComputeDurationMinutes() {
	if len(s.Events) == 0 {
		s.DurationMinutes = 0
		return
	}
	s.DurationMinutes = s.Events[len(s.Events)-1].AtTime - s.Events[0].AtTime
}

// FirstEvent returns the opening event, or nil for empty services.
func (s *Service) FirstEvent() *StationEvent {
	if len(s.Events) == 0 {
		return nil
	}
	return s.Events[0]
}

// LastEvent returns the closing event, or nil for empty services.
func (s *Service) LastEvent() *StationEvent {
	if len(s.Events) == 0 {
		return nil
	}
	return s.Events[len(s.Events)-1]
}

// LastTimeAt returns the latest event time recorded at the named station and
// whether the service calls there at all.
func (s *Service) LastTimeAt(station string) (float64, bool) {
	var t float64
	found := false
	for _, ev := range s.Events {
		if ev.AtStation == station {
			t = ev.AtTime
			found = true
		}
	}
	return t, found
}
