package timetable

import "fmt"

// Direction indicates which way a service runs along the corridor.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// NewDirection validates and normalizes a direction string.
func NewDirection(s string) (Direction, error) {
	switch s {
	case "up", "UP", "Up":
		return DirectionUp, nil
	case "down", "DOWN", "Down":
		return DirectionDown, nil
	default:
		return "", fmt.Errorf("invalid direction: %q", s)
	}
}

// String returns the direction in upper case for display.
func (d Direction) String() string {
	if d == DirectionUp {
		return "UP"
	}
	return "DOWN"
}

// ServiceType distinguishes regular revenue services from stabling moves and
// columns carrying more than one service id.
type ServiceType string

const (
	ServiceRegular  ServiceType = "regular"
	ServiceStabling ServiceType = "stabling"
	ServiceMulti    ServiceType = "multi-service"
)

// ServiceZone marks which railway zone operates the service.
type ServiceZone string

const (
	ZoneSuburban ServiceZone = "suburban"
	ZoneCentral  ServiceZone = "central"
)

// Line is the track a service runs on: through (fast) or local (slow).
// Services whose markers switch mid-journey are semi-fast.
type Line string

const (
	LineThrough  Line = "through/fast"
	LineLocal    Line = "local/slow"
	LineSemiFast Line = "semi-fast"
	LineUnknown  Line = "unknown"
)

// DisplayName returns the operator-facing label for the line.
func (l Line) DisplayName() string {
	switch l {
	case LineThrough:
		return "Fast"
	case LineLocal:
		return "Slow"
	case LineSemiFast:
		return "Semi-Fast"
	default:
		return "Unknown"
	}
}

// EventKind distinguishes arrivals from departures at a station.
type EventKind string

const (
	EventArrival   EventKind = "arrival"
	EventDeparture EventKind = "departure"
)

// LinkStatus records whether a rake link survived reconciliation against the
// detailed timetable.
type LinkStatus string

const (
	LinkValid   LinkStatus = "valid"
	LinkInvalid LinkStatus = "invalid"
)
