package timetable

import "fmt"

// DefaultRakeSize is the car count assumed when the timetable column does not
// specify one.
const DefaultRakeSize = 12

// Rake is a physical trainset.
type Rake struct {
	ID       int
	IsAC     bool
	RakeSize int
}

// NewRake creates a rake with the default car count.
func NewRake(id int) *Rake {
	return &Rake{ID: id, RakeSize: DefaultRakeSize}
}

func (r *Rake) String() string {
	kind := "NON-AC"
	if r.IsAC {
		kind = "AC"
	}
	return fmt.Sprintf("<Rake %d (%s, %d-car)>", r.ID, kind, r.RakeSize)
}

// RakeCycle is a named rake link: the ordered set of services one physical
// rake works over the operating day. ServiceIDs comes from the summary
// workbook; ServicePath is the resolved chain of WTT services.
type RakeCycle struct {
	LinkName string
	Status   LinkStatus

	ServiceIDs   []string
	UndefinedIDs []string

	ServicePath []*Service
	Rake        *Rake

	Render          bool
	LengthKm        float64
	DurationMinutes float64
}

// NewRakeCycle creates an empty, valid cycle for the named link.
func NewRakeCycle(linkName string) *RakeCycle {
	return &RakeCycle{
		LinkName: linkName,
		Status:   LinkValid,
		Render:   true,
	}
}

// Start returns the first station of the resolved path, or "?" when the path
// is unresolved.
func (rc *RakeCycle) Start() string {
	if len(rc.ServicePath) == 0 {
		return "?"
	}
	if ev := rc.ServicePath[0].FirstEvent(); ev != nil {
		return ev.AtStation
	}
	return "?"
}

// End returns the last station of the resolved path, or "?".
func (rc *RakeCycle) End() string {
	if len(rc.ServicePath) == 0 {
		return "?"
	}
	if ev := rc.ServicePath[len(rc.ServicePath)-1].LastEvent(); ev != nil {
		return ev.AtStation
	}
	return "?"
}

func (rc *RakeCycle) String() string {
	return fmt.Sprintf("<RakeCycle %s (%d services, %.0fKm) %s->%s>",
		rc.LinkName, len(rc.ServicePath), rc.LengthKm, rc.Start(), rc.End())
}
