package filtering

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"gardi.app/cli/internal/core/timetable"
)

// Mode selects which entity class a query filters: whole rake links,
// individual services, or per-station events.
type Mode string

const (
	ModeRakeLink Mode = "rakelink"
	ModeService  Mode = "service"
	ModeStation  Mode = "station"
)

// NewMode validates a mode string.
func NewMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeRakeLink:
		return ModeRakeLink, nil
	case ModeService:
		return ModeService, nil
	case ModeStation:
		return ModeStation, nil
	default:
		return "", fmt.Errorf("invalid filter mode: %q", s)
	}
}

// ACMode narrows results to air-conditioned or conventional rakes.
type ACMode string

const (
	ACAll   ACMode = "all"
	ACOnly  ACMode = "ac"
	ACNonAC ACMode = "nonac"
)

// NewACMode validates an AC mode string. Empty input means no constraint.
func NewACMode(s string) (ACMode, error) {
	switch ACMode(strings.ToLower(s)) {
	case "", ACAll:
		return ACAll, nil
	case ACOnly:
		return ACOnly, nil
	case ACNonAC:
		return ACNonAC, nil
	default:
		return "", fmt.Errorf("invalid AC mode: %q", s)
	}
}

// TimeWindow is a closed interval in minutes since midnight.
type TimeWindow struct {
	Start float64
	End   float64
}

// FullDay covers the whole operating day.
func FullDay() TimeWindow {
	return TimeWindow{Start: timetable.DayStartMinutes, End: timetable.DayEndMinutes}
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t float64) bool {
	return w.Start <= t && t <= w.End
}

// Query describes one filter run. Zero-value fields mean "no constraint".
type Query struct {
	Mode Mode

	StartStation   string
	EndStation     string
	PassingThrough []string
	TimeWindow     TimeWindow

	AC         ACMode
	Directions []timetable.Direction

	SelectedLinks    []string
	SelectedServices []string
}

// NewQuery returns a rake-link query over the full day.
func NewQuery() Query {
	return Query{
		Mode:       ModeRakeLink,
		TimeWindow: FullDay(),
		AC:         ACAll,
	}
}

// String renders the query for text reports.
func (q Query) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("mode=%s", q.Mode))
	if q.StartStation != "" {
		parts = append(parts, fmt.Sprintf("start=%s", q.StartStation))
	}
	if q.EndStation != "" {
		parts = append(parts, fmt.Sprintf("end=%s", q.EndStation))
	}
	if len(q.PassingThrough) > 0 {
		parts = append(parts, fmt.Sprintf("via=%s", strings.Join(q.PassingThrough, ",")))
	}
	parts = append(parts, fmt.Sprintf("window=%s-%s",
		timetable.FormatMinutes(q.TimeWindow.Start), timetable.FormatMinutes(q.TimeWindow.End)))
	if q.AC != "" && q.AC != ACAll {
		parts = append(parts, fmt.Sprintf("ac=%s", q.AC))
	}
	if len(q.Directions) > 0 {
		dirs := make([]string, len(q.Directions))
		for i, d := range q.Directions {
			dirs[i] = d.String()
		}
		parts = append(parts, fmt.Sprintf("dir=%s", strings.Join(dirs, ",")))
	}
	return "<Query " + strings.Join(parts, " ") + ">"
}

// Statistics tracks how many entities each constraint hid during a run.
type Statistics struct {
	TotalEvaluated  int `json:"total_evaluated"`
	TotalRendered   int `json:"total_rendered"`
	TotalHidden     int `json:"total_hidden"`
	TerminalHidden  int `json:"terminal_hidden"`
	PassingHidden   int `json:"passing_hidden"`
	ACHidden        int `json:"ac_hidden"`
	DirectionHidden int `json:"direction_hidden"`
	EmptyHidden     int `json:"empty_hidden"`
}

// Engine applies queries to a timetable by setting render flags on rake
// cycles, services, and station events.
type Engine struct {
	stats   Statistics
	statsMu sync.Mutex // Protects statistics updates
}

// NewEngine creates a filter engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ResetAllFlags marks every cycle, service, and event renderable. Services
// without events stay hidden; there is nothing to draw for them.
func (e *Engine) ResetAllFlags(tt *timetable.Timetable) {
	for _, rc := range tt.RakeCycles {
		rc.Render = true
	}
	for _, svc := range tt.SuburbanServices {
		if len(svc.Events) == 0 {
			svc.Render = false
			continue
		}
		svc.Render = true
		for _, ev := range svc.Events {
			ev.Render = true
		}
	}
}

// Apply runs the query against the timetable, dispatching on mode.
func (e *Engine) Apply(tt *timetable.Timetable, q Query) {
	e.statsMu.Lock()
	e.stats = Statistics{}
	e.statsMu.Unlock()

	switch q.Mode {
	case ModeService:
		e.applyServiceFilters(tt, q)
	case ModeStation:
		e.applyStationFilters(tt, q)
	default:
		e.applyLinkFilters(tt, q)
	}
}

// GetStatistics returns the statistics of the most recent Apply run.
func (e *Engine) GetStatistics() Statistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *Engine) count(f func(s *Statistics)) {
	e.statsMu.Lock()
	f(&e.stats)
	e.statsMu.Unlock()
}

// applyLinkFilters filters whole rake cycles on terminal stations, passing
// stations, and AC mode.
func (e *Engine) applyLinkFilters(tt *timetable.Timetable, q Query) {
	e.applyTerminalStationFilters(tt, q.StartStation, q.EndStation)
	e.applyPassingThroughFilter(tt, q)
	e.applyACFilter(tt, q)

	visible := 0
	for _, rc := range tt.RakeCycles {
		if rc.Render {
			visible++
		}
	}
	e.count(func(s *Statistics) {
		s.TotalEvaluated = len(tt.RakeCycles)
		s.TotalRendered = visible
		s.TotalHidden = len(tt.RakeCycles) - visible
	})
	log.Debug("link filter applied", "visible", visible, "total", len(tt.RakeCycles))
}

func (e *Engine) applyTerminalStationFilters(tt *timetable.Timetable, start, end string) {
	start = strings.ToUpper(strings.TrimSpace(start))
	end = strings.ToUpper(strings.TrimSpace(end))

	for _, rc := range tt.RakeCycles {
		rc.Render = true
		if len(rc.ServicePath) == 0 {
			rc.Render = false
			e.count(func(s *Statistics) { s.EmptyHidden++ })
			continue
		}
		if start != "" && rc.Start() != start {
			rc.Render = false
			e.count(func(s *Statistics) { s.TerminalHidden++ })
		}
		if end != "" && rc.End() != end {
			rc.Render = false
			e.count(func(s *Statistics) { s.TerminalHidden++ })
		}
	}
}

// applyPassingThroughFilter keeps cycles that have an event at every selected
// station inside the query's time window.
func (e *Engine) applyPassingThroughFilter(tt *timetable.Timetable, q Query) {
	if len(q.PassingThrough) == 0 {
		return
	}
	selected := make(map[string]bool, len(q.PassingThrough))
	for _, st := range q.PassingThrough {
		selected[strings.ToUpper(strings.TrimSpace(st))] = true
	}

	for _, rc := range tt.RakeCycles {
		if len(rc.ServicePath) == 0 {
			rc.Render = false
			continue
		}

		seen := make(map[string]bool)
		for _, svc := range rc.ServicePath {
			for _, ev := range svc.Events {
				if !q.TimeWindow.Contains(ev.AtTime) {
					continue
				}
				st := strings.ToUpper(strings.TrimSpace(ev.AtStation))
				if selected[st] {
					seen[st] = true
				}
			}
		}

		if len(seen) < len(selected) {
			if rc.Render {
				e.count(func(s *Statistics) { s.PassingHidden++ })
			}
			rc.Render = false
		}
	}
}

func (e *Engine) applyACFilter(tt *timetable.Timetable, q Query) {
	if q.AC == "" || q.AC == ACAll {
		return
	}
	for _, rc := range tt.RakeCycles {
		if rc.Rake == nil {
			rc.Render = false
			continue
		}
		hide := (q.AC == ACOnly && !rc.Rake.IsAC) || (q.AC == ACNonAC && rc.Rake.IsAC)
		if hide {
			if rc.Render {
				e.count(func(s *Statistics) { s.ACHidden++ })
			}
			rc.Render = false
		}
	}
}

// applyServiceFilters filters individual services on direction, AC, terminal
// stations, and passing stations, then lifts visibility to parent cycles.
func (e *Engine) applyServiceFilters(tt *timetable.Timetable, q Query) {
	for _, svc := range tt.SuburbanServices {
		svc.Render = true
		if len(svc.Events) == 0 {
			svc.Render = false
			e.count(func(s *Statistics) { s.EmptyHidden++ })
			continue
		}
		for _, ev := range svc.Events {
			ev.Render = true
		}

		e.checkDirectionConstraint(svc, q)
		e.checkACConstraint(svc, q)
		e.checkStartStationConstraint(svc, q)
		e.checkEndStationConstraint(svc, q)
		e.checkPassingThroughConstraint(svc, q)
	}

	// A cycle stays visible if any of its services survived.
	for _, rc := range tt.RakeCycles {
		rc.Render = false
		for _, svc := range rc.ServicePath {
			if svc.Render {
				rc.Render = true
				break
			}
		}
	}

	visible := 0
	for _, svc := range tt.SuburbanServices {
		if svc.Render {
			visible++
		}
	}
	e.count(func(s *Statistics) {
		s.TotalEvaluated = len(tt.SuburbanServices)
		s.TotalRendered = visible
		s.TotalHidden = len(tt.SuburbanServices) - visible
	})
	log.Debug("service filter applied", "visible", visible, "total", len(tt.SuburbanServices))
}

func (e *Engine) checkDirectionConstraint(svc *timetable.Service, q Query) {
	if len(q.Directions) == 0 || !svc.Render {
		return
	}
	for _, d := range q.Directions {
		if svc.Direction == d {
			return
		}
	}
	svc.Render = false
	e.count(func(s *Statistics) { s.DirectionHidden++ })
}

func (e *Engine) checkACConstraint(svc *timetable.Service, q Query) {
	if q.AC == "" || q.AC == ACAll || !svc.Render {
		return
	}
	if (q.AC == ACOnly && !svc.NeedsAC) || (q.AC == ACNonAC && svc.NeedsAC) {
		svc.Render = false
		e.count(func(s *Statistics) { s.ACHidden++ })
	}
}

func (e *Engine) checkStartStationConstraint(svc *timetable.Service, q Query) {
	if q.StartStation == "" || !svc.Render {
		return
	}
	first := svc.FirstEvent()
	want := strings.ToUpper(strings.TrimSpace(q.StartStation))
	if first.AtStation != want || !q.TimeWindow.Contains(first.AtTime) {
		svc.Render = false
		e.count(func(s *Statistics) { s.TerminalHidden++ })
	}
}

func (e *Engine) checkEndStationConstraint(svc *timetable.Service, q Query) {
	if q.EndStation == "" || !svc.Render {
		return
	}
	last := svc.LastEvent()
	want := strings.ToUpper(strings.TrimSpace(q.EndStation))
	if last.AtStation != want || !q.TimeWindow.Contains(last.AtTime) {
		svc.Render = false
		e.count(func(s *Statistics) { s.TerminalHidden++ })
	}
}

func (e *Engine) checkPassingThroughConstraint(svc *timetable.Service, q Query) {
	if len(q.PassingThrough) == 0 || !svc.Render {
		return
	}
	for _, st := range q.PassingThrough {
		want := strings.ToUpper(strings.TrimSpace(st))
		t, ok := svc.LastTimeAt(want)
		if !ok || !q.TimeWindow.Contains(t) {
			svc.Render = false
			e.count(func(s *Statistics) { s.PassingHidden++ })
			return
		}
	}
}

// applyStationFilters keeps every cycle and service visible but hides
// individual events outside the time window, then applies the AC constraint
// per service.
func (e *Engine) applyStationFilters(tt *timetable.Timetable, q Query) {
	for _, rc := range tt.RakeCycles {
		rc.Render = true
	}

	evaluated, hidden := 0, 0
	for _, svc := range tt.SuburbanServices {
		svc.Render = true
		if len(svc.Events) == 0 {
			svc.Render = false
			e.count(func(s *Statistics) { s.EmptyHidden++ })
			continue
		}

		for _, ev := range svc.Events {
			evaluated++
			ev.Render = q.TimeWindow.Contains(ev.AtTime)
			if !ev.Render {
				hidden++
			}
		}
		e.checkACConstraint(svc, q)
	}

	e.count(func(s *Statistics) {
		s.TotalEvaluated = evaluated
		s.TotalRendered = evaluated - hidden
		s.TotalHidden = hidden
	})
	log.Debug("station filter applied", "events", evaluated, "hidden", hidden)
}
