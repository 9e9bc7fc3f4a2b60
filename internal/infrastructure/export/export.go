// Package export builds the tabular and downloadable views of a filtered
// timetable: the service and rake-link tables shown in the browser, the
// plain-text results report, and the spreadsheet download.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"gardi.app/cli/internal/core/filtering"
	"gardi.app/cli/internal/core/timetable"
)

// ServiceRow is one rendered service in the service table.
type ServiceRow struct {
	ID           string `json:"id"`
	ServiceID    string `json:"service_id"`
	Direction    string `json:"direction"`
	IsAC         string `json:"is_ac"`
	Cars         string `json:"cars"`
	StartStation string `json:"start_station"`
	EndStation   string `json:"end_station"`
	StartTime    string `json:"start_time"`
	RakeLink     string `json:"rake_link"`
}

// RakeRow is one rendered rake link in the rake table.
type RakeRow struct {
	ID        string `json:"id"`
	LinkName  string `json:"linkname"`
	Cars      int    `json:"cars"`
	IsAC      string `json:"is_ac"`
	LengthKm  int    `json:"length_km"`
	Start     string `json:"start"`
	End       string `json:"end"`
	NServices int    `json:"n_services"`
}

// Builder assembles export views from a timetable.
type Builder struct{}

// NewBuilder creates an export builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// ServiceTable lists every rendered service with its rake link.
func (b *Builder) ServiceTable(tt *timetable.Timetable) []ServiceRow {
	rows := make([]ServiceRow, 0, len(tt.SuburbanServices))
	for _, svc := range tt.SuburbanServices {
		if !svc.Render || len(svc.Events) == 0 {
			continue
		}

		rakeLink := "?"
		if rc := linkOf(tt, svc); rc != nil {
			rakeLink = rc.LinkName
		}

		cars := "?"
		if svc.RakeSizeReq > 0 {
			cars = fmt.Sprintf("%d", svc.RakeSizeReq)
		}

		rows = append(rows, ServiceRow{
			ID:           svc.IDString(),
			ServiceID:    svc.IDString(),
			Direction:    svc.Direction.String(),
			IsAC:         acLabel(svc.NeedsAC),
			Cars:         cars,
			StartStation: stationName(svc.InitStation),
			EndStation:   stationName(svc.FinalStation),
			StartTime:    timetable.FormatMinutes(svc.FirstEvent().AtTime),
			RakeLink:     rakeLink,
		})
	}
	return rows
}

// RakeTable lists every rendered rake link that has a rake assigned.
func (b *Builder) RakeTable(tt *timetable.Timetable) []RakeRow {
	rows := make([]RakeRow, 0, len(tt.RakeCycles))
	for _, rc := range tt.RakeCycles {
		if !rc.Render || rc.Rake == nil {
			continue
		}
		rows = append(rows, RakeRow{
			ID:        rc.LinkName,
			LinkName:  rc.LinkName,
			Cars:      rc.Rake.RakeSize,
			IsAC:      acLabel(rc.Rake.IsAC),
			LengthKm:  int(rc.LengthKm),
			Start:     rc.Start(),
			End:       rc.End(),
			NServices: len(rc.ServicePath),
		})
	}
	return rows
}

// WriteXLSX writes the rendered services as a spreadsheet.
func (b *Builder) WriteXLSX(w io.Writer, tt *timetable.Timetable) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Service ID", "Start Time", "Source", "Destination", "Direction", "Line"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	row := 2
	for _, svc := range tt.SuburbanServices {
		if !svc.Render {
			continue
		}

		depTime := "--:--"
		if ev := svc.FirstEvent(); ev != nil {
			depTime = timetable.FormatMinutes(ev.AtTime)
		}

		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []interface{}{
			strings.Join(svc.IDs, ", "),
			depTime,
			stationName(svc.InitStation),
			stationName(svc.FinalStation),
			svc.Direction.String(),
			svc.Line.DisplayName(),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row for service %s: %w", svc.IDString(), err)
		}
		row++
	}

	log.Debug("exported services to spreadsheet", "rows", row-2)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

// ResultsText renders the plain-text report for the current filter state:
// parsing inconsistencies, then the plotted links or rendered services
// depending on the query mode.
func (b *Builder) ResultsText(tt *timetable.Timetable, q filtering.Query) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Filter Query: %s\n\n", q)

	sb.WriteString("=== Rake Link Inconsistencies ===\n")
	if len(tt.ConflictingLinks) > 0 {
		for _, c := range tt.ConflictingLinks {
			fmt.Fprintf(&sb, "Link %s\n", c.Cycle.LinkName)
			fmt.Fprintf(&sb, "  Summary: %v\n", c.Cycle.ServiceIDs)
			fmt.Fprintf(&sb, "  WTT:     %v\n---\n", c.WTTPath)
		}
	} else {
		sb.WriteString("  No inconsistencies found.\n")
	}

	switch q.Mode {
	case filtering.ModeRakeLink:
		sb.WriteString("\n=== Rake Links Plotted (RakeLink Filter) ===\n")
		any := false
		for _, rc := range tt.RakeCycles {
			if !rc.Render {
				continue
			}
			any = true
			fmt.Fprintf(&sb, "%s\n", rc)
			fmt.Fprintf(&sb, "Services: %v\n", rc.ServiceIDs)
		}
		if !any {
			sb.WriteString("  No rake links matched the filter criteria.\n")
		}

	case filtering.ModeService:
		sb.WriteString("\n=== Rake Links with Rendered Services (Service Filter) ===\n")
		any := false
		for _, rc := range tt.RakeCycles {
			if !rc.Render {
				continue
			}
			var rendered []*timetable.Service
			for _, svc := range rc.ServicePath {
				if svc.Render {
					rendered = append(rendered, svc)
				}
			}
			if len(rendered) == 0 {
				continue
			}
			any = true
			fmt.Fprintf(&sb, "\n%s\n", rc)
			fmt.Fprintf(&sb, "  Rendered Services (%d/%d):\n", len(rendered), len(rc.ServicePath))
			for _, svc := range rendered {
				fmt.Fprintf(&sb, "    %s\n", svc)
			}
		}
		if !any {
			sb.WriteString("  No services matched the filter criteria.\n")
		}

		if len(q.PassingThrough) > 0 {
			b.writePassingThrough(&sb, tt, q)
		}
	}

	return sb.String()
}

// writePassingThrough lists, per selected station, when each rendered
// service passes it, sorted by time with services that never reach the
// station last.
func (b *Builder) writePassingThrough(sb *strings.Builder, tt *timetable.Timetable, q filtering.Query) {
	sb.WriteString("\n=== Passing Through Times (Grouped by Station, Sorted by Time) ===\n")

	var rendered []*timetable.Service
	for _, svc := range tt.SuburbanServices {
		if svc.Render {
			rendered = append(rendered, svc)
		}
	}
	if len(rendered) == 0 {
		sb.WriteString("  No services matched the filter criteria.\n\n")
		return
	}

	type entry struct {
		id      string
		at      float64
		reached bool
	}

	for _, raw := range q.PassingThrough {
		station := strings.ToUpper(raw)
		entries := make([]entry, 0, len(rendered))
		for _, svc := range rendered {
			if t, ok := svc.LastTimeAt(station); ok {
				entries = append(entries, entry{id: svc.PrimaryID(), at: t, reached: true})
			} else {
				entries = append(entries, entry{id: svc.PrimaryID()})
			}
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].reached != entries[j].reached {
				return entries[i].reached
			}
			return entries[i].at < entries[j].at
		})

		fmt.Fprintf(sb, "\n=== %s ===\n", station)
		for _, e := range entries {
			at := "---"
			if e.reached {
				at = timetable.FormatMinutes(e.at)
			}
			fmt.Fprintf(sb, "   %-8s %s\n", e.id, at)
		}
	}
	sb.WriteString("\n")
}

// Summary is the headline statistics block shown above the plot.
type Summary struct {
	TotalParsedServices int      `json:"total_parsed_services"`
	RenderedServices    int      `json:"rendered_services"`
	ACServices          int      `json:"ac_services"`
	NonACServices       int      `json:"non_ac_services"`
	TotalParsedLinks    int      `json:"total_parsed_links"`
	ParsingConflicts    int      `json:"parsing_conflicts"`
	RenderedLinks       int      `json:"rendered_links"`
	Shortest            []string `json:"shortest"`
	Longest             []string `json:"longest"`
}

// Summarize computes the headline statistics for the current filter state.
// In service mode the rendered-service counts follow individual service
// flags rather than whole rake links.
func (b *Builder) Summarize(tt *timetable.Timetable, q filtering.Query) Summary {
	var rendered []*timetable.RakeCycle
	for _, rc := range tt.RakeCycles {
		if rc.Render {
			rendered = append(rendered, rc)
		}
	}

	totalServices, acServices := 0, 0
	for _, rc := range rendered {
		totalServices += len(rc.ServicePath)
		for _, svc := range rc.ServicePath {
			if svc.NeedsAC && svc.Render {
				acServices++
			}
		}
	}

	if q.Mode == filtering.ModeService {
		totalServices = 0
		for _, svc := range tt.SuburbanServices {
			if svc.Render {
				totalServices++
			}
		}
	}

	valid := make([]*timetable.RakeCycle, 0, len(rendered))
	for _, rc := range rendered {
		if rc.LengthKm > 0 {
			valid = append(valid, rc)
		}
	}
	byLength := make([]*timetable.RakeCycle, len(valid))
	copy(byLength, valid)
	sort.SliceStable(byLength, func(i, j int) bool { return byLength[i].LengthKm < byLength[j].LengthKm })

	describe := func(cycles []*timetable.RakeCycle) []string {
		out := make([]string, 0, 3)
		for _, rc := range cycles {
			if len(out) == 3 {
				break
			}
			out = append(out, fmt.Sprintf("%s (%.1f km)", rc.LinkName, rc.LengthKm))
		}
		return out
	}
	reversed := make([]*timetable.RakeCycle, len(byLength))
	for i, rc := range byLength {
		reversed[len(byLength)-1-i] = rc
	}

	return Summary{
		TotalParsedServices: len(tt.SuburbanServices),
		RenderedServices:    totalServices,
		ACServices:          acServices,
		NonACServices:       totalServices - acServices,
		TotalParsedLinks:    len(tt.RakeCycles),
		ParsingConflicts:    len(tt.ConflictingLinks),
		RenderedLinks:       len(rendered),
		Shortest:            describe(byLength),
		Longest:             describe(reversed),
	}
}

// Lines renders the summary as report lines for the terminal.
func (s Summary) Lines() []string {
	lines := []string{
		fmt.Sprintf("Total Parsed services: %d", s.TotalParsedServices),
		fmt.Sprintf("Rendered Services: %d", s.RenderedServices),
		fmt.Sprintf("AC services: %d", s.ACServices),
		fmt.Sprintf("Non-AC services: %d", s.NonACServices),
		fmt.Sprintf("Total parsed rake links: %d", s.TotalParsedLinks),
		fmt.Sprintf("Parsing Conflicts: %d", s.ParsingConflicts),
		fmt.Sprintf("Rendered Links: %d", s.RenderedLinks),
	}
	if len(s.Shortest) > 0 {
		lines = append(lines, "Shortest: "+strings.Join(s.Shortest, ", "))
	}
	if len(s.Longest) > 0 {
		lines = append(lines, "Longest: "+strings.Join(s.Longest, ", "))
	}
	return lines
}

func linkOf(tt *timetable.Timetable, svc *timetable.Service) *timetable.RakeCycle {
	for _, rc := range tt.RakeCycles {
		for _, member := range rc.ServicePath {
			if member == svc {
				return rc
			}
		}
	}
	return nil
}

func acLabel(ac bool) string {
	if ac {
		return "AC"
	}
	return "Non-AC"
}

func stationName(s *timetable.Station) string {
	if s == nil {
		return "?"
	}
	return s.Name
}
