package workbook

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"gardi.app/cli/internal/core/timetable"
)

// registerServices walks every service column of both sheets and builds the
// up and down service lists.
func (p *Parser) registerServices() {
	p.doRegisterServices(p.upSheet, timetable.DirectionUp)
	p.doRegisterServices(p.downSheet, timetable.DirectionDown)
	log.Debug("registered services",
		"up", len(p.tt.UpServices), "down", len(p.tt.DownServices))
}

func (p *Parser) doRegisterServices(sheet *grid, dir timetable.Direction) {
	width := sheet.numCols()
	for c := 2; c < width; c++ {
		if sheet.isEmptyColumn(c) {
			continue
		}
		col := sheet.column(c)

		// Repeated STATIONS columns restate the station names mid-sheet.
		if strings.EqualFold(strings.TrimSpace(col[0]), "STATIONS") {
			continue
		}
		if isMarkerColumn(col) {
			continue
		}

		svc := &timetable.Service{
			Type:      timetable.ServiceRegular,
			Direction: dir,
			Render:    true,
		}

		ids, rakeSize, zone := extractServiceHeader(col)
		switch {
		case len(ids) == 0:
			svc.Type = timetable.ServiceStabling
		case len(ids) > 1:
			svc.Type = timetable.ServiceMulti
		}
		svc.IDs = ids
		svc.RakeSizeReq = rakeSize
		svc.Zone = zone
		svc.NeedsAC = extractACRequirement(col)
		svc.LinkedTo = p.extractLinkedTo(sheet, col, dir)
		svc.InitStation = p.extractInitStation(sheet, col)
		svc.FinalStation = p.extractFinalStation(sheet, col)

		if markers := p.extractLineMarkers(sheet, col); len(markers) > 0 {
			lines := make(map[timetable.Line]bool)
			for _, m := range markers {
				lines[m.line] = true
			}
			if len(lines) > 1 {
				svc.Line = timetable.LineSemiFast
			} else {
				svc.Line = markers[0].line
			}
		}

		p.columns[svc] = col
		if dir == timetable.DirectionUp {
			p.tt.UpServices = append(p.tt.UpServices, svc)
		} else {
			p.tt.DownServices = append(p.tt.DownServices, svc)
		}
	}
}

// isMarkerColumn detects the A/D marker columns that annotate arrival and
// departure rows rather than carrying a service.
func isMarkerColumn(col []string) bool {
	var vals []string
	for _, cell := range col {
		v := strings.ToUpper(strings.TrimSpace(cell))
		if v != "" {
			vals = append(vals, v)
		}
	}
	for i := 1; i < len(vals); i++ {
		if vals[i-1] == "A" && vals[i] == "D" {
			return true
		}
	}
	return false
}

// extractServiceHeader reads the id region at the top of a service column:
// service ids, the "NN CAR" rake-size marker, and the zone marker.
func extractServiceHeader(col []string) (ids []string, rakeSize int, zone timetable.ServiceZone) {
	rakeSize = headerDefaultRakeSize

	region := col
	if len(region) > 6 {
		region = region[:6]
	}
	for _, cell := range region {
		cell = strings.TrimSpace(cell)
		if centralRailwayPattern.MatchString(cell) {
			zone = timetable.ZoneCentral
		}
		if isServiceIDCell(cell) {
			id := extractServiceID(cell)
			ids = append(ids, id)
			if strings.HasPrefix(cell, "9") {
				zone = timetable.ZoneSuburban
			}
		}
		if strings.Contains(strings.ToUpper(cell), "CAR") {
			if m := rakeSizePattern.FindStringSubmatch(cell); m != nil {
				rakeSize, _ = strconv.Atoi(m[1])
			}
		}
	}
	return ids, rakeSize, zone
}

// extractACRequirement reports whether the column is marked as requiring an
// air-conditioned rake. Published sheets repeat the marker, so a single
// stray "AC" substring does not set the flag.
func extractACRequirement(col []string) bool {
	count := 0
	for _, cell := range col {
		cell = strings.TrimSpace(cell)
		if strings.Contains(cell, "Air") || strings.Contains(cell, "Condition") ||
			strings.Contains(cell, "AC") {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

// extractLinkedTo finds the onward service id from the "Reversed as" linkage
// row at the foot of the sheet. Up columns carry the id one row below the
// linkage row, down columns on the row itself.
func (p *Parser) extractLinkedTo(sheet *grid, col []string, dir timetable.Direction) string {
	linkRow := -1
	for r := 0; r < sheet.numRows(); r++ {
		if strings.Contains(strings.ToLower(sheet.cell(r, 0)), "reversed as") {
			linkRow = r
			break
		}
	}
	if linkRow < 0 || linkRow >= len(col) {
		return ""
	}

	var depTime, linked string
	if dir == timetable.DirectionUp {
		depTime = strings.TrimSpace(col[linkRow])
		if linkRow+1 < len(col) {
			linked = strings.TrimSpace(col[linkRow+1])
		}
	} else {
		if linkRow > 0 {
			depTime = strings.TrimSpace(col[linkRow-1])
		}
		linked = strings.TrimSpace(col[linkRow])
	}

	if depTime == "" || linked == "" {
		return ""
	}
	if len(linked) != serviceIDLength || !isDigits(linked) {
		return ""
	}
	return linked
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// extractInitStation finds the station of the first clock cell in the column.
func (p *Parser) extractInitStation(sheet *grid, col []string) *timetable.Station {
	for r, cell := range col {
		cell = strings.TrimSpace(cell)
		if cell == "" || !timetable.IsClock(cell) {
			continue
		}
		name := resolveStationName(sheet, r)
		if name == "" {
			continue
		}
		name = strings.ToUpper(timetable.NormalizeStationName(name))
		return p.tt.Stations[name]
	}
	return nil
}

// extractFinalStation resolves where the service ends. Columns closing with
// an "ARR"/"ARRL." marker name a yard or terminal by abbreviation near the
// marker; otherwise the last clock cell's station wins.
func (p *Parser) extractFinalStation(sheet *grid, col []string) *timetable.Station {
	arrRow := -1
	for r, cell := range col {
		if arrivalMarkPattern.MatchString(strings.ToUpper(strings.TrimSpace(cell))) {
			arrRow = r
			break
		}
	}

	if arrRow < 0 {
		for r := len(col) - 1; r >= 0; r-- {
			cell := strings.TrimSpace(col[r])
			if cell == "" || !timetable.IsClock(cell) {
				continue
			}
			name := resolveStationName(sheet, r)
			name = strings.ToUpper(timetable.NormalizeStationName(name))
			if strings.Contains(name, "REVERSED") {
				name = strings.ToUpper(timetable.NormalizeStationName(
					strings.TrimSpace(sheet.cell(r-1, 0))))
			}
			if st, ok := p.tt.Stations[name]; ok {
				return st
			}
		}
		return nil
	}

	for _, r := range []int{arrRow, arrRow - 1, arrRow + 1} {
		if r < 0 || r >= len(col) {
			continue
		}
		cell := strings.ToUpper(strings.TrimSpace(col[r]))
		if cell == "" {
			continue
		}
		for abbrev, st := range p.stationAbbrev {
			if strings.Contains(cell, abbrev) {
				return st
			}
		}
	}
	return nil
}

type lineMarker struct {
	station string
	line    timetable.Line
}

// extractLineMarkers collects the T/L markers that record which track a
// service runs on at each station.
func (p *Parser) extractLineMarkers(sheet *grid, col []string) []lineMarker {
	var markers []lineMarker
	for r, cell := range col {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}

		var line timetable.Line
		if m := lineMarkerPattern.FindStringSubmatch(cell); m != nil {
			if strings.EqualFold(m[2], "T") {
				line = timetable.LineThrough
			} else {
				line = timetable.LineLocal
			}
		} else if strings.EqualFold(cell, "O/L") {
			line = timetable.LineLocal
		} else {
			continue
		}

		name := resolveStationName(sheet, r)
		if name == "" {
			continue
		}
		name = strings.ToUpper(timetable.NormalizeStationName(name))
		if name == "STATIONS" {
			continue
		}
		markers = append(markers, lineMarker{station: name, line: line})
	}
	return markers
}

// generateAllEvents produces station events for every suburban service and
// fills the per-station event index.
func (p *Parser) generateAllEvents() {
	for _, svc := range p.tt.SuburbanServices {
		sheet := p.upSheet
		if svc.Direction == timetable.DirectionDown {
			sheet = p.downSheet
		}
		p.generateEvents(sheet, svc)
	}
	log.Debug("generated station events", "stations_indexed", len(p.tt.EventsByStation))
}

// generateEvents walks a service's column and records an event for every
// clock cell, pairing A rows with the D row beneath them.
func (p *Parser) generateEvents(sheet *grid, svc *timetable.Service) {
	col := p.columns[svc]
	if col == nil {
		return
	}

	appendEvent := func(name, raw string, kind timetable.EventKind) {
		t, err := timetable.ParseClock(raw)
		if err != nil {
			return
		}
		ev := &timetable.StationEvent{
			AtStation: name,
			AtTime:    t,
			Kind:      kind,
			Render:    true,
		}
		svc.Events = append(svc.Events, ev)
		p.tt.EventsByStation[name] = append(p.tt.EventsByStation[name], ev)
	}

	for r, cell := range col {
		cell = strings.TrimSpace(cell)
		if cell == "" || !timetable.IsClock(cell) {
			continue
		}

		name := resolveStationName(sheet, r)
		name = strings.ToUpper(timetable.NormalizeStationName(name))

		if strings.Contains(name, "REVERSED") {
			// Linkage rows repeat the terminal; reuse the last known stop.
			if len(svc.Events) == 0 {
				continue
			}
			name = svc.Events[len(svc.Events)-1].AtStation
		}
		if _, ok := p.tt.Stations[name]; !ok {
			continue
		}

		isArrivalRow := strings.TrimSpace(sheet.cell(r, 1)) == "A"
		if isArrivalRow {
			appendEvent(name, cell, timetable.EventArrival)
			if strings.TrimSpace(sheet.cell(r+1, 1)) == "D" && r+1 < len(col) {
				dep := strings.TrimSpace(col[r+1])
				if timetable.IsClock(dep) {
					appendEvent(name, dep, timetable.EventDeparture)
				}
			}
		} else {
			// Plain timing rows are treated as arrivals. Departure-only rows
			// already produced their event from the paired A row above.
			if strings.TrimSpace(sheet.cell(r, 1)) == "D" && r > 0 &&
				strings.TrimSpace(sheet.cell(r-1, 1)) == "A" &&
				strings.TrimSpace(col[r-1]) != "" && timetable.IsClock(strings.TrimSpace(col[r-1])) {
				continue
			}
			appendEvent(name, cell, timetable.EventArrival)
		}
	}
}

