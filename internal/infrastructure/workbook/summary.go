package workbook

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"gardi.app/cli/internal/core/timetable"
)

// parseSummary reads the rake-link summary workbook: one row per link naming
// the services the rake works, with a FAST/SLOW row two rows below.
func (p *Parser) parseSummary(f *excelize.File) error {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("summary workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("reading summary sheet %q: %w", sheets[0], err)
	}

	sheet := newGrid(rows).skipRows(summaryHeaderRows).dropEmptyRows()
	p.parseRakeLinks(sheet)
	return nil
}

// parseRakeLinks scans summary rows for link names and collects each link's
// service ids, attaching FAST/SLOW labels to services the timetable already
// knows. Ids the timetable never defines are recorded on the cycle.
func (p *Parser) parseRakeLinks(sheet *grid) {
	allServices := p.tt.AllServices()
	byID := make(map[string]*timetable.Service)
	for _, svc := range allServices {
		for _, sid := range svc.IDs {
			byID[sid] = svc
		}
	}

	undefinedTotal := 0
	for i := 0; i < sheet.numRows(); i++ {
		linkCell := strings.ToUpper(strings.TrimSpace(sheet.cell(i, 1)))
		if linkCell == "" {
			continue
		}
		m := linkNamePattern.FindStringSubmatch(linkCell)
		if m == nil {
			continue
		}
		linkName := m[1]

		// The FAST/SLOW row sits two rows below the service-id row.
		lineRow := i + 2

		type entry struct {
			sid  string
			line string
		}
		var entries []entry
		for c := 2; c < sheet.numCols(); c++ {
			cell := sheet.cell(i, c)
			if strings.TrimSpace(cell) == "" || !isServiceIDCell(cell) {
				continue
			}

			label := ""
			if lineRow < sheet.numRows() {
				raw := strings.ToUpper(strings.TrimSpace(sheet.cell(lineRow, c)))
				if strings.Contains(raw, "FAST") || strings.Contains(raw, "SLOW") {
					label = raw
				}
			}
			entries = append(entries, entry{sid: extractServiceID(cell), line: label})
		}
		if len(entries) == 0 {
			continue
		}

		rc := timetable.NewRakeCycle(linkName)
		for _, e := range entries {
			rc.ServiceIDs = append(rc.ServiceIDs, e.sid)

			svc, ok := byID[e.sid]
			if !ok {
				rc.UndefinedIDs = append(rc.UndefinedIDs, e.sid)
				undefinedTotal++
				continue
			}
			svc.RakeLinkName = linkName
			// Detailed-sheet T/L markers take priority over summary labels.
			if svc.Line == "" {
				if strings.Contains(e.line, "FAST") {
					svc.Line = timetable.LineThrough
				} else if strings.Contains(e.line, "SLOW") {
					svc.Line = timetable.LineLocal
				}
			}
		}
		p.tt.RakeCycles = append(p.tt.RakeCycles, rc)
	}

	if undefinedTotal > 0 {
		log.Warn("summary service ids missing from the detailed timetable",
			"count", undefinedTotal)
	} else {
		log.Debug("all summary service ids matched the detailed timetable",
			"links", len(p.tt.RakeCycles))
	}
}
