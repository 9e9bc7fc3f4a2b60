// Package workbook parses published working-timetable (WTT) workbooks and
// their rake-link summary workbooks into the timetable domain model.
//
// A WTT workbook carries two sheets, up then down, with station names in the
// first column, an A/D marker column beside it, and one service per column.
// The summary workbook lists each rake link's service ids on a single row.
package workbook

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"gardi.app/cli/internal/core/timetable"
)

// Header rows above the content in each workbook.
const (
	wttHeaderRows     = 4
	summaryHeaderRows = 2
)

// serviceIDLength is the digit count of a published service id.
const serviceIDLength = 5

// headerDefaultRakeSize is assumed when a service column carries no
// "NN CAR" marker.
const headerDefaultRakeSize = 15

var (
	centralRailwayPattern = regexp.MustCompile(`^[Cc]\.\s*[Rr][Ll][Yy]\.?$`)
	serviceIDPattern      = regexp.MustCompile(`(?i)^\s*\d{5}(?:\b.*)?$`)
	// linkNamePattern matches summary row link names: one or two capital
	// letters with an optional dagger.
	linkNamePattern    = regexp.MustCompile(`^\s*([A-Z]{1,2})\s*\x{2020}?\s*$`)
	etyPattern         = regexp.MustCompile(`(?i)\bETY\s*\d+\b`)
	lineMarkerPattern  = regexp.MustCompile(`(?i)^(?:(\d)/)?([TL])(?:H)?$`)
	rakeSizePattern    = regexp.MustCompile(`(?i)(12|15|20|10)\s*CAR`)
	arrivalMarkPattern = regexp.MustCompile(`(?i)\bARRL?\.?\b`)
	digitsPattern      = regexp.MustCompile(`\d+`)
)

// Parser turns WTT and summary workbooks into a timetable.
type Parser struct {
	tt *timetable.Timetable

	upSheet   *grid
	downSheet *grid

	// stationAbbrev resolves the yard/terminal shorthands used in "ARR"
	// cells at the foot of service columns.
	stationAbbrev map[string]*timetable.Station

	// columns keeps each registered service's raw sheet column for event
	// generation.
	columns map[*timetable.Service][]string
}

// NewParser creates a parser with an empty timetable.
func NewParser() *Parser {
	return &Parser{
		tt:      timetable.New(),
		columns: make(map[*timetable.Service][]string),
	}
}

// ParseFiles parses the WTT and summary workbooks from disk.
func ParseFiles(wttPath, summaryPath string) (*timetable.Timetable, error) {
	p := NewParser()
	wtt, err := excelize.OpenFile(wttPath)
	if err != nil {
		return nil, fmt.Errorf("opening timetable workbook: %w", err)
	}
	defer wtt.Close()

	summary, err := excelize.OpenFile(summaryPath)
	if err != nil {
		return nil, fmt.Errorf("opening summary workbook: %w", err)
	}
	defer summary.Close()

	return p.parse(wtt, summary)
}

// ParseReaders parses both workbooks from streams, as delivered by uploads.
func ParseReaders(wttReader, summaryReader io.Reader) (*timetable.Timetable, error) {
	p := NewParser()
	wtt, err := excelize.OpenReader(wttReader)
	if err != nil {
		return nil, fmt.Errorf("reading timetable workbook: %w", err)
	}
	defer wtt.Close()

	summary, err := excelize.OpenReader(summaryReader)
	if err != nil {
		return nil, fmt.Errorf("reading summary workbook: %w", err)
	}
	defer summary.Close()

	return p.parse(wtt, summary)
}

func (p *Parser) parse(wtt, summary *excelize.File) (*timetable.Timetable, error) {
	if err := p.loadWTTSheets(wtt); err != nil {
		return nil, err
	}
	if err := p.registerStations(); err != nil {
		return nil, err
	}
	p.registerServices()

	if err := p.parseSummary(summary); err != nil {
		return nil, err
	}
	p.tt.IsolateSuburbanServices()

	p.generateAllEvents()

	return p.tt, nil
}

// Timetable returns the timetable built so far.
func (p *Parser) Timetable() *timetable.Timetable {
	return p.tt
}

// loadWTTSheets reads the up and down sheets, skipping the header banner and
// compacting blank columns.
func (p *Parser) loadWTTSheets(f *excelize.File) error {
	sheets := f.GetSheetList()
	if len(sheets) < 2 {
		return fmt.Errorf("timetable workbook needs an up and a down sheet, found %d", len(sheets))
	}

	load := func(name string) (*grid, error) {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		return newGrid(rows).skipRows(wttHeaderRows).dropEmptyColumns(), nil
	}

	var err error
	if p.upSheet, err = load(sheets[0]); err != nil {
		return err
	}
	if p.downSheet, err = load(sheets[1]); err != nil {
		return err
	}

	log.Debug("loaded timetable sheets",
		"up_rows", p.upSheet.numRows(), "down_rows", p.downSheet.numRows())
	return nil
}

// registerStations reads the station column of the up sheet and creates a
// station for every corridor stop. The trailing linkage rows are skipped.
func (p *Parser) registerStations() error {
	sheet := p.upSheet
	n := sheet.numRows()
	if n == 0 {
		return fmt.Errorf("up sheet is empty")
	}

	// Row 0 is the STATIONS header; the last 8 rows hold linkage lines.
	last := n - 8
	if last < 1 {
		last = n
	}
	for r := 1; r < last; r++ {
		raw := strings.TrimSpace(sheet.cell(r, 0))
		if raw == "" {
			continue
		}
		name := strings.ToUpper(timetable.NormalizeStationName(raw))
		km, ok := timetable.DistanceMap[name]
		if !ok {
			log.Warn("station missing from corridor distance map, skipping", "station", name)
			continue
		}
		p.tt.Stations[name] = &timetable.Station{ID: r, Name: name, KmFromOrigin: km}
	}

	if len(p.tt.Stations) == 0 {
		return fmt.Errorf("no corridor stations found in the up sheet")
	}

	p.stationAbbrev = map[string]*timetable.Station{
		"BDTS": p.tt.Stations["BANDRA"],
		"BA":   p.tt.Stations["BANDRA"],
		"MM":   p.tt.Stations["MAHIM JN."],
		"ADH":  p.tt.Stations["ANDHERI"],
		"KILE": p.tt.Stations["KANDIVALI"],
		"BSR":  p.tt.Stations["BHAYANDAR"],
		"DDR":  p.tt.Stations["DADAR"],
		"VR":   p.tt.Stations["VIRAR"],
		"BVI":  p.tt.Stations["BORIVALI"],
		"CSTM": {ID: 43, Name: "CHATTRAPATI SHIVAJI MAHARAJ TERMINUS"},
		"CSMT": {ID: 44, Name: "CHATTRAPATI SHIVAJI MAHARAJ TERMINUS"},
		"PNVL": {ID: 45, Name: "PANVEL"},
		"MX":   p.tt.Stations["MAHALAKSHMI"],
	}

	log.Debug("registered stations", "count", len(p.tt.Stations))
	return nil
}

// resolveStationName reads the station for a row, walking up to two rows
// when the cell is blank (stations span multiple A/D rows in the sheet).
func resolveStationName(sheet *grid, rowIdx int) string {
	name := strings.TrimSpace(sheet.cell(rowIdx, 0))
	if name == "" {
		name = strings.TrimSpace(sheet.cell(rowIdx-1, 0))
	}
	if name == "" {
		name = strings.TrimSpace(sheet.cell(rowIdx-2, 0))
	}
	return name
}

// isServiceIDCell reports whether the cell text names a service: a five-digit
// id or an ETY (empty run) id.
func isServiceIDCell(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return false
	}
	return serviceIDPattern.MatchString(cell) || etyPattern.MatchString(cell)
}

// extractServiceID pulls the canonical id out of a header or summary cell:
// "ETY 101" stays as written, anything else reduces to its digits.
func extractServiceID(cell string) string {
	if m := etyPattern.FindString(cell); m != "" {
		return m
	}
	if m := digitsPattern.FindString(cell); m != "" {
		return m
	}
	return strings.TrimSpace(cell)
}
