package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"gardi.app/cli/internal/application/services"
	"gardi.app/cli/internal/core/filtering"
	"gardi.app/cli/internal/core/timetable"
	"gardi.app/cli/internal/infrastructure/plot"
)

// maxUploadBytes caps a workbook upload at 32 MiB.
const maxUploadBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	Stations []string `json:"stations"`
	Services int      `json:"services"`
}

type figureResponse struct {
	Figure     *plot.Figure         `json:"figure"`
	Statistics filtering.Statistics `json:"statistics"`
}

type queryView struct {
	Mode             string     `json:"mode"`
	StartStation     string     `json:"start_station,omitempty"`
	EndStation       string     `json:"end_station,omitempty"`
	PassingThrough   []string   `json:"passing_through,omitempty"`
	Window           [2]float64 `json:"window"`
	AC               string     `json:"ac"`
	Directions       []string   `json:"directions,omitempty"`
	SelectedLinks    []string   `json:"selected_links,omitempty"`
	SelectedServices []string   `json:"selected_services,omitempty"`
}

// queryUpdate carries partial query edits; nil fields stay untouched.
type queryUpdate struct {
	StartStation     *string     `json:"start_station"`
	EndStation       *string     `json:"end_station"`
	PassingThrough   *[]string   `json:"passing_through"`
	Window           *[2]float64 `json:"window"`
	AC               *string     `json:"ac"`
	Directions       *[]string   `json:"directions"`
	SelectedLinks    *[]string   `json:"selected_links"`
	SelectedServices *[]string   `json:"selected_services"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart upload")
		return
	}

	wtt, wttHeader, err := r.FormFile("wtt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing wtt workbook")
		return
	}
	defer wtt.Close()

	summary, summaryHeader, err := r.FormFile("summary")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing summary workbook")
		return
	}
	defer summary.Close()

	for _, name := range []string{wttHeader.Filename, summaryHeader.Filename} {
		if !services.ValidWorkbookName(name) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("not an xlsx workbook: %s", name))
			return
		}
	}

	if err := s.wb.LoadReaders(wtt, summary); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tt := s.wb.Timetable()
	writeJSON(w, http.StatusOK, uploadResponse{
		Stations: s.wb.Stations(),
		Services: len(tt.SuburbanServices),
	})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.wb.Stations())
}

func (s *Server) handleFigure(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}

	fig, err := s.wb.BuildFigure()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, figureResponse{
		Figure:     fig,
		Statistics: s.wb.Statistics(),
	})
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.wb.Query()))
}

func (s *Server) handleUpdateQuery(w http.ResponseWriter, r *http.Request) {
	var upd queryUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "malformed query update")
		return
	}

	var acMode filtering.ACMode
	if upd.AC != nil {
		var err error
		acMode, err = filtering.NewACMode(*upd.AC)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var dirs []timetable.Direction
	if upd.Directions != nil {
		for _, raw := range *upd.Directions {
			d, err := timetable.NewDirection(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			dirs = append(dirs, d)
		}
	}

	s.wb.UpdateQuery(func(q *filtering.Query) {
		if upd.StartStation != nil {
			q.StartStation = *upd.StartStation
		}
		if upd.EndStation != nil {
			q.EndStation = *upd.EndStation
		}
		if upd.PassingThrough != nil {
			q.PassingThrough = *upd.PassingThrough
		}
		if upd.Window != nil {
			q.TimeWindow = filtering.TimeWindow{Start: upd.Window[0], End: upd.Window[1]}
		}
		if upd.AC != nil {
			q.AC = acMode
		}
		if upd.Directions != nil {
			q.Directions = dirs
		}
		if upd.SelectedLinks != nil {
			q.SelectedLinks = *upd.SelectedLinks
		}
		if upd.SelectedServices != nil {
			q.SelectedServices = *upd.SelectedServices
		}
	})

	writeJSON(w, http.StatusOK, viewOf(s.wb.Query()))
}

func (s *Server) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed mode request")
		return
	}

	mode, err := filtering.NewMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.wb.SwitchMode(mode)
	writeJSON(w, http.StatusOK, viewOf(s.wb.Query()))
}

func (s *Server) handleConvertAC(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}

	var req struct {
		Links []string `json:"links"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed conversion request")
		return
	}

	result, err := s.wb.ConvertToAC(req.Links)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleServiceTable(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.wb.ServiceTable())
}

func (s *Server) handleRakeTable(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.wb.RakeTable())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.wb.Summary())
}

func (s *Server) handleExportText(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="gardi-results.txt"`)
	fmt.Fprint(w, s.wb.ResultsText())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if !s.requireLoaded(w) {
		return
	}
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="gardi-services.xlsx"`)
	if err := s.wb.WriteXLSX(w); err != nil {
		log.Error("spreadsheet export failed", "err", err)
	}
}

func (s *Server) requireLoaded(w http.ResponseWriter) bool {
	if !s.wb.Loaded() {
		writeError(w, http.StatusConflict, "no timetable loaded; upload workbooks first")
		return false
	}
	return true
}

func viewOf(q filtering.Query) queryView {
	dirs := make([]string, 0, len(q.Directions))
	for _, d := range q.Directions {
		dirs = append(dirs, d.String())
	}
	return queryView{
		Mode:             string(q.Mode),
		StartStation:     q.StartStation,
		EndStation:       q.EndStation,
		PassingThrough:   q.PassingThrough,
		Window:           [2]float64{q.TimeWindow.Start, q.TimeWindow.End},
		AC:               string(q.AC),
		Directions:       dirs,
		SelectedLinks:    q.SelectedLinks,
		SelectedServices: q.SelectedServices,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
