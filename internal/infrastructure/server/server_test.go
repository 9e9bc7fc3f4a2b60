package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gardi.app/cli/internal/application/services"
	"gardi.app/cli/internal/infrastructure/config"
)

// Local test helpers

func writeRows(t *testing.T, f *excelize.File, sheet string, headerRows int, rows [][]interface{}) {
	t.Helper()
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, headerRows+i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
}

// buildWTT builds a two-sheet timetable workbook: 93002 (AC, Virar to
// Churchgate, reversed as 93003) and 93003 back down.
func buildWTT(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "UP"))
	_, err := f.NewSheet("DN")
	require.NoError(t, err)

	up := [][]interface{}{
		{"STATIONS", "", "93002"},
		{"", "", "12 CAR"},
		{"", "", "Air Conditioned"},
		{"", "", "AC"},
		{"VIRAR", "D", "06:00"},
		{"BORIVALI", "A", "06:30"},
		{"", "D", "06:31"},
		{"CHURCHGATE", "A", "07:10"},
		{"Reversed as", "", "07:40"},
		{"", "", "93003"},
		{"NOTE", "", ""},
		{"NOTE", "", ""},
		{"NOTE", "", ""},
		{"NOTE", "", ""},
		{"NOTE", "", ""},
		{"NOTE", "", ""},
	}
	writeRows(t, f, "UP", 4, up)

	down := [][]interface{}{
		{"STATIONS", "", "93003"},
		{"", "", "15 CAR"},
		{"", "", ""},
		{"", "", ""},
		{"CHURCHGATE", "D", "07:40"},
		{"BORIVALI", "A", "08:15"},
		{"VIRAR", "A", "08:50"},
		{"Reversed as", "", ""},
	}
	writeRows(t, f, "DN", 4, down)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// buildSummary builds a summary workbook with link A over 93002 and 93003.
func buildSummary(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"", "A", "93002", "93003"},
		{"", "", "CCG", "VR"},
		{"", "", "FAST", "SLOW"},
	}
	writeRows(t, f, "Sheet1", 2, rows)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*httptest.Server, *services.Workbench) {
	t.Helper()
	wb := services.NewWorkbench()
	srv := New(config.Default(), wb)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, wb
}

func multipartUpload(t *testing.T, fields map[string][]byte, names map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, content := range fields {
		fw, err := mw.CreateFormFile(field, names[field])
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func upload(t *testing.T, ts *httptest.Server) {
	t.Helper()
	body, contentType := multipartUpload(t,
		map[string][]byte{"wtt": buildWTT(t), "summary": buildSummary(t)},
		map[string]string{"wtt": "wtt.xlsx", "summary": "summary.xlsx"})

	res, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out interface{}) *http.Response {
	t.Helper()
	res, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func postJSON(t *testing.T, ts *httptest.Server, path string, payload interface{}, out interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	res, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

// TestServer_Index tests the embedded UI page
func TestServer_Index(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")

	page, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "gardi")
	assert.Contains(t, string(page), "plotly")
}

// TestServer_Health tests the readiness probe
func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	var health struct {
		Status string `json:"status"`
		Loaded bool   `json:"loaded"`
	}
	res := getJSON(t, ts, "/healthz", &health)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Loaded)

	upload(t, ts)
	getJSON(t, ts, "/healthz", &health)
	assert.True(t, health.Loaded)
}

// TestServer_RequiresLoad tests the guard on timetable-backed endpoints
func TestServer_RequiresLoad(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{
		"/api/figure", "/api/stations", "/api/tables/services",
		"/api/tables/rakes", "/api/summary", "/api/export/text",
	} {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusConflict, res.StatusCode, path)
	}
}

// TestServer_UploadValidation tests upload screening
func TestServer_UploadValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	// Missing summary part.
	body, contentType := multipartUpload(t,
		map[string][]byte{"wtt": buildWTT(t)},
		map[string]string{"wtt": "wtt.xlsx"})
	res, err := http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// Wrong extension.
	body, contentType = multipartUpload(t,
		map[string][]byte{"wtt": buildWTT(t), "summary": buildSummary(t)},
		map[string]string{"wtt": "wtt.csv", "summary": "summary.xlsx"})
	res, err = http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	var apiErr struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&apiErr))
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, apiErr.Error, "not an xlsx workbook")

	// Garbage bytes.
	body, contentType = multipartUpload(t,
		map[string][]byte{"wtt": []byte("nope"), "summary": buildSummary(t)},
		map[string]string{"wtt": "wtt.xlsx", "summary": "summary.xlsx"})
	res, err = http.Post(ts.URL+"/api/upload", contentType, body)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

// TestServer_UploadAndFigure tests the happy path end to end
func TestServer_UploadAndFigure(t *testing.T) {
	ts, _ := newTestServer(t)
	upload(t, ts)

	var stations []string
	getJSON(t, ts, "/api/stations", &stations)
	assert.Equal(t, []string{"CHURCHGATE", "BORIVALI", "VIRAR"}, stations)

	var fig struct {
		Figure struct {
			Data []struct {
				Name string    `json:"name"`
				X    []float64 `json:"x"`
			} `json:"data"`
		} `json:"figure"`
		Statistics struct {
			TotalRendered int `json:"total_rendered"`
		} `json:"statistics"`
	}
	res := getJSON(t, ts, "/api/figure", &fig)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, fig.Figure.Data, 1)
	assert.Equal(t, "A", fig.Figure.Data[0].Name)
	assert.NotEmpty(t, fig.Figure.Data[0].X)
	assert.Equal(t, 1, fig.Statistics.TotalRendered)
}

// TestServer_QueryRoundTrip tests partial query updates
func TestServer_QueryRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	var q struct {
		Mode         string     `json:"mode"`
		StartStation string     `json:"start_station"`
		Window       [2]float64 `json:"window"`
		AC           string     `json:"ac"`
	}
	getJSON(t, ts, "/api/query", &q)
	assert.Equal(t, "rakelink", q.Mode)
	assert.Equal(t, [2]float64{165, 1605}, q.Window)

	res := postJSON(t, ts, "/api/query", map[string]interface{}{
		"start_station": "VIRAR",
		"ac":            "ac",
		"window":        []float64{300, 600},
	}, &q)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "VIRAR", q.StartStation)
	assert.Equal(t, "ac", q.AC)
	assert.Equal(t, [2]float64{300, 600}, q.Window)

	// Untouched fields persist across updates.
	postJSON(t, ts, "/api/query", map[string]interface{}{"ac": "all"}, &q)
	assert.Equal(t, "VIRAR", q.StartStation)
	assert.Equal(t, "all", q.AC)

	// Invalid values are rejected.
	res = postJSON(t, ts, "/api/query", map[string]interface{}{"ac": "frosty"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

// TestServer_SwitchMode tests tab switching
func TestServer_SwitchMode(t *testing.T) {
	ts, _ := newTestServer(t)

	var q struct {
		Mode string `json:"mode"`
	}
	res := postJSON(t, ts, "/api/mode", map[string]string{"mode": "service"}, &q)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "service", q.Mode)

	res = postJSON(t, ts, "/api/mode", map[string]string{"mode": "orbit"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

// TestServer_Tables tests the table and summary endpoints
func TestServer_Tables(t *testing.T) {
	ts, _ := newTestServer(t)
	upload(t, ts)

	// Figure generation resolves rake cycles; tables reflect that.
	getJSON(t, ts, "/api/figure", nil)

	var svcRows []struct {
		ServiceID string `json:"service_id"`
		RakeLink  string `json:"rake_link"`
	}
	getJSON(t, ts, "/api/tables/services", &svcRows)
	require.Len(t, svcRows, 2)
	assert.Equal(t, "A", svcRows[0].RakeLink)

	var rakeRows []struct {
		LinkName  string `json:"linkname"`
		IsAC      string `json:"is_ac"`
		NServices int    `json:"n_services"`
	}
	getJSON(t, ts, "/api/tables/rakes", &rakeRows)
	require.Len(t, rakeRows, 1)
	assert.Equal(t, "A", rakeRows[0].LinkName)
	assert.Equal(t, "AC", rakeRows[0].IsAC)
	assert.Equal(t, 2, rakeRows[0].NServices)

	var summary struct {
		TotalParsedServices int `json:"total_parsed_services"`
		RenderedLinks       int `json:"rendered_links"`
	}
	getJSON(t, ts, "/api/summary", &summary)
	assert.Equal(t, 2, summary.TotalParsedServices)
	assert.Equal(t, 1, summary.RenderedLinks)
}

// TestServer_ConvertAC tests the conversion endpoint
func TestServer_ConvertAC(t *testing.T) {
	ts, _ := newTestServer(t)
	upload(t, ts)
	getJSON(t, ts, "/api/figure", nil)

	// Link A picked up AC from its services during generation, so a
	// conversion finds nothing to do.
	var result struct {
		Converted int      `json:"converted"`
		Links     []string `json:"links"`
	}
	res := postJSON(t, ts, "/api/convert-ac", map[string][]string{"links": {"A"}}, &result)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 0, result.Converted)
	assert.Empty(t, result.Links)
}

// TestServer_Exports tests the download endpoints
func TestServer_Exports(t *testing.T) {
	ts, _ := newTestServer(t)
	upload(t, ts)
	getJSON(t, ts, "/api/figure", nil)

	res, err := http.Get(ts.URL + "/api/export/text")
	require.NoError(t, err)
	text, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, res.Header.Get("Content-Disposition"), "gardi-results.txt")
	assert.Contains(t, string(text), "=== Rake Link Inconsistencies ===")

	res, err = http.Get(ts.URL + "/api/export/xlsx")
	require.NoError(t, err)
	data, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, res.Header.Get("Content-Type"), "spreadsheetml")

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus both services")
	assert.Equal(t, "93002", rows[1][0])
}

// TestServer_Run tests graceful shutdown
func TestServer_Run(t *testing.T) {
	srv := New(config.Default(), services.NewWorkbench())
	srv.http.Addr = "127.0.0.1:0" // ephemeral port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// TestWatcher_ReloadsOnChange tests fsnotify-driven reload
func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	wttPath := filepath.Join(dir, "wtt.xlsx")
	summaryPath := filepath.Join(dir, "summary.xlsx")
	require.NoError(t, os.WriteFile(wttPath, buildWTT(t), 0o644))
	require.NoError(t, os.WriteFile(summaryPath, buildSummary(t), 0o644))

	wb := services.NewWorkbench()
	require.NoError(t, wb.LoadFiles(wttPath, summaryPath))
	before := wb.Timetable()

	watcher, err := NewWatcher(wb, wttPath, summaryPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	require.NoError(t, os.WriteFile(wttPath, buildWTT(t), 0o644))

	require.Eventually(t, func() bool {
		return wb.Timetable() != before
	}, 5*time.Second, 50*time.Millisecond, "reload never happened")
}

// TestWatcher_MissingPath tests watcher construction failure
func TestWatcher_MissingPath(t *testing.T) {
	_, err := NewWatcher(services.NewWorkbench(), filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to watch"))
}
