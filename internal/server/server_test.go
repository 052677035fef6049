package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/config"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/store"
)

func newTestServer(t *testing.T, withStore bool) (*Server, *config.AppConfig) {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths.InputBase = filepath.Join(root, "in")
	cfg.Paths.OutputDir = filepath.Join(root, "out")
	cfg.Run.Rate = 15000

	var opts []Option
	if withStore {
		st, err := store.New(filepath.Join(root, "rekap.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		opts = append(opts, WithStore(st))
	}
	return NewServer(cfg, opts...), cfg
}

func writeStatement(t *testing.T, path, code string) {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	rows := [][]any{
		{"Kode entitas", code},
		{"Mata uang pelaporan", "Rupiah"},
		{"Jumlah aset", 1000000000},
		{"Jumlah ekuitas", 400000000},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Store)
}

func TestStartRun_Validation(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/api/runs", `{"year":2025}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/runs", `{"year":2025,"quarter":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 输入目录不存在
	w = do(t, s, http.MethodPost, "/api/runs", `{"year":2025,"quarter":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRun_AndLedger(t *testing.T) {
	s, cfg := newTestServer(t, true)

	dir := filepath.Join(cfg.Paths.InputBase, "2025 Q3")
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeStatement(t, filepath.Join(dir, "AAA.xlsx"), "AAA")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.xlsx"), []byte("x"), 0644))

	w := do(t, s, http.MethodPost, "/api/runs", `{"year":2025,"quarter":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		RunID      string `json:"runId"`
		Status     string `json:"status"`
		OutputPath string `json:"outputPath"`
		Records    int    `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, store.RunStatusWritten, out.Status)
	assert.Equal(t, 1, out.Records)
	assert.FileExists(t, out.OutputPath)

	w = do(t, s, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), out.RunID)

	w = do(t, s, http.MethodGet, "/api/runs/"+out.RunID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/runs/"+out.RunID+"/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	var files struct {
		Items []store.RunFile `json:"items"`
		Total int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	assert.Equal(t, 2, files.Total)

	w = do(t, s, http.MethodGet, "/api/runs/missing/files", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/periods", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"quarter":3`)

	w = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rekap_runs_total")
}

func TestStartRun_Stream(t *testing.T) {
	s, cfg := newTestServer(t, false)

	dir := filepath.Join(cfg.Paths.InputBase, "2025 Q4")
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeStatement(t, filepath.Join(dir, "AAA.xlsx"), "AAA")

	w := do(t, s, http.MethodPost, "/api/runs", `{"year":2025,"quarter":4,"stream":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := strings.Split(strings.TrimSpace(w.Body.String()), "\n\n")
	require.NotEmpty(t, events)
	assert.Contains(t, events[0], `"type":"start"`)
	assert.Contains(t, events[len(events)-1], `"type":"outcome"`)
}

func TestLedgerDisabled(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
