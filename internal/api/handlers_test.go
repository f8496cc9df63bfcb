package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvasconcelos/plantpulse/internal/ingest"
	"github.com/mvasconcelos/plantpulse/internal/model"
	"github.com/mvasconcelos/plantpulse/internal/profile"
	"github.com/mvasconcelos/plantpulse/internal/recommend"
	"github.com/mvasconcelos/plantpulse/internal/state"
	"github.com/mvasconcelos/plantpulse/internal/store"
)

func newTestServer(t *testing.T, bufferCapacity int) (*Server, *store.Store, *state.Tracker) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	tracker := state.New()
	pipeline := ingest.NewPipeline(
		ingest.NewBuffer(bufferCapacity, 0),
		profile.Default(),
		st,
		tracker,
		ingest.NewMetrics(reg),
		time.Second,
	)
	engine := recommend.NewEngine(nil, nil, nil)

	srv := NewServer(":0", st, pipeline, tracker, engine, reg, 24*time.Hour)
	return srv, st, tracker
}

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func seedReading(t *testing.T, st *store.Store, machineID int, value float64, timestamp string) {
	t.Helper()
	prof, ok := profile.Default().Lookup("cnc_lathe", "temperature")
	require.True(t, ok)

	row := model.EnrichedReading{
		RawReading: model.RawReading{
			MachineID:   machineID,
			MachineType: "cnc_lathe",
			Parameter:   "temperature",
			Value:       value,
			Timestamp:   timestamp,
		},
		Enriched:    true,
		Unit:        prof.Unit,
		MinLimit:    prof.Min,
		MaxLimit:    prof.Max,
		Mean:        prof.Mean,
		Deviation:   (value - prof.Mean) / prof.StdDev,
		OutOfLimits: value < prof.Min || value > prof.Max,
	}
	stored, err := st.StoreBatch([]model.EnrichedReading{row})
	require.NoError(t, err)
	require.Equal(t, 1, stored)
}

func TestHandleIngest_AcceptsArray(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	w := doRequest(srv, http.MethodPost, "/api/ingest",
		`[{"machine_id": 1, "machine_type": "cnc_lathe", "parameter": "temperature", "value": 72.5}]`)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, 1.0, body["accepted"])
}

func TestHandleIngest_AcceptsWrappedForm(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	w := doRequest(srv, http.MethodPost, "/api/ingest",
		`{"readings": [{"machine_id": 2, "machine_type": "compressor", "parameter": "pressure", "value": 7.1}]}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1.0, decodeBody(t, w)["accepted"])
}

func TestHandleIngest_MalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	w := doRequest(srv, http.MethodPost, "/api/ingest", `{"machine_id": 1`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleIngest_EmptyBatch(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	w := doRequest(srv, http.MethodPost, "/api/ingest", `[]`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleIngest_BufferFull(t *testing.T) {
	srv, _, _ := newTestServer(t, 1)

	batch := `[{"machine_id": 1, "machine_type": "cnc_lathe", "parameter": "temperature", "value": 70}]`
	require.Equal(t, http.StatusAccepted, doRequest(srv, http.MethodPost, "/api/ingest", batch).Code)

	w := doRequest(srv, http.MethodPost, "/api/ingest", batch)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "ingestion buffer full", decodeBody(t, w)["error"])
}

func TestHandleReadings_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	w := doRequest(srv, http.MethodGet, "/api/readings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decodeBody(t, w)["count"])
}

func TestHandleReadings_FilterByMachine(t *testing.T) {
	srv, st, _ := newTestServer(t, 4)
	seedReading(t, st, 1, 70, "2025-06-01 10:00:00")
	seedReading(t, st, 2, 72, "2025-06-01 10:01:00")

	w := doRequest(srv, http.MethodGet, "/api/readings?machine_id=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, 1.0, body["count"])
	readings := body["readings"].([]any)
	require.Len(t, readings, 1)
	assert.Equal(t, 2.0, readings[0].(map[string]any)["machine_id"])
}

func TestHandleReadings_Limit(t *testing.T) {
	srv, st, _ := newTestServer(t, 4)
	for i := 0; i < 5; i++ {
		seedReading(t, st, 1, 70, time.Date(2025, 6, 1, 10, i, 0, 0, time.UTC).Format(model.TimestampLayout))
	}

	w := doRequest(srv, http.MethodGet, "/api/readings?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, decodeBody(t, w)["count"])
}

func TestHandleAnomalies(t *testing.T) {
	srv, st, _ := newTestServer(t, 4)
	seedReading(t, st, 1, 70, "2025-06-01 10:00:00")
	seedReading(t, st, 1, 999, "2025-06-01 10:01:00")

	w := doRequest(srv, http.MethodGet, "/api/anomalies", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, 1.0, body["count"])
	anomalies := body["anomalies"].([]any)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "High", anomalies[0].(map[string]any)["severity"])
}

func TestHandleMachineStats(t *testing.T) {
	srv, st, _ := newTestServer(t, 4)
	seedReading(t, st, 1, 70, "2025-06-01 10:00:00")
	seedReading(t, st, 1, 999, "2025-06-01 10:01:00")

	w := doRequest(srv, http.MethodGet, "/api/machines/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, 1.0, body["count"])
	machines := body["machines"].([]any)
	require.Len(t, machines, 1)
	stats := machines[0].(map[string]any)
	assert.Equal(t, 2.0, stats["num_readings"])
	assert.Equal(t, 1.0, stats["num_anomalies"])
}

func TestHandleMachinesCurrent(t *testing.T) {
	srv, _, tracker := newTestServer(t, 4)
	tracker.Update([]model.EnrichedReading{{
		RawReading: model.RawReading{
			MachineID:   3,
			MachineType: "compressor",
			Parameter:   "pressure",
			Value:       7.2,
			Timestamp:   "2025-06-01 10:00:00",
		},
	}})

	w := doRequest(srv, http.MethodGet, "/api/machines/current", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, 1.0, body["count"])
	machines := body["machines"].(map[string]any)
	require.Contains(t, machines, "3")
}

func TestHandleSchedule_NoData(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	w := doRequest(srv, http.MethodGet, "/api/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "24h0m0s", body["window"])
	assert.Empty(t, body["schedule"])
}

func TestHandleSchedule_NeutralSignals(t *testing.T) {
	srv, st, _ := newTestServer(t, 4)
	seedReading(t, st, 1, 70, time.Now().Format(model.TimestampLayout))

	w := doRequest(srv, http.MethodGet, "/api/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	recs := body["recommendations"].([]any)
	require.Len(t, recs, 1)
	rec := recs[0].(map[string]any)
	assert.Equal(t, 0.0, rec["priority"])
	assert.Equal(t, "No action needed", rec["action"])
	assert.Empty(t, body["schedule"])
}

func TestHandleSchedule_WindowParam(t *testing.T) {
	srv, st, _ := newTestServer(t, 4)
	seedReading(t, st, 1, 70, time.Now().Add(-30*time.Hour).Format(model.TimestampLayout))

	w := doRequest(srv, http.MethodGet, "/api/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["recommendations"])

	w = doRequest(srv, http.MethodGet, "/api/schedule?window=48h", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "48h0m0s", body["window"])
	assert.Len(t, body["recommendations"].([]any), 1)
}

func TestHandleHealthz(t *testing.T) {
	srv, _, tracker := newTestServer(t, 4)

	w := doRequest(srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no_data", decodeBody(t, w)["status"])

	tracker.Update([]model.EnrichedReading{{
		RawReading: model.RawReading{MachineID: 1, MachineType: "cnc_lathe", Parameter: "temperature", Value: 70},
	}})

	w = doRequest(srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)
	doRequest(srv, http.MethodPost, "/api/ingest",
		`[{"machine_id": 1, "machine_type": "cnc_lathe", "parameter": "temperature", "value": 70}]`)

	w := doRequest(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "plantpulse_ingest_batches_accepted_total 1")
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv, _, _ := newTestServer(t, 4)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
