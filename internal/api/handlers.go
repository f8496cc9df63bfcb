package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mvasconcelos/plantpulse/internal/ingest"
	"github.com/mvasconcelos/plantpulse/internal/model"
	"github.com/mvasconcelos/plantpulse/internal/recommend"
	"github.com/mvasconcelos/plantpulse/internal/store"
)

// maxIngestBody bounds the accepted request size for POST /api/ingest.
const maxIngestBody = 10 << 20

// ingestRequest is the wrapped form of the ingestion body. A bare JSON
// array of readings is accepted as well.
type ingestRequest struct {
	Readings []model.RawReading `json:"readings"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeJSON(w, r, http.StatusUnprocessableEntity, map[string]string{"error": "reading request body"})
		return
	}

	batch, err := decodeBatch(body)
	if err != nil {
		writeJSON(w, r, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	if err := s.pipeline.Submit(batch); err != nil {
		if errors.Is(err, ingest.ErrBufferFull) {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"error": "ingestion buffer full"})
			return
		}
		slog.Error("submitting batch", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"accepted": len(batch),
	})
}

func decodeBatch(body []byte) ([]model.RawReading, error) {
	var batch []model.RawReading
	if err := json.Unmarshal(body, &batch); err != nil {
		var req ingestRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, errors.New("body must be a JSON array of readings or {\"readings\": [...]}")
		}
		batch = req.Readings
	}
	if len(batch) == 0 {
		return nil, errors.New("empty batch")
	}
	return batch, nil
}

// filterFromQuery builds a store filter from the shared query parameters.
// Unparseable values are ignored rather than rejected.
func filterFromQuery(r *http.Request) store.QueryFilter {
	var f store.QueryFilter
	q := r.URL.Query()

	if v := q.Get("machine_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			f.MachineID = &id
		}
	}
	f.Parameter = q.Get("parameter")
	f.StartTime = q.Get("start_time")
	f.EndTime = q.Get("end_time")
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	return f
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.QueryReadings(filterFromQuery(r))
	if err != nil {
		slog.Error("querying readings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"count": len(rows), "readings": rows})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.QueryAnomalies(filterFromQuery(r))
	if err != nil {
		slog.Error("querying anomalies", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"count": len(rows), "anomalies": rows})
}

func (s *Server) handleMachineStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.MachineStats()
	if err != nil {
		slog.Error("querying machine stats", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"count": len(stats), "machines": stats})
}

func (s *Server) handleMachinesCurrent(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"count":       len(snap),
		"machines":    snap,
		"last_update": s.tracker.LastUpdate(),
	})
}

// scheduleResponse is the response body for GET /api/schedule.
type scheduleResponse struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	Window          string                `json:"window"`
	Recommendations []model.Recommendation `json:"recommendations"`
	Schedule        []model.ScheduleEntry `json:"schedule"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	window := s.window
	if v := r.URL.Query().Get("window"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 && d <= maxScheduleWindow {
			window = d
		}
	}

	now := time.Now()
	rows, err := s.store.QueryReadings(store.QueryFilter{
		StartTime: now.Add(-window).Format(model.TimestampLayout),
		Limit:     scheduleQueryLimit,
	})
	if err != nil {
		slog.Error("querying readings for schedule", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	recs := s.engine.Recommend(r.Context(), rows)
	writeJSON(w, r, http.StatusOK, scheduleResponse{
		GeneratedAt:     now,
		Window:          window.String(),
		Recommendations: recs,
		Schedule:        recommend.BuildSchedule(recs, now),
	})
}

// scheduleQueryLimit bounds the row-set fed into the recommendation engine.
const scheduleQueryLimit = 10000

// maxScheduleWindow caps the caller-supplied lookback.
const maxScheduleWindow = 7 * 24 * time.Hour

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	last := s.tracker.LastUpdate()
	status := "ok"
	if last.IsZero() {
		status = "no_data"
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":      status,
		"timestamp":   time.Now().Unix(),
		"last_ingest": last,
	})
}
