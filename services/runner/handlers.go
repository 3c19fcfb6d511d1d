package runner

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tbreport/logger"
)

// Router returns the HTTP API.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleStartRun).Methods(http.MethodPost)
	r.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "tbreport-runner",
		"queued":  len(s.queue),
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Service) handleStartRun(w http.ResponseWriter, r *http.Request) {
	job, err := s.Enqueue(TriggerAPI)
	if errors.Is(err, ErrQueueFull) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.log.Debug("run requested", logger.String("remote", r.RemoteAddr), logger.String("job_id", job.ID))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	})
}

func (s *Service) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.List(limit))
}

func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if job, ok := s.store.Get(id); ok {
		writeJSON(w, http.StatusOK, job)
		return
	}
	if s.recorder != nil {
		if res, err := s.recorder.Get(r.Context(), id); err == nil {
			status := JobStatusCompleted
			if !res.Passed() {
				status = JobStatusFailed
			}
			writeJSON(w, http.StatusOK, Job{
				ID:          res.RunID,
				Status:      status,
				CreatedAt:   res.StartedAt,
				StartedAt:   &res.StartedAt,
				CompletedAt: &res.FinishedAt,
				Result:      &res,
				Error:       res.Error,
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "run not found")
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotImplemented, "no run store configured")
		return
	}
	limit, err := limitParam(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.recorder.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("loading run history", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "loading run history failed")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
