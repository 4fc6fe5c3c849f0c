package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/azure/brand-mentions-bot/internal/analysis"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/azure/brand-mentions-bot/internal/monitoring"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Pipeline is the set of operations the HTTP API exposes
type Pipeline interface {
	Fetch(ctx context.Context, brand string, channels []string) (*monitoring.FetchStats, error)
	Analyze(ctx context.Context, brand string, progress analysis.ProgressFunc) (*analysis.AnalysisStats, error)
	Mentions(ctx context.Context, brand, status string) ([]models.Mention, error)
	Summarize(ctx context.Context, brand string, mode models.SummaryMode) (string, error)
	Dashboard(ctx context.Context, brand string) (*models.Dashboard, error)
	Snapshots(ctx context.Context, brand string) ([]string, error)
	Snapshot(ctx context.Context, name string) ([]models.Mention, error)
	RunMonitoring() error
	GetMetrics() string
}

// Ensure the monitoring service can back the API
var _ Pipeline = (*monitoring.Service)(nil)

type fetchRequest struct {
	Brand    string   `json:"brand"`
	Channels []string `json:"channels"`
}

type analyzeRequest struct {
	Brand string `json:"brand"`
}

type summaryRequest struct {
	Brand string `json:"brand"`
	Mode  string `json:"mode"`
}

type summaryResponse struct {
	Brand   string             `json:"brand,omitempty"`
	Mode    models.SummaryMode `json:"mode"`
	Summary string             `json:"summary"`
}

// NewRouter wires the health, metrics, trigger and pipeline endpoints
func NewRouter(pipeline Pipeline) *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Metrics endpoint
	router.HandleFunc("/metrics", metricsHandler(pipeline)).Methods("GET")

	// Manual trigger endpoint
	router.HandleFunc("/trigger", triggerHandler(pipeline)).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/fetch", fetchHandler(pipeline)).Methods("POST")
	api.HandleFunc("/mentions", mentionsHandler(pipeline)).Methods("GET")
	api.HandleFunc("/analyze", analyzeHandler(pipeline)).Methods("POST")
	api.HandleFunc("/summary", summaryHandler(pipeline)).Methods("POST")
	api.HandleFunc("/dashboard", dashboardHandler(pipeline)).Methods("GET")
	api.HandleFunc("/snapshots", snapshotsHandler(pipeline)).Methods("GET")
	api.HandleFunc("/snapshot", snapshotHandler(pipeline)).Methods("GET")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func metricsHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(pipeline.GetMetrics()))
	}
}

func triggerHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := pipeline.RunMonitoring(); err != nil {
				logrus.Errorf("Manual monitoring trigger failed: %v", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Monitoring triggered successfully"})
	}
}

func fetchHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fetchRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		stats, err := pipeline.Fetch(r.Context(), req.Brand, req.Channels)
		if err != nil {
			logrus.Errorf("Fetch request failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func mentionsHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		status := query.Get("status")

		switch status {
		case "", monitoring.StatusAll, monitoring.StatusPending, monitoring.StatusAnalyzed:
		default:
			writeError(w, http.StatusBadRequest, errors.New("status must be all, pending or analyzed"))
			return
		}

		mentions, err := pipeline.Mentions(r.Context(), query.Get("brand"), status)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		if mentions == nil {
			mentions = []models.Mention{}
		}
		writeJSON(w, http.StatusOK, mentions)
	}
}

func analyzeHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		stats, err := pipeline.Analyze(r.Context(), req.Brand, nil)
		if err != nil {
			logrus.Errorf("Analyze request failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func summaryHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req summaryRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		mode, ok := models.ParseSummaryMode(req.Mode)
		if !ok {
			writeError(w, http.StatusBadRequest, errors.New("mode must be positive, negative or suggestions"))
			return
		}

		text, err := pipeline.Summarize(r.Context(), req.Brand, mode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, summaryResponse{Brand: req.Brand, Mode: mode, Summary: text})
	}
}

func dashboardHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dashboard, err := pipeline.Dashboard(r.Context(), r.URL.Query().Get("brand"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, dashboard)
	}
}

func snapshotsHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := pipeline.Snapshots(r.Context(), r.URL.Query().Get("brand"))
		if err != nil {
			writeError(w, archiveStatus(err), err)
			return
		}

		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, names)
	}
}

func snapshotHandler(pipeline Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, errors.New("name is required"))
			return
		}

		mentions, err := pipeline.Snapshot(r.Context(), name)
		if err != nil {
			writeError(w, archiveStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, mentions)
	}
}

func archiveStatus(err error) int {
	if errors.Is(err, monitoring.ErrArchiveDisabled) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// decodeBody accepts an empty body as an all-defaults request
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
