package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"opentracker/internal/category"
	"opentracker/internal/config"
	"opentracker/internal/logger"
	"opentracker/internal/scheduler"
	"opentracker/internal/storage"
)

// Server exposes the report query surface over HTTP.
type Server struct {
	cfg        *config.Config
	configPath string
}

func NewServer(cfg *config.Config, configPath string) *Server {
	return &Server{cfg: cfg, configPath: configPath}
}

// Router builds the API route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/reports", s.handleReportList).Methods(http.MethodGet)
	v1.HandleFunc("/report/latest", s.handleReportLatest).Methods(http.MethodGet)
	v1.HandleFunc("/report/{date}", s.handleReportByDate).Methods(http.MethodGet)
	v1.HandleFunc("/report/{date}/markdown", s.handleReportMarkdown).Methods(http.MethodGet)
	v1.HandleFunc("/settings/report-schedule", s.handleScheduleGet).Methods(http.MethodGet)
	v1.HandleFunc("/settings/report-schedule", s.handleSchedulePut).Methods(http.MethodPut)
	v1.HandleFunc("/categories", s.handleCategoriesGet).Methods(http.MethodGet)
	v1.HandleFunc("/categories", s.handleCategoriesPut).Methods(http.MethodPut)

	return handlers.LoggingHandler(logger.GetLogger().Writer(), r)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.API.Port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.GetLogger().Infof("API server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	db, err := storage.Open(s.cfg.Storage.DBPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer db.Close()

	lastCollected, err := db.LatestActivityTimestamp()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	latestMeta, err := db.LatestReportMeta()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	payload := map[string]any{
		"last_collected_at":  lastCollected,
		"latest_report_date": nil,
		"api_port":           s.cfg.API.Port,
	}
	if latestMeta != nil {
		payload["latest_report_date"] = latestMeta.Date
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReportList(w http.ResponseWriter, r *http.Request) {
	limit := 7
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", raw))
			return
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 90 {
		limit = 90
	}

	db, err := storage.Open(s.cfg.Storage.DBPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer db.Close()

	reports, err := db.ListReports(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]map[string]any, 0, len(reports))
	for _, meta := range reports {
		views = append(views, map[string]any{
			"date":         meta.Date,
			"generated_at": meta.GeneratedAt,
			"markdown_url": fmt.Sprintf("/api/v1/report/%s/markdown", meta.Date),
			"json_url":     fmt.Sprintf("/api/v1/report/%s", meta.Date),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": views})
}

func (s *Server) handleReportLatest(w http.ResponseWriter, r *http.Request) {
	db, err := storage.Open(s.cfg.Storage.DBPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer db.Close()

	meta, err := db.LatestReportMeta()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if meta == nil {
		writeError(w, http.StatusNotFound, errors.New("no reports have been generated yet"))
		return
	}
	s.serveReportJSON(w, meta)
}

func (s *Server) handleReportByDate(w http.ResponseWriter, r *http.Request) {
	meta, ok := s.lookupReportMeta(w, r)
	if !ok {
		return
	}
	s.serveReportJSON(w, meta)
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	meta, ok := s.lookupReportMeta(w, r)
	if !ok {
		return
	}

	content, err := os.ReadFile(meta.MarkdownPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to read markdown report: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleScheduleGet(w http.ResponseWriter, r *http.Request) {
	reportTime, err := config.CurrentReportTime(s.configPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	cronExpr, err := scheduler.CronFromReportTime(reportTime)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report_time":     reportTime,
		"cron_expression": cronExpr,
	})
}

func (s *Server) handleSchedulePut(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReportTime string `json:"report_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := config.SetValue(s.configPath, "report.time", payload.ReportTime); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cronExpr, err := scheduler.CronFromReportTime(payload.ReportTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"saved":           true,
		"report_time":     payload.ReportTime,
		"cron_expression": cronExpr,
	})
}

func (s *Server) handleCategoriesGet(w http.ResponseWriter, r *http.Request) {
	content, err := os.ReadFile(s.cfg.Storage.CategoriesPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to read categories file: %w", err))
		return
	}
	var parsed json.RawMessage
	if err := json.Unmarshal(content, &parsed); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to parse categories file: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleCategoriesPut(w http.ResponseWriter, r *http.Request) {
	var payload category.Rules
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid categories schema: %w", err))
		return
	}

	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to serialize categories JSON: %w", err))
		return
	}
	if err := os.WriteFile(s.cfg.Storage.CategoriesPath, pretty, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to save categories file: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"saved": true,
		"path":  s.cfg.Storage.CategoriesPath,
	})
}

// lookupReportMeta parses the {date} route variable and loads its report
// metadata, writing the error response itself when the lookup fails.
func (s *Server) lookupReportMeta(w http.ResponseWriter, r *http.Request) (*storage.ReportMeta, bool) {
	raw := mux.Vars(r)["date"]
	date, err := time.ParseInLocation(storage.DateLayout, raw, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid date format: %s (example: 2026-02-18)", raw))
		return nil, false
	}

	db, err := storage.Open(s.cfg.Storage.DBPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	defer db.Close()

	meta, err := db.ReportMeta(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if meta == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no report found for date: %s", raw))
		return nil, false
	}
	return meta, true
}

func (s *Server) serveReportJSON(w http.ResponseWriter, meta *storage.ReportMeta) {
	content, err := os.ReadFile(meta.JSONPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to read report JSON: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.GetLogger().Errorf("failed to encode API response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
