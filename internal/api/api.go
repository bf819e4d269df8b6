package api

import (
	"MigraScope/internal/analyzer"
	"MigraScope/internal/model"
	"MigraScope/internal/report"
	"MigraScope/internal/store"
	"MigraScope/internal/table"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds the size of an uploaded table.
const maxBodyBytes = 256 << 20

// RunQuerier reads archived runs, e.g. from ClickHouse.
type RunQuerier interface {
	QueryRuns(ctx context.Context, filter store.RunFilter) ([]store.RunSummary, error)
}

// Handler holds the dependencies of the HTTP API.
type Handler struct {
	analyzer model.Analyzer
	history  *store.History // optional
	querier  RunQuerier     // optional
	registry *prometheus.Registry
	metrics  *metrics
	logger   *log.Logger
}

// NewHandler creates the API handler. history and querier may be nil, in which
// case the endpoints that need them answer 503.
func NewHandler(a model.Analyzer, history *store.History, querier RunQuerier, registry *prometheus.Registry, logger *log.Logger) *Handler {
	return &Handler{
		analyzer: a,
		history:  history,
		querier:  querier,
		registry: registry,
		metrics:  newMetrics(registry),
		logger:   logger,
	}
}

// Router returns the mux with every API route.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/analyze", h.analyzeHandler).Methods("POST")
	r.HandleFunc("/api/v1/report", h.reportHandler).Methods("POST")
	r.HandleFunc("/api/v1/runs", h.listRunsHandler).Methods("GET")
	r.HandleFunc("/api/v1/runs/{id}", h.getRunHandler).Methods("GET")
	r.HandleFunc("/api/v1/runs/{id}/report", h.runReportHandler).Methods("GET")
	r.HandleFunc("/api/v1/archive/runs", h.archiveRunsHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

// analyzeBody parses and analyzes the uploaded table, recording metrics.
// The returned status is meaningful only when err is non-nil.
func (h *Handler) analyzeBody(w http.ResponseWriter, r *http.Request) (*model.AnalysisResult, int, error) {
	start := time.Now()
	defer func() { h.metrics.duration.Observe(time.Since(start).Seconds()) }()

	records, err := table.Read(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.metrics.analyses.WithLabelValues(outcomeInvalid).Inc()
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read table: %w", err)
	}

	result, err := h.analyzer.Analyze(records)
	if err != nil {
		if errors.Is(err, analyzer.ErrInvalidRecord) {
			h.metrics.analyses.WithLabelValues(outcomeInvalid).Inc()
			return nil, http.StatusBadRequest, err
		}
		h.metrics.analyses.WithLabelValues(outcomeError).Inc()
		return nil, http.StatusInternalServerError, err
	}

	h.metrics.analyses.WithLabelValues(outcomeSuccess).Inc()
	h.metrics.packets.Add(float64(result.TotalPackets))
	return result, http.StatusOK, nil
}

func (h *Handler) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	result, status, err := h.analyzeBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "api"
	}
	run := model.NewRun(name, "http:"+r.RemoteAddr, result)
	if h.history != nil {
		if err := h.history.Put(run); err != nil {
			h.logger.Errorf("Failed to store run %s: %v", run.ID, err)
			http.Error(w, fmt.Sprintf("failed to store run: %v", err), http.StatusInternalServerError)
			return
		}
	}
	h.logger.Infof("Analyzed %d packets for run '%s' (%s)", result.TotalPackets, name, run.ID)
	h.writeJSON(w, run)
}

func (h *Handler) reportHandler(w http.ResponseWriter, r *http.Request) {
	result, status, err := h.analyzeBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	h.writeReport(w, result)
}

func (h *Handler) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history is not configured", http.StatusServiceUnavailable)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runs, err := h.history.List(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, runs)
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	if h.history == nil {
		http.Error(w, "history is not configured", http.StatusServiceUnavailable)
		return nil, false
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run id: %v", err), http.StatusBadRequest)
		return nil, false
	}
	run, err := h.history.Get(id)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to load run: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func (h *Handler) getRunHandler(w http.ResponseWriter, r *http.Request) {
	if run, ok := h.lookupRun(w, r); ok {
		h.writeJSON(w, run)
	}
}

func (h *Handler) runReportHandler(w http.ResponseWriter, r *http.Request) {
	if run, ok := h.lookupRun(w, r); ok {
		h.writeReport(w, run.Result)
	}
}

func (h *Handler) archiveRunsHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "clickhouse is not configured", http.StatusServiceUnavailable)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := store.RunFilter{Name: r.URL.Query().Get("name"), Limit: limit}
	if since := r.URL.Query().Get("since"); since != "" {
		if filter.Since, err = time.Parse(time.RFC3339, since); err != nil {
			http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
			return
		}
	}

	summaries, err := h.querier.QueryRuns(r.Context(), filter)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query runs: %v", err), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, summaries)
}

func parseLimit(r *http.Request) (int, error) {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit '%s'", value)
	}
	return limit, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}

func (h *Handler) writeReport(w http.ResponseWriter, result *model.AnalysisResult) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := report.Write(w, result); err != nil {
		h.logger.Warnf("Failed to send report: %v", err)
	}
}
