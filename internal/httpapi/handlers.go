// Package httpapi exposes the subscription and report endpoints. Handlers
// validate, delegate to the registry, job queue and distributor, and render
// JSON; generation itself never runs on the request path.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamesmontemagno/feedbackflow-sub002/internal/core/domain"
	apperrors "github.com/jamesmontemagno/feedbackflow-sub002/internal/core/errors"
	"github.com/jamesmontemagno/feedbackflow-sub002/internal/registry"
)

// Registry is the dedup registry surface the handlers need.
type Registry interface {
	AddOrIncrement(ctx context.Context, platformType, target string) (string, bool, error)
	Decrement(ctx context.Context, id string) (registry.DecrementResult, error)
	List(ctx context.Context) ([]domain.ReportRequest, error)
}

// JobQueue enqueues background generations and reports their status.
type JobQueue interface {
	Enqueue(ctx context.Context, requestID, platformType, target string) (string, error)
	Get(ctx context.Context, id string) (*domain.GenerationJob, error)
}

// ReportStore resolves persisted reports.
type ReportStore interface {
	GetReport(ctx context.Context, id string) (*domain.Report, error)
	LatestReportForKey(ctx context.Context, key string) (*domain.Report, error)
	FilterReportsByKeys(ctx context.Context, keys []string) ([]domain.Report, error)
}

// SummaryStore lists past batch run summaries.
type SummaryStore interface {
	ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

// Distributor triggers an on-demand admin delivery.
type Distributor interface {
	SendNow(ctx context.Context, configID string) error
}

// API bundles the handler dependencies.
type API struct {
	registry    Registry
	jobs        JobQueue
	reports     ReportStore
	summaries   SummaryStore
	distributor Distributor
	logger      *zerolog.Logger
}

func NewAPI(reg Registry, jobs JobQueue, reports ReportStore, summaries SummaryStore, dist Distributor, logger *zerolog.Logger) *API {
	return &API{
		registry:    reg,
		jobs:        jobs,
		reports:     reports,
		summaries:   summaries,
		distributor: dist,
		logger:      logger,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

type addRequestPayload struct {
	Type      string `json:"type"`
	Subreddit string `json:"subreddit,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Repo      string `json:"repo,omitempty"`
}

// target resolves the subscription target from the platform-specific fields.
func (p addRequestPayload) target() string {
	if subreddit := strings.TrimSpace(p.Subreddit); subreddit != "" {
		return subreddit
	}

	owner := strings.TrimSpace(p.Owner)
	repo := strings.TrimSpace(p.Repo)

	if owner != "" && repo != "" {
		return owner + "/" + repo
	}

	return ""
}

type addRequestResponse struct {
	ID      string `json:"id"`
	JobID   string `json:"jobId,omitempty"`
	Message string `json:"message"`
}

// AddReportRequest subscribes to a report. A duplicate subscribe is a normal
// increment, never a conflict; only a brand-new id enqueues a generation job.
func (a *API) AddReportRequest(w http.ResponseWriter, r *http.Request) {
	var payload addRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_payload", "request body is not valid JSON")

		return
	}

	platformType := strings.TrimSpace(payload.Type)
	if platformType == "" {
		writeError(w, r, http.StatusBadRequest, "missing_type", "type is required")

		return
	}

	target := payload.target()
	if target == "" {
		writeError(w, r, http.StatusBadRequest, "missing_target", "subreddit or owner and repo are required")

		return
	}

	id, isNew, err := a.registry.AddOrIncrement(r.Context(), platformType, target)
	if err != nil {
		a.serverError(w, r, err, "add report request failed")

		return
	}

	resp := addRequestResponse{ID: id, Message: "Report request added successfully"}

	if isNew {
		jobID, err := a.jobs.Enqueue(r.Context(), id, platformType, target)
		if err != nil {
			// The subscription exists; the scheduled batch will pick it up.
			a.logger.Error().Err(err).Str("request_id", id).Msg("enqueue generation job failed")
		} else {
			resp.JobID = jobID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type removeRequestResponse struct {
	Message   string `json:"message"`
	Deleted   bool   `json:"deleted"`
	Remaining int    `json:"remaining"`
}

// RemoveReportRequest unsubscribes one subscriber from a request id.
func (a *API) RemoveReportRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result, err := a.registry.Decrement(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrRequestNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report request not found")

			return
		}

		a.serverError(w, r, err, "remove report request failed")

		return
	}

	writeJSON(w, http.StatusOK, removeRequestResponse{
		Message:   "Request removed successfully",
		Deleted:   result.Deleted,
		Remaining: result.Remaining,
	})
}

// ListReportRequests returns every active subscription record.
func (a *API) ListReportRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := a.registry.List(r.Context())
	if err != nil {
		a.serverError(w, r, err, "list report requests failed")

		return
	}

	if requests == nil {
		requests = []domain.ReportRequest{}
	}

	writeJSON(w, http.StatusOK, map[string][]domain.ReportRequest{"requests": requests})
}

type filterRequestPayload struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type reportSummary struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	SubSource    string    `json:"subSource"`
	GeneratedAt  time.Time `json:"generatedAt"`
	CutoffDate   time.Time `json:"cutoffDate"`
	ThreadCount  int       `json:"threadCount"`
	CommentCount int       `json:"commentCount"`
}

// FilterReports matches the caller's subscriptions against the latest
// persisted report per key.
func (a *API) FilterReports(w http.ResponseWriter, r *http.Request) {
	var subscriptions []filterRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&subscriptions); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_payload", "request body is not valid JSON")

		return
	}

	keys := make([]string, 0, len(subscriptions))

	for _, sub := range subscriptions {
		if strings.TrimSpace(sub.Type) == "" || strings.TrimSpace(sub.Target) == "" {
			continue
		}

		keys = append(keys, domain.RequestID(sub.Type, sub.Target))
	}

	summaries := []reportSummary{}

	if len(keys) > 0 {
		reports, err := a.reports.FilterReportsByKeys(r.Context(), keys)
		if err != nil {
			a.serverError(w, r, err, "filter reports failed")

			return
		}

		for _, report := range reports {
			summaries = append(summaries, reportSummary{
				ID:           report.ID,
				Source:       report.Source,
				SubSource:    report.SubSource,
				GeneratedAt:  report.GeneratedAt,
				CutoffDate:   report.CutoffDate,
				ThreadCount:  report.ThreadCount,
				CommentCount: report.CommentCount,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string][]reportSummary{"reports": summaries})
}

// GetReportByID returns one persisted report, HTML included.
func (a *API) GetReportByID(w http.ResponseWriter, r *http.Request) {
	report, err := a.reports.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrReportNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report not found")

			return
		}

		a.serverError(w, r, err, "report lookup failed")

		return
	}

	writeJSON(w, http.StatusOK, report)
}

// LatestReport returns the newest report for a (type, target) pair.
func (a *API) LatestReport(w http.ResponseWriter, r *http.Request) {
	platformType := strings.TrimSpace(r.URL.Query().Get("type"))
	target := strings.TrimSpace(r.URL.Query().Get("target"))

	if platformType == "" || target == "" {
		writeError(w, r, http.StatusBadRequest, "missing_key", "type and target query parameters are required")

		return
	}

	report, err := a.reports.LatestReportForKey(r.Context(), domain.RequestID(platformType, target))
	if err != nil {
		if errors.Is(err, apperrors.ErrReportNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "no report generated for this target yet")

			return
		}

		a.serverError(w, r, err, "latest report lookup failed")

		return
	}

	writeJSON(w, http.StatusOK, report)
}

const defaultSummaryLimit = 20

// ListRunSummaries returns recent batch run summaries, newest first.
func (a *API) ListRunSummaries(w http.ResponseWriter, r *http.Request) {
	limit := defaultSummaryLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")

			return
		}

		limit = parsed
	}

	summaries, err := a.summaries.ListRunSummaries(r.Context(), limit)
	if err != nil {
		a.serverError(w, r, err, "list run summaries failed")

		return
	}

	if summaries == nil {
		summaries = []domain.RunSummary{}
	}

	writeJSON(w, http.StatusOK, map[string][]domain.RunSummary{"summaries": summaries})
}

// SendAdminReportNow triggers an on-demand delivery for one admin config.
func (a *API) SendAdminReportNow(w http.ResponseWriter, r *http.Request) {
	configID := strings.TrimSpace(r.URL.Query().Get("id"))
	if configID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_id", "id query parameter is required")

		return
	}

	if err := a.distributor.SendNow(r.Context(), configID); err != nil {
		if errors.Is(err, apperrors.ErrConfigNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "admin report config not found")

			return
		}

		a.serverError(w, r, err, "on-demand admin report failed")

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Admin report sent"})
}

// JobStatus reports the state of a queued generation job.
func (a *API) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrJobNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")

			return
		}

		a.serverError(w, r, err, "job lookup failed")

		return
	}

	writeJSON(w, http.StatusOK, job)
}

// serverError logs the full error and renders a generic 500. Detail stays in
// the logs, keyed by request id.
func (a *API) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	a.logger.Error().
		Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg(msg)

	writeError(w, r, http.StatusInternalServerError, "internal", "internal server error")
}
