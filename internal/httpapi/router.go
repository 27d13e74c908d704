package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"
)

// NewRouter wires the endpoint table and the middleware chain. Only the
// on-demand admin send is token-guarded; the rest of the surface sits behind
// the upstream gateway.
func NewRouter(api *API, adminToken string, logger *zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /AddReportRequest", api.AddReportRequest)
	mux.HandleFunc("DELETE /reportrequest/{id}", api.RemoveReportRequest)
	mux.HandleFunc("GET /ListReportRequests", api.ListReportRequests)
	mux.HandleFunc("POST /FilterReports", api.FilterReports)
	mux.HandleFunc("POST /SendAdminReportNow", AdminAuth(adminToken, api.SendAdminReportNow))
	mux.HandleFunc("GET /jobs/{id}", api.JobStatus)
	mux.HandleFunc("GET /reports/latest", api.LatestReport)
	mux.HandleFunc("GET /reports/{id}", api.GetReportByID)
	mux.HandleFunc("GET /RunSummaries", AdminAuth(adminToken, api.ListRunSummaries))

	handler := http.Handler(mux)
	handler = RequestLogger(logger)(handler)
	handler = RequestID(handler)

	return handler
}
