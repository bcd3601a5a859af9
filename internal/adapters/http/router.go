package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/cv-sentinel/internal/core/ports"
	"github.com/kirillkom/cv-sentinel/internal/observability/metrics"
)

// maxUploadBytes bounds one résumé upload; anything larger is not a
// CV.
const maxUploadBytes = 10 << 20

const defaultListLimit = 50

// Options carries the traffic knobs for the public API surface. Zero
// values disable the corresponding gate.
type Options struct {
	AuthToken      string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

type Router struct {
	intake      ports.CVIntake
	evaluations ports.EvaluationService
	serverMtx   *metrics.HTTPServerMetrics
	opts        Options
}

func NewRouter(intake ports.CVIntake, evaluations ports.EvaluationService, serverMtx *metrics.HTTPServerMetrics, opts Options) *Router {
	return &Router{
		intake:      intake,
		evaluations: evaluations,
		serverMtx:   serverMtx,
		opts:        opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/cvs", rt.uploadCV)
	mux.HandleFunc("/v1/evaluations", rt.evaluationCollection)
	mux.HandleFunc("/v1/evaluations/export", rt.exportEvaluations)
	mux.HandleFunc("/v1/evaluations/", rt.evaluationByCV)
	if rt.serverMtx != nil {
		mux.Handle("/metrics", rt.serverMtx.Handler())
	}

	var handler http.Handler = mux
	handler = authMiddleware(handler, rt.opts.AuthToken)
	if rt.opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, backpressureWait)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.serverMtx != nil {
		handler = rt.serverMtx.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadCV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable upload"})
		return
	}
	if len(raw) > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
		return
	}

	cv, err := rt.intake.Ingest(r.Context(), fileHeader.Filename, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cv)
}

// evaluations_ serves the collection endpoint: submit on POST, list on
// GET.
func (rt *Router) evaluationCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.submitEvaluation(w, r)
	case http.MethodGet:
		rt.listEvaluations(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) submitEvaluation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CVID string `json:"cv_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.CVID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cv_id is required"})
		return
	}

	handle, err := rt.evaluations.SubmitEvaluation(r.Context(), req.CVID)
	if err != nil {
		if rt.serverMtx != nil {
			rt.serverMtx.RecordSubmission("api", "rejected")
		}
		writeError(w, err)
		return
	}
	if rt.serverMtx != nil {
		rt.serverMtx.RecordSubmission("api", "accepted")
	}
	writeJSON(w, http.StatusAccepted, handle)
}

func (rt *Router) listEvaluations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results, err := rt.evaluations.ListResults(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": results})
}

// evaluationByCV serves /v1/evaluations/{cv_id} and
// /v1/evaluations/{cv_id}/status.
func (rt *Router) evaluationByCV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/evaluations/")
	cvID, sub, _ := strings.Cut(rest, "/")
	if cvID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cv id is required"})
		return
	}

	switch sub {
	case "":
		result, err := rt.evaluations.GetResult(r.Context(), cvID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "status":
		state, err := rt.evaluations.GetStatus(r.Context(), cvID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"cv_id": cvID, "state": string(state)})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
