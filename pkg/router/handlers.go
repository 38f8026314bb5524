package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/lattice-compute/routectl/pkg/apierr"
)

const maxRequestBytes = 1 << 20 // 1MB, matching the teacher's ingress cap

// Mux returns an *http.ServeMux wired with the §6 external interface:
// POST /decisions, POST /feedback, GET /status, GET /metrics.
func (r *Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/decisions", r.handleDecide)
	mux.HandleFunc("/feedback", r.handleFeedback)
	mux.HandleFunc("/status", r.handleStatus)
	mux.HandleFunc("/metrics", r.handleMetrics)
	return mux
}

func (r *Router) handleDecide(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.New(apierr.KindInvalidInput, "method not allowed"))
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxRequestBytes)
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.Wrap(apierr.KindInvalidInput, "invalid request body", err))
		return
	}
	if err := r.ingress.validateDecide(raw); err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, err)
		return
	}
	var body DecideRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.Wrap(apierr.KindInvalidInput, "invalid request body", err))
		return
	}

	resp, err := r.Decide(req.Context(), body)
	if err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleFeedback(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.New(apierr.KindInvalidInput, "method not allowed"))
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxRequestBytes)
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.Wrap(apierr.KindInvalidInput, "invalid request body", err))
		return
	}
	if err := r.ingress.validateFeedback(raw); err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, err)
		return
	}
	var body FeedbackRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.Wrap(apierr.KindInvalidInput, "invalid request body", err))
		return
	}

	resp, err := r.Feedback(req.Context(), body)
	if err != nil {
		apierr.WriteHTTP(w, r.deps.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.New(apierr.KindInvalidInput, "method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, r.Status())
}

func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		apierr.WriteHTTP(w, r.deps.Logger, apierr.New(apierr.KindInvalidInput, "method not allowed"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = w.Write([]byte(r.metrics.RenderPrometheus()))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
