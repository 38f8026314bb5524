// Package apierr classifies the control plane's error kinds (§7) and
// renders them as RFC 7807 Problem Detail responses at the ingress
// boundary. No internal detail (stack traces, file paths, driver errors)
// ever reaches the caller — only Kind and a redacted Reason do.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Kind is one of the error kinds enumerated in spec §7.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindNoViableProviders  Kind = "no_viable_providers"
	KindPolicyReject       Kind = "policy_reject"
	KindAlreadyFinalized   Kind = "already_finalized"
	KindUnknownDecision    Kind = "unknown_decision"
	KindUpstreamTimeout    Kind = "upstream_timeout"
	KindConflict           Kind = "conflict"
	KindCorruption         Kind = "corruption"
	KindInternal           Kind = "internal"
)

// httpStatus maps each Kind to the status code used at the HTTP boundary.
var httpStatus = map[Kind]int{
	KindInvalidInput:      http.StatusBadRequest,
	KindNoViableProviders: http.StatusConflict,
	KindPolicyReject:      http.StatusForbidden,
	KindAlreadyFinalized:  http.StatusConflict,
	KindUnknownDecision:   http.StatusNotFound,
	KindUpstreamTimeout:   http.StatusGatewayTimeout,
	KindConflict:          http.StatusConflict,
	KindCorruption:        http.StatusInternalServerError,
	KindInternal:          http.StatusInternalServerError,
}

// Error is the typed error classified at a component boundary. Reason is
// the only detail that may ever cross the ingress boundary; the wrapped
// cause (Cause) is logged server-side and never serialized.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a classified error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap classifies an underlying error at a component boundary, the way
// callers are expected to do: classify at the boundary, never retry
// silently (§7).
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Is supports errors.Is comparisons against a bare Kind sentinel created
// with New(kind, "").
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// StatusFor returns the HTTP status associated with a Kind, defaulting to
// 500 for unrecognized kinds.
func StatusFor(kind Kind) int {
	if s, ok := httpStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// problemDetail is the RFC 7807 response body.
type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Kind   Kind   `json:"kind"`
}

// WriteHTTP renders err as an RFC 7807 Problem Detail response. If err is
// not an *Error, it is treated as an unclassified internal failure: its
// detail is logged but never sent to the client.
func WriteHTTP(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ce *Error
	if !errors.As(err, &ce) {
		ce = &Error{Kind: KindInternal, Reason: "an unexpected error occurred", Cause: err}
	}

	if ce.Cause != nil && logger != nil {
		logger.Error("request failed", "kind", ce.Kind, "reason", ce.Reason, "cause", ce.Cause)
	}

	status := StatusFor(ce.Kind)
	detail := ce.Reason
	if ce.Kind == KindInternal {
		detail = "an unexpected error occurred"
	}

	body := problemDetail{
		Type:   fmt.Sprintf("https://gpuroute.internal/errors/%s", ce.Kind),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Kind:   ce.Kind,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
