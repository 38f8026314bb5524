package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPDispatcher sends a dispatch request as a JSON POST to a per-provider
// base URL, grounded on pkg/adaptive.HTTPSource's single-attempt call
// shape: no retries here either, since Dispatch's own deadline (§4.4) is
// the only bound a provider call gets.
type HTTPDispatcher struct {
	// ProviderURL maps a providerID to the endpoint that accepts its
	// dispatch requests.
	ProviderURL map[string]string
	Client      *http.Client
}

// NewHTTPDispatcher constructs a dispatcher over the given provider
// endpoint map.
func NewHTTPDispatcher(providerURL map[string]string) *HTTPDispatcher {
	return &HTTPDispatcher{ProviderURL: providerURL, Client: &http.Client{}}
}

type dispatchWireResult struct {
	Outcome   string `json:"outcome"`
	Handle    string `json:"handle"`
	ErrorKind string `json:"error_kind"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, providerID, decisionID string, request map[string]any) (DispatchResult, error) {
	endpoint, ok := d.ProviderURL[providerID]
	if !ok {
		return DispatchResult{}, fmt.Errorf("executor: no endpoint configured for provider %q", providerID)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("executor: marshal dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return DispatchResult{}, fmt.Errorf("executor: build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("executor: dispatch to %s: %w", providerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return DispatchResult{Outcome: OutcomeFailure, ErrorKind: fmt.Sprintf("status_%d", resp.StatusCode)}, nil
	}
	if resp.StatusCode >= 400 {
		return DispatchResult{}, fmt.Errorf("executor: provider %s rejected dispatch: status %d", providerID, resp.StatusCode)
	}

	var wire dispatchWireResult
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return DispatchResult{Outcome: OutcomeFailure, ErrorKind: "invalid_response"}, nil
	}

	outcome := DispatchOutcome(wire.Outcome)
	switch outcome {
	case OutcomeSuccess, OutcomeFailure, OutcomeTimeout:
	default:
		outcome = OutcomeFailure
	}

	return DispatchResult{Outcome: outcome, Handle: wire.Handle, ErrorKind: wire.ErrorKind}, nil
}
