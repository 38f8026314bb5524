package adaptive

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HTTPSource samples the adaptive signal from a JSON RPC endpoint. Unlike
// the teacher's resiliency.EnhancedClient, it performs no retries and no
// backoff: §4.7 requires a bounded-latency call on the decide() hot path,
// and a retry loop would violate that bound. A single failed attempt is
// reported as unavailable; recovery is left to CachingSource's last-good
// value and to the next decide() call trying again.
type HTTPSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// signalResponse is the wire shape returned by the signal endpoint.
type signalResponse struct {
	Value float64 `json:"value"`
}

// NewHTTPSource constructs a source that calls url with the given
// per-request timeout. timeout is enforced independently of any deadline
// already on the context passed to Sample; whichever is tighter wins.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:     url,
		client:  &http.Client{},
		timeout: timeout,
	}
}

func (s *HTTPSource) Sample(ctx context.Context) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var body signalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false
	}

	if body.Value < 0 || body.Value > 1 {
		return 0, false
	}
	return body.Value, true
}
