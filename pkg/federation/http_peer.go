package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// defaultPeerRateLimit bounds outbound requests to a single peer, matching
// the teacher's pkg/arc connector rate-limiting idiom so a large backlog
// sync never hammers a peer's ingress.
const defaultPeerRateLimit rate.Limit = 20
const defaultPeerBurst = 5

// HTTPPeer is a federation counterpart reachable over a small REST surface:
// GET {base}/records?cursor=... for paging ids, GET {base}/records/{id} for
// a single record. Grounded on pkg/adaptive.HTTPSource's single-attempt,
// no-retry call shape — a failed page or record fetch surfaces as a Go
// error here (unlike HTTPSource) because federation sync, unlike the
// decide() hot path, is allowed to fail loudly and retry on the next run.
type HTTPPeer struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
	limiter *rate.Limiter
}

// NewHTTPPeer constructs a peer client against baseURL with the given
// per-call timeout and the default outbound rate limit.
func NewHTTPPeer(baseURL string, timeout time.Duration) *HTTPPeer {
	return &HTTPPeer{
		BaseURL: baseURL,
		Client:  &http.Client{},
		Timeout: timeout,
		limiter: rate.NewLimiter(defaultPeerRateLimit, defaultPeerBurst),
	}
}

// NewHTTPPeerWithLimit constructs a peer client with an explicit outbound
// rate limit, for peers known to need tighter or looser throttling than the
// default.
func NewHTTPPeerWithLimit(baseURL string, timeout time.Duration, r rate.Limit, burst int) *HTTPPeer {
	p := NewHTTPPeer(baseURL, timeout)
	p.limiter = rate.NewLimiter(r, burst)
	return p
}

type listIDsResponse struct {
	IDs        []string `json:"ids"`
	NextCursor string   `json:"next_cursor"`
}

func (p *HTTPPeer) ListIDs(ctx context.Context, cursor string) ([]string, string, error) {
	u, err := url.Parse(p.BaseURL + "/records")
	if err != nil {
		return nil, "", fmt.Errorf("federation: invalid peer url: %w", err)
	}
	q := u.Query()
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	var body listIDsResponse
	if err := p.getJSON(ctx, u.String(), &body); err != nil {
		return nil, "", err
	}
	return body.IDs, body.NextCursor, nil
}

func (p *HTTPPeer) FetchRecord(ctx context.Context, id string) (Record, error) {
	u := fmt.Sprintf("%s/records/%s", p.BaseURL, url.PathEscape(id))
	var rec contracts.FederationRecord
	if err := p.getJSON(ctx, u, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *HTTPPeer) getJSON(ctx context.Context, u string, out any) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("federation: rate limit wait: %w", err)
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("federation: build request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("federation: peer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("federation: peer returned status %d for %s", resp.StatusCode, u)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("federation: decode peer response: %w", err)
	}
	return nil
}
