package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

// DefaultTimeout bounds a single registry call.
const DefaultTimeout = 10 * time.Second

// HTTPRegistry queries a registry mirror exposing GET {base}/cases/{number}.
// 404 maps to ErrNotFound; transport errors, other statuses and undecodable
// bodies map to ErrUnavailable.
type HTTPRegistry struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRegistry returns a client for baseURL. A zero timeout uses DefaultTimeout.
func NewHTTPRegistry(baseURL string, timeout time.Duration) *HTTPRegistry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Search implements Gateway.
func (r *HTTPRegistry) Search(ctx context.Context, number string) (*domain.CaseSnapshot, error) {
	start := time.Now()
	reqURL := r.baseURL + "/cases/" + url.PathEscape(number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("number", number).Msg("registry request failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	log.Ctx(ctx).Debug().
		Str("number", number).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("registry lookup")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var snap domain.CaseSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if snap.Number == "" {
		snap.Number = number
	}
	valid := snap.Dispatches[:0]
	for _, d := range snap.Dispatches {
		if d.Code == "" || !d.Status.Valid() {
			log.Ctx(ctx).Warn().Str("number", number).Str("code", d.Code).Msg("registry returned malformed dispatch; dropped")
			continue
		}
		valid = append(valid, d)
	}
	snap.Dispatches = valid
	if snap.Dispatches == nil {
		snap.Dispatches = []domain.Dispatch{}
	}
	return &snap, nil
}
