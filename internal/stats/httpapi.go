package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPAPI queries a hosted video-info service.
type HTTPAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPAPI(baseURL, apiKey string, timeout time.Duration) *HTTPAPI {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPAPI{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPAPI) Name() string { return "http" }

func (h *HTTPAPI) FetchVideoStats(ctx context.Context, videoURL string) (*Stats, error) {
	if h.baseURL == "" {
		return nil, errors.New("stats api base url is empty")
	}

	endpoint := h.baseURL + "/video?" + url.Values{"url": {videoURL}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUnavailable
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stats api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info videoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode stats api response: %v", ErrUnavailable, err)
	}
	return info.toStats(), nil
}
