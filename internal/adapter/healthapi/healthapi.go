// Package healthapi implements the external health-store port against
// an HTTP provider with OAuth2 client-credentials auth.
package healthapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"

	"healthsync/internal/domain"
)

// Ensure interface is met.
var _ domain.HealthStore = (*Client)(nil)

// defaultPollInterval paces the pseudo-observer. The provider exposes
// no push channel, so ObserveChanges polls.
const defaultPollInterval = time.Minute

// Client talks to a remote health-data API:
//
//	POST   /v1/authorize
//	GET    /v1/samples/{kind}?start=...&end=...
//	POST   /v1/samples/{kind}
//	DELETE /v1/samples/{kind}/{id}
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	stoppers map[domain.Kind]chan struct{}
}

// New creates a client for baseURL. With a token URL configured the
// HTTP client carries client-credentials tokens; otherwise requests go
// out unauthenticated (local dev providers).
func New(baseURL, tokenURL, clientID, clientSecret string, log zerolog.Logger) *Client {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	if tokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		http:         httpClient,
		pollInterval: defaultPollInterval,
		log:          log.With().Str("adapter", "healthapi").Logger(),
		stoppers:     make(map[domain.Kind]chan struct{}),
	}
}

// SetPollInterval overrides the observer polling cadence.
func (c *Client) SetPollInterval(d time.Duration) { c.pollInterval = d }

// RequestAuthorization asks the provider to grant access to the kinds.
func (c *Client) RequestAuthorization(ctx context.Context, kinds []domain.Kind) error {
	body, err := json.Marshal(map[string][]domain.Kind{"kinds": kinds})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/authorize", body)
	if err != nil {
		return err
	}
	defer drain(resp)
	return classify(resp.StatusCode)
}

// FetchSamples returns the provider's records of the kind in [start, end).
func (c *Client) FetchSamples(ctx context.Context, kind domain.Kind, start, end time.Time) ([]domain.RemoteSample, error) {
	path := fmt.Sprintf("/v1/samples/%s?start=%s&end=%s",
		url.PathEscape(string(kind)),
		url.QueryEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)))
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if err := classify(resp.StatusCode); err != nil {
		return nil, err
	}
	var samples []domain.RemoteSample
	if err := json.NewDecoder(resp.Body).Decode(&samples); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return samples, nil
}

// SaveSample mirrors a local entry to the provider.
func (c *Client) SaveSample(ctx context.Context, kind domain.Kind, s domain.RemoteSample) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/samples/"+url.PathEscape(string(kind)), body)
	if err != nil {
		return err
	}
	defer drain(resp)
	return classify(resp.StatusCode)
}

// DeleteSample removes a previously mirrored record.
func (c *Client) DeleteSample(ctx context.Context, kind domain.Kind, id string) error {
	path := "/v1/samples/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(id)
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	return classify(resp.StatusCode)
}

// ObserveChanges polls the provider on an interval and invokes fn each
// tick; the reconciler's dedupe makes spurious ticks harmless.
func (c *Client) ObserveChanges(kind domain.Kind, fn func()) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.stoppers[kind]; ok {
		return nil, fmt.Errorf("observer already registered for %s", kind)
	}
	done := make(chan struct{})
	c.stoppers[kind] = done

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	stop := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ch, ok := c.stoppers[kind]; ok {
			close(ch)
			delete(c.stoppers, kind)
		}
	}
	return stop, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return resp, nil
}

func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrUnauthorized
	default:
		return fmt.Errorf("%w: status %d", domain.ErrStoreUnavailable, status)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
