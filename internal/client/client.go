package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"moriportal/internal/models"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	headerAccessToken = "X-Access-Token"
	maxResponseSize   = 1 << 20
)

type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// Client calls the engagement API. Bulk counts fall back to the last
// successful response when the server cannot be reached.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	log        zerolog.Logger

	lastMu    sync.RWMutex
	lastKnown map[models.Kind]map[string]int
}

func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
		lastKnown:  make(map[models.Kind]map[string]int),
	}
}

type apiError struct {
	Error string `json:"error"`
}

// do sends one request and decodes a 2xx body into out. Transport failures
// and 5xx answers wrap models.ErrNetwork.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	if token != "" {
		req.Header.Set(headerAccessToken, token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", models.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", models.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		_ = json.Unmarshal(raw, &e)
		return statusError(resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

func statusError(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized:
		if msg == models.ErrAuthMissing.Error() {
			return models.ErrAuthMissing
		}
		return models.ErrAuthInvalid
	case status >= 500 || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w %d: %s", models.ErrNetwork, models.ErrUnexpectedStatusCode, status, msg)
	default:
		return fmt.Errorf("%w: %s", models.ErrValidation, msg)
	}
}

func (c *Client) FetchSettings(ctx context.Context, token string) (*models.UserSettings, error) {
	var resp struct {
		Settings *models.UserSettings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "/settings", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Settings, nil
}

func (c *Client) PushSettings(ctx context.Context, token string, patch *models.SettingsPatch) (*models.UserSettings, error) {
	var resp struct {
		Settings *models.UserSettings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodPost, "/settings", token, patch, &resp); err != nil {
		return nil, err
	}
	return resp.Settings, nil
}

func (c *Client) RecordView(ctx context.Context, articleID string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodPost, "/articles/"+url.PathEscape(articleID)+"/view", "", nil, &resp)
	return resp.Count, err
}

func (c *Client) VisitCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/visit-count", "", nil, &resp)
	return resp.Count, err
}

func (c *Client) ToggleLike(ctx context.Context, token, articleID string) (models.ToggleResult, error) {
	var resp struct {
		Liked bool `json:"liked"`
		Count int  `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/articles/"+url.PathEscape(articleID)+"/like", token, nil, &resp); err != nil {
		return models.ToggleResult{}, err
	}
	return models.ToggleResult{IsOn: resp.Liked, Count: resp.Count}, nil
}

func (c *Client) ToggleCollect(ctx context.Context, token, articleID string) (models.ToggleResult, error) {
	var resp struct {
		Collected bool `json:"collected"`
		Count     int  `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/articles/"+url.PathEscape(articleID)+"/collect", token, nil, &resp); err != nil {
		return models.ToggleResult{}, err
	}
	return models.ToggleResult{IsOn: resp.Collected, Count: resp.Count}, nil
}

func countsPath(kind models.Kind) string {
	switch kind {
	case models.KindLike:
		return "/articles/likes"
	case models.KindCollect:
		return "/articles/collection-counts"
	default:
		return "/articles/counts"
	}
}

// Counts returns all counts of kind. On a network failure it returns the
// last known counts (empty when there are none) alongside the error.
func (c *Client) Counts(ctx context.Context, kind models.Kind) (map[string]int, error) {
	var resp struct {
		Counts map[string]int `json:"counts"`
	}
	err := c.do(ctx, http.MethodGet, countsPath(kind), "", nil, &resp)
	if err != nil {
		if errors.Is(err, models.ErrNetwork) {
			c.log.Warn().Err(err).Str("kind", string(kind)).Msg("serving last known counts")
			return c.lastKnownCounts(kind), err
		}
		return nil, err
	}
	if resp.Counts == nil {
		resp.Counts = map[string]int{}
	}

	c.lastMu.Lock()
	c.lastKnown[kind] = resp.Counts
	c.lastMu.Unlock()
	return copyCounts(resp.Counts), nil
}

func (c *Client) lastKnownCounts(kind models.Kind) map[string]int {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	return copyCounts(c.lastKnown[kind])
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (c *Client) UserToggles(ctx context.Context, token string, kind models.Kind) ([]string, error) {
	path, field := "/articles/user-likes", "likes"
	if kind == models.KindCollect {
		path, field = "/articles/user-collections", "collections"
	}

	var resp map[string][]string
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	ids := resp[field]
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

type signupResponse struct {
	Data struct {
		AccessToken string           `json:"access_token"`
		User        *models.Identity `json:"user"`
	} `json:"data"`
}

// Signup creates an account. The returned token is only set by identity
// drivers that issue one at signup.
func (c *Client) Signup(ctx context.Context, req *models.SignupRequest) (string, error) {
	var resp signupResponse
	if err := c.do(ctx, http.MethodPost, "/signup", "", req, &resp); err != nil {
		return "", err
	}
	return resp.Data.AccessToken, nil
}
