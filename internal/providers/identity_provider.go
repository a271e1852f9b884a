package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"moriportal/internal/models"
	"moriportal/internal/structures"
)

const (
	HeaderAccessToken = "X-Access-Token"
	identityCacheSize = 4 * 1024 * 1024
	maxAuthBodySize   = 1 << 20
)

type IdentityProviderInterface interface {
	Resolve(ctx context.Context, token string) (*models.Identity, error)
	Signup(ctx context.Context, req *models.SignupRequest) (json.RawMessage, error)
	AnonKey() string
}

// ExtractAccessToken returns the caller's user token. X-Access-Token wins;
// a Bearer token equal to the public anon key carries no user identity.
func ExtractAccessToken(r *http.Request, anonKey string) string {
	if token := strings.TrimSpace(r.Header.Get(HeaderAccessToken)); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	token = strings.TrimSpace(token)
	if token == "" || (anonKey != "" && token == anonKey) {
		return ""
	}
	return token
}

func NewIdentityProvider(conf *structures.Config, logger Logger) IdentityProviderInterface {
	if conf.Auth.Driver == "static" {
		logger.Warnf(TypeAuth, "Static identity driver enabled with %d users", len(conf.Auth.StaticUsers))
		return NewStaticIdentityProvider(conf.Auth.AnonKey, conf.Auth.StaticUsers)
	}
	return NewGoTrueIdentityProvider(conf.Auth, logger)
}

// GoTrueIdentityProvider talks to a GoTrue-compatible auth API.
// Successful resolutions are cached by token hash for CacheTTL.
type GoTrueIdentityProvider struct {
	baseURL    string
	anonKey    string
	serviceKey string
	client     *http.Client
	cache      *freecache.Cache
	ttl        int
	logger     Logger
}

func NewGoTrueIdentityProvider(conf structures.AuthConfig, logger Logger) *GoTrueIdentityProvider {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &GoTrueIdentityProvider{
		baseURL:    strings.TrimRight(conf.URL, "/"),
		anonKey:    conf.AnonKey,
		serviceKey: conf.ServiceRoleKey,
		client:     &http.Client{Timeout: timeout},
		ttl:        int(conf.CacheTTL.Seconds()),
		logger:     logger,
	}
	if p.ttl > 0 {
		p.cache = freecache.NewCache(identityCacheSize)
	}
	return p
}

func (p *GoTrueIdentityProvider) AnonKey() string {
	return p.anonKey
}

type goTrueUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name string `json:"name"`
	} `json:"user_metadata"`
}

func tokenCacheKey(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func (p *GoTrueIdentityProvider) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, models.ErrAuthMissing
	}

	if p.cache != nil {
		if raw, err := p.cache.Get(tokenCacheKey(token)); err == nil {
			var id models.Identity
			if json.Unmarshal(raw, &id) == nil {
				return &id, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIdentityUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return nil, models.ErrAuthInvalid
	default:
		return nil, fmt.Errorf("%w: %w %d", models.ErrIdentityUnavailable, models.ErrUnexpectedStatusCode, resp.StatusCode)
	}

	var user goTrueUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAuthBodySize)).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", models.ErrIdentityUnavailable, err)
	}
	if user.ID == "" {
		return nil, models.ErrAuthInvalid
	}

	id := &models.Identity{UserID: user.ID, Email: user.Email, Name: user.UserMetadata.Name}
	if p.cache != nil {
		if raw, err := json.Marshal(id); err == nil {
			_ = p.cache.Set(tokenCacheKey(token), raw, p.ttl)
		}
	}
	return id, nil
}

type goTrueSignup struct {
	Email        string            `json:"email"`
	Password     string            `json:"password"`
	UserMetadata map[string]string `json:"user_metadata"`
	EmailConfirm bool              `json:"email_confirm"`
}

type goTrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e goTrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return "request rejected"
}

func (p *GoTrueIdentityProvider) Signup(ctx context.Context, in *models.SignupRequest) (json.RawMessage, error) {
	if p.serviceKey == "" {
		return nil, models.ErrSignupNotSupported
	}

	body, err := json.Marshal(goTrueSignup{
		Email:        in.Email,
		Password:     in.Password,
		UserMetadata: map[string]string{"name": in.Name},
		EmailConfirm: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.serviceKey)
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIdentityUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIdentityUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return json.RawMessage(raw), nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var e goTrueError
		_ = json.Unmarshal(raw, &e)
		p.logger.Warnf(TypeAuth, "Signup rejected for %s: %s", in.Email, e.text())
		return nil, fmt.Errorf("%w: %s", models.ErrSignupRejected, e.text())
	default:
		return nil, fmt.Errorf("%w: %w %d", models.ErrIdentityUnavailable, models.ErrUnexpectedStatusCode, resp.StatusCode)
	}
}

// StaticIdentityProvider resolves tokens from a fixed table. Intended for
// local development and tests.
type StaticIdentityProvider struct {
	anonKey string
	mu      sync.RWMutex
	tokens  map[string]models.Identity
	emails  map[string]struct{}
}

func NewStaticIdentityProvider(anonKey string, users []structures.StaticUser) *StaticIdentityProvider {
	p := &StaticIdentityProvider{
		anonKey: anonKey,
		tokens:  make(map[string]models.Identity, len(users)),
		emails:  make(map[string]struct{}, len(users)),
	}
	for _, u := range users {
		p.tokens[u.Token] = models.Identity{UserID: u.UserID, Email: u.Email, Name: u.Name}
		if u.Email != "" {
			p.emails[strings.ToLower(u.Email)] = struct{}{}
		}
	}
	return p
}

func (p *StaticIdentityProvider) AnonKey() string {
	return p.anonKey
}

func (p *StaticIdentityProvider) Resolve(_ context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, models.ErrAuthMissing
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.tokens[token]
	if !ok {
		return nil, models.ErrAuthInvalid
	}
	return &id, nil
}

// Signup registers the account and issues it a random token.
func (p *StaticIdentityProvider) Signup(_ context.Context, in *models.SignupRequest) (json.RawMessage, error) {
	email := strings.ToLower(in.Email)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.emails[email]; exists {
		return nil, fmt.Errorf("%w: email already registered", models.ErrSignupRejected)
	}

	id := models.Identity{UserID: uuid.NewString(), Email: in.Email, Name: in.Name}
	token := uuid.NewString()
	p.tokens[token] = id
	p.emails[email] = struct{}{}

	return json.Marshal(map[string]any{
		"user":         id,
		"access_token": token,
	})
}
