package lightspeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"plantshop/internal/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const (
	// refreshWindow is how close to expiry a token may get before it is
	// proactively refreshed.
	refreshWindow = 5 * time.Minute
	// seedLifetime is assumed for a configured access token whose expiry is
	// unknown.
	seedLifetime = time.Hour
)

// TokenStore persists the current OAuth token between requests (and, for
// Redis, between processes).
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
}

// TokenRefresher performs the refresh-token grant.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// TokenProvider hands out a valid bearer token, refreshing it lazily when it
// is missing or about to expire. Safe for concurrent use.
type TokenProvider struct {
	mu           sync.Mutex
	store        TokenStore
	refresher    TokenRefresher
	refreshToken string
	now          func() time.Time
	logger       *logger.Logger
}

func NewTokenProvider(store TokenStore, refresher TokenRefresher, refreshToken string, now func() time.Time) *TokenProvider {
	if now == nil {
		now = time.Now
	}
	return &TokenProvider{
		store:        store,
		refresher:    refresher,
		refreshToken: refreshToken,
		now:          now,
		logger:       logger.Discard(),
	}
}

// WithLogger sets the logger used for refresh warnings.
func (p *TokenProvider) WithLogger(log *logger.Logger) *TokenProvider {
	if log != nil {
		p.logger = log
	}
	return p
}

// Seed stores a pre-issued access token, assumed valid for one hour, unless
// the store already holds a token (e.g. one shared through Redis).
func (p *TokenProvider) Seed(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, err := p.store.Load(ctx); err == nil && existing != nil && existing.AccessToken != "" {
		return nil
	}
	return p.store.Save(ctx, &oauth2.Token{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: p.refreshToken,
		Expiry:       p.now().Add(seedLifetime),
	})
}

// Token returns a bearer token with at least five minutes left.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if current != nil && current.AccessToken != "" && !p.expiring(current) {
		return current.AccessToken, nil
	}

	refreshToken := p.refreshToken
	if current != nil && current.RefreshToken != "" {
		refreshToken = current.RefreshToken
	}
	if refreshToken == "" {
		return "", errors.New("lightspeed: no refresh token configured")
	}

	fresh, err := p.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if current != nil && current.AccessToken != "" && p.now().Before(current.Expiry) {
			p.logger.Warn("Token refresh failed, using current token until %s: %v", current.Expiry.Format(time.RFC3339), err)
			return current.AccessToken, nil
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = refreshToken
	}
	if fresh.Expiry.IsZero() {
		fresh.Expiry = p.now().Add(seedLifetime)
	}
	if err := p.store.Save(ctx, fresh); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	p.refreshToken = fresh.RefreshToken

	return fresh.AccessToken, nil
}

// Invalidate forces the next Token call to refresh.
func (p *TokenProvider) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.store.Load(ctx)
	if err != nil || current == nil {
		return err
	}
	expired := *current
	expired.AccessToken = ""
	return p.store.Save(ctx, &expired)
}

func (p *TokenProvider) expiring(t *oauth2.Token) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !p.now().Before(t.Expiry.Add(-refreshWindow))
}

// OAuthRefresher runs the refresh-token grant against the Lightspeed OAuth
// endpoint. Lightspeed expects the client credentials in the form body.
type OAuthRefresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func NewOAuthRefresher(clientID, clientSecret, tokenURL string, httpClient *http.Client) *OAuthRefresher {
	return &OAuthRefresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}
	return r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, nil
	}
	t := *s.token
	return &t, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	s.token = &t
	return nil
}

// RedisTokenStore shares the token between instances so a rotated refresh
// token is not lost when another process performed the refresh.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

func NewRedisTokenStore(client *redis.Client, accountID string) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		key:    fmt.Sprintf("lightspeed:token:%s", accountID),
	}
}

func (s *RedisTokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t oauth2.Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	return &t, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	// the refresh token outlives the access token, so no TTL
	return s.client.Set(ctx, s.key, raw, 0).Err()
}
