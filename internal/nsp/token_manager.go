package nsp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/config"
)

// tokenSet is the auth server's token response, persisted verbatim.
type tokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// TokenManager handles client-credentials OAuth2 against the management
// platform. Tokens are persisted to a file so restarts reuse a still-valid
// token; expiry is probed by decoding the access token's exp claim. The
// token is refreshed when less than refreshBefore of validity remains,
// falling back to a fresh grant when the refresh is rejected.
type TokenManager struct {
	authURL       string
	revokeURL     string
	clientID      string
	clientSecret  string
	tokenFile     string
	refreshBefore time.Duration

	client *resty.Client
	logger *zap.Logger
	mu     sync.Mutex
}

// NewTokenManager creates a token manager from the NSP configuration.
func NewTokenManager(cfg *config.NSPConfig, logger *zap.Logger) *TokenManager {
	client := resty.New().SetTimeout(30 * time.Second)
	if cfg.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &TokenManager{
		authURL:       cfg.AuthURL,
		revokeURL:     cfg.RevokeURL,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		tokenFile:     cfg.TokenFile,
		refreshBefore: time.Duration(cfg.RefreshBefore) * time.Second,
		client:        client,
		logger:        logger,
	}
}

// AccessToken returns a currently-valid access token, acquiring or
// refreshing one as needed.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureToken(ctx); err != nil {
		return "", err
	}

	tokens, err := m.loadTokens()
	if err != nil {
		return "", err
	}
	if tokens == nil || tokens.AccessToken == "" {
		return "", fmt.Errorf("no access token available after authentication")
	}

	return tokens.AccessToken, nil
}

// EnsureToken makes sure a valid token is on disk, without returning it.
func (m *TokenManager) EnsureToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureToken(ctx)
}

func (m *TokenManager) ensureToken(ctx context.Context) error {
	tokens, err := m.loadTokens()
	if err != nil {
		m.logger.Warn("Failed to load persisted tokens", zap.Error(err))
		tokens = nil
	}

	if tokens == nil || tokens.AccessToken == "" {
		return m.requestToken(ctx)
	}

	exp, ok := tokenExpiry(tokens.AccessToken)
	if ok && time.Until(exp) >= m.refreshBefore {
		return nil
	}

	if m.refreshToken(ctx, tokens) {
		return nil
	}
	return m.requestToken(ctx)
}

// Revoke revokes the persisted access token and removes the token file.
// Best effort: a missing token is not an error.
func (m *TokenManager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens, err := m.loadTokens()
	if err != nil || tokens == nil || tokens.AccessToken == "" {
		return nil
	}

	m.logger.Info("Revoking access token")

	_, err = m.client.R().
		SetContext(ctx).
		SetBasicAuth(m.clientID, m.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"token":           tokens.AccessToken,
			"token_type_hint": "access_token",
		}).
		Post(m.revokeURL)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	if err := os.Remove(m.tokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}

	return nil
}

func (m *TokenManager) requestToken(ctx context.Context) error {
	m.logger.Info("Requesting new access token")

	var tokens tokenSet
	resp, err := m.client.R().
		SetContext(ctx).
		SetBasicAuth(m.clientID, m.clientSecret).
		SetBody(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tokens).
		Post(m.authURL)
	if err != nil {
		return fmt.Errorf("failed to request token: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("token request rejected: %s", resp.Status())
	}

	return m.saveTokens(&tokens)
}

// refreshToken attempts a refresh-token grant. Returns false when no
// refresh is possible so the caller falls back to a fresh grant.
func (m *TokenManager) refreshToken(ctx context.Context, tokens *tokenSet) bool {
	if tokens.RefreshToken == "" {
		return false
	}

	m.logger.Info("Refreshing access token")

	var refreshed tokenSet
	resp, err := m.client.R().
		SetContext(ctx).
		SetBasicAuth(m.clientID, m.clientSecret).
		SetBody(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": tokens.RefreshToken,
		}).
		SetResult(&refreshed).
		Post(m.authURL)
	if err != nil || resp.IsError() {
		return false
	}

	if err := m.saveTokens(&refreshed); err != nil {
		m.logger.Warn("Failed to persist refreshed token", zap.Error(err))
		return false
	}

	return true
}

// saveTokens writes the token file atomically with owner-only permissions.
func (m *TokenManager) saveTokens(tokens *tokenSet) error {
	if tokens == nil || tokens.AccessToken == "" {
		return fmt.Errorf("invalid token response from auth server")
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.tokenFile), 0o755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp := m.tokenFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, m.tokenFile); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}

func (m *TokenManager) loadTokens() (*tokenSet, error) {
	data, err := os.ReadFile(m.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var tokens tokenSet
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &tokens, nil
}

// tokenExpiry decodes the exp claim without verifying the signature; only
// the auth server can verify it, we just need the deadline.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
