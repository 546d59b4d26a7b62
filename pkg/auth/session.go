// Package auth holds the access token used by every platform call and
// refreshes it on demand.
//
// A Session is passed explicitly to the workflows that need it. Only the
// login path writes the token; readers observing an expired token call
// Refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Authenticator is the token-issuing collaborator.
type Authenticator interface {
	LoginWithKey(ctx context.Context, apiKey string) (*model.LoginResponse, error)
	SignupDefault(ctx context.Context) (*model.LoginResponse, error)
}

// Session caches one access token and the account it belongs to.
type Session struct {
	api    Authenticator
	apiKey string
	now    func() time.Time

	loginMu sync.Mutex // serializes logins

	mu        sync.RWMutex
	token     *oauth2.Token
	accountID string
}

// NewSession creates a session. With an empty apiKey, logins fall back to
// an anonymous default signup.
func NewSession(api Authenticator, apiKey string) *Session {
	return &Session{api: api, apiKey: apiKey, now: time.Now}
}

// Expired reports whether the current token is absent, unparseable,
// missing an expiry, or past it.
func (s *Session) Expired() bool {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	return s.expired(tok)
}

func (s *Session) expired(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" || tok.Expiry.IsZero() {
		return true
	}
	return !s.now().Before(tok.Expiry)
}

// Refresh logs in when the token is expired. Concurrent callers share one
// login: the expiry is checked again once the login lock is held.
func (s *Session) Refresh(ctx context.Context) error {
	if !s.Expired() {
		return nil
	}
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	if !s.Expired() {
		return nil
	}
	return s.login(ctx)
}

// Login always fetches a new token.
func (s *Session) Login(ctx context.Context) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	return s.login(ctx)
}

func (s *Session) login(ctx context.Context) error {
	var (
		resp *model.LoginResponse
		err  error
	)
	if s.apiKey != "" {
		resp, err = s.api.LoginWithKey(ctx, s.apiKey)
	} else {
		zap.L().Info("no api key configured, signing up a default account")
		resp, err = s.api.SignupDefault(ctx)
	}
	if err != nil {
		return errs.At(errs.StageAuth, "", fmt.Errorf("%w: login: %w", errs.ErrUnauthenticated, err))
	}
	if resp == nil || resp.AccessToken == "" {
		return errs.At(errs.StageAuth, "", fmt.Errorf("%w: login returned no token", errs.ErrUnauthenticated))
	}

	exp, err := tokenExpiry(resp.AccessToken)
	if err != nil {
		// kept anyway: the next Refresh treats it as expired
		zap.L().Warn("access token has no readable expiry", zap.Error(err))
	}

	s.mu.Lock()
	s.token = &oauth2.Token{AccessToken: resp.AccessToken, TokenType: "Bearer", Expiry: exp}
	s.accountID = resp.Account.ID
	s.mu.Unlock()

	zap.L().Debug("logged in", zap.String("account_id", resp.Account.ID), zap.Time("expires", exp))
	return nil
}

// AccessToken refreshes if needed and returns the bearer token.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	if err := s.Refresh(ctx); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return "", errs.At(errs.StageAuth, "", errs.ErrUnauthenticated)
	}
	return s.token.AccessToken, nil
}

// AccountID is the account of the last successful login.
func (s *Session) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountID
}

// Invalidate drops the token so the next Refresh logs in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

// TokenSource adapts the session to oauth2, refreshing with ctx.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, s: s}
}

type tokenSource struct {
	ctx context.Context
	s   *Session
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	if err := ts.s.Refresh(ts.ctx); err != nil {
		return nil, err
	}
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	if ts.s.token == nil {
		return nil, errs.ErrUnauthenticated
	}
	tok := *ts.s.token
	return &tok, nil
}

var errNoExpiry = errors.New("token has no exp claim")

// tokenExpiry reads exp from a JWT without verifying its signature.
func tokenExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, errNoExpiry
	}
	return exp.Time, nil
}
