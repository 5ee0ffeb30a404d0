// Package session keeps the platform auth token and recovers from expired
// tokens by logging in again.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	"github.com/ahmethakanbesel/socpanel/internal/transport"
)

const loginEndpoint = "api/login"

// Doer issues platform requests. *transport.Executor satisfies it.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (json.RawMessage, error)
}

type Credentials struct {
	Login    string
	Password string
}

func (c Credentials) complete() bool {
	return c.Login != "" && c.Password != ""
}

// Session holds the current token. All methods are safe for concurrent use.
type Session struct {
	doer  Doer
	creds Credentials
	group singleflight.Group

	mu    sync.RWMutex
	token string
}

// Option configures a Session.
type Option func(*Session)

// WithToken seeds the session with a previously issued token.
func WithToken(token string) Option {
	return func(s *Session) { s.token = token }
}

func New(doer Doer, creds Credentials, opts ...Option) *Session {
	s := &Session{doer: doer, creds: creds}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FromToken creates a session that can only use token. A rejected token
// cannot be refreshed and surfaces as CredentialsMissing.
func FromToken(doer Doer, token string) *Session {
	return New(doer, Credentials{}, WithToken(token))
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Headers returns the auth headers for the current token. It is meant to be
// installed as the executor's header source.
func (s *Session) Headers() http.Header {
	h := http.Header{}
	if t := s.Token(); t != "" {
		h.Set("Authorization", t)
	}
	return h
}

// Login obtains a fresh token. Concurrent calls share one round-trip.
func (s *Session) Login(ctx context.Context) error {
	_, err, _ := s.group.Do("login", func() (any, error) {
		return nil, s.login(ctx)
	})
	return err
}

func (s *Session) login(ctx context.Context) error {
	if !s.creds.complete() {
		return apperror.New(apperror.CredentialsMissing, "login and password are required to log in")
	}

	raw, err := s.doer.Do(ctx, transport.Request{
		Name:     "Login",
		Endpoint: loginEndpoint,
		Payload: map[string]string{
			"login":    s.creds.Login,
			"password": s.creds.Password,
		},
		ExtractResult: true,
	})
	if err != nil {
		return err
	}

	var result struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return apperror.Wrap(apperror.Protocol, "decode login result", err)
	}
	if result.SessionToken == "" {
		return apperror.New(apperror.Protocol, "login result has no session_token")
	}

	s.mu.Lock()
	s.token = result.SessionToken
	s.mu.Unlock()

	slog.Debug("session: logged in", "login", s.creds.Login)
	return nil
}

// refresh logs in again unless another caller already replaced stale.
func (s *Session) refresh(ctx context.Context, stale string) error {
	_, err, _ := s.group.Do("login", func() (any, error) {
		if t := s.Token(); t != "" && t != stale {
			return nil, nil
		}
		return nil, s.login(ctx)
	})
	return err
}

// WithAuth runs op with a valid token. When op fails with TokenInvalid the
// session logs in once and op runs once more; a second failure is returned
// as is.
func (s *Session) WithAuth(ctx context.Context, op func(ctx context.Context) error) error {
	if s.Token() == "" {
		if err := s.Login(ctx); err != nil {
			return err
		}
	}

	used := s.Token()
	err := op(ctx)
	if !apperror.Is(err, apperror.TokenInvalid) {
		return err
	}

	slog.Info("session: token rejected, logging in again")
	if err := s.refresh(ctx, used); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	return op(ctx)
}
