// Package session owns the signed-in identity: it signs in and out,
// persists the identity and its cookies, and keeps the push channel
// connected for the current user.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/store"
)

// ErrNoSession is returned by Restore when nothing can be resumed.
var ErrNoSession = store.ErrNoSession

// AuthAPI is the REST surface the service signs in through.
type AuthAPI interface {
	Login(ctx context.Context, in model.LoginInput) (model.Session, error)
	Signup(ctx context.Context, in model.SignupInput) (model.Session, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Jar() http.CookieJar
	BaseURL() *url.URL
}

// Connector opens and closes the push channel.
type Connector interface {
	Connect(ctx context.Context, identity string) error
	Disconnect() error
}

// Store persists the identity record.
type Store interface {
	SaveSession(ctx context.Context, s model.Session) error
	LoadSession(ctx context.Context) (model.Session, error)
	ClearSession(ctx context.Context) error
	ClearTasks(ctx context.Context) error
}

// Vault persists the session cookies.
type Vault interface {
	SaveJar(jar http.CookieJar, u *url.URL) error
	RestoreJar(jar http.CookieJar, u *url.URL) ([]*http.Cookie, error)
	ClearCookies() error
}

// Service tracks the current session.
type Service struct {
	auth    AuthAPI
	push    Connector
	store   Store
	vault   Vault
	logger  *zap.Logger
	nowFunc func() time.Time

	mu       sync.Mutex
	current  *model.Session
	onLogin  []func(model.Session)
	onLogout []func(reason error)
}

// NewService creates a session service. A nil vault disables cookie
// persistence.
func NewService(auth AuthAPI, push Connector, st Store, vault Vault, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		auth:    auth,
		push:    push,
		store:   st,
		vault:   vault,
		logger:  logger.Named("session"),
		nowFunc: time.Now,
	}
}

// OnLogin registers fn to run after every successful sign-in or restore.
func (s *Service) OnLogin(fn func(model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogin = append(s.onLogin, fn)
}

// OnLogout registers fn to run after the session ends. reason is nil for
// an explicit logout and the refresh error when the session expired.
func (s *Service) OnLogout(fn func(reason error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Current returns the signed-in session.
func (s *Service) Current() (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Session{}, false
	}
	return *s.current, true
}

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, in model.LoginInput) (model.Session, error) {
	sess, err := s.auth.Login(ctx, in)
	if err != nil {
		return model.Session{}, err
	}
	return sess, s.begin(ctx, sess)
}

// Signup registers and signs in a new account.
func (s *Service) Signup(ctx context.Context, in model.SignupInput) (model.Session, error) {
	sess, err := s.auth.Signup(ctx, in)
	if err != nil {
		return model.Session{}, err
	}
	return sess, s.begin(ctx, sess)
}

// Restore resumes the persisted session. A stored access token that has
// already expired is refreshed before the push channel connects.
func (s *Service) Restore(ctx context.Context) (model.Session, error) {
	sess, err := s.store.LoadSession(ctx)
	if err != nil {
		return model.Session{}, err
	}

	if s.vault != nil {
		cookies, err := s.vault.RestoreJar(s.auth.Jar(), s.auth.BaseURL())
		if errors.Is(err, credential.ErrNoCredentials) {
			s.logger.Info("persisted session has no cookies, discarding")
			s.clearPersisted(ctx)
			return model.Session{}, ErrNoSession
		}
		if err != nil {
			return model.Session{}, fmt.Errorf("restoring cookies: %w", err)
		}
		if credential.AccessTokenExpired(cookies, s.nowFunc()) {
			s.logger.Debug("access token expired, refreshing before connect")
			if err := s.auth.Refresh(ctx); err != nil {
				if api.IsAuthError(err) {
					s.clearPersisted(ctx)
					return model.Session{}, fmt.Errorf("%w: %w", api.ErrSessionExpired, err)
				}
				return model.Session{}, err
			}
		}
	}

	return sess, s.begin(ctx, sess)
}

// begin records sess as current, persists it, and connects the push
// channel. Persistence failures are logged; the session stays usable.
func (s *Service) begin(ctx context.Context, sess model.Session) error {
	s.mu.Lock()
	s.current = &sess
	hooks := append([]func(model.Session){}, s.onLogin...)
	s.mu.Unlock()

	if err := s.store.SaveSession(ctx, sess); err != nil {
		s.logger.Warn("persisting session failed", zap.Error(err))
	}
	s.Persist()

	if err := s.push.Connect(ctx, sess.ID); err != nil {
		s.logger.Warn("push channel unavailable", zap.Error(err))
	}

	s.logger.Info("session started",
		zap.String("user", sess.ID),
		zap.String("role", sess.Role),
	)
	for _, fn := range hooks {
		fn(sess)
	}
	return nil
}

// Persist writes the current cookies to the vault. Refreshes rotate the
// cookies, so callers persist again before exit.
func (s *Service) Persist() {
	if s.vault == nil {
		return
	}
	if _, ok := s.Current(); !ok {
		return
	}
	if err := s.vault.SaveJar(s.auth.Jar(), s.auth.BaseURL()); err != nil {
		s.logger.Warn("persisting cookies failed", zap.Error(err))
	}
}

// Logout ends the session on the server and locally. A server failure
// is logged; the local session ends regardless.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.auth.Logout(ctx); err != nil {
		s.logger.Warn("server logout failed", zap.Error(err))
	}
	s.end(ctx, nil)
	return nil
}

// Expire ends the session locally after the refresh failed. It is safe
// to call from any goroutine and does nothing without a session.
func (s *Service) Expire(reason error) {
	if _, ok := s.Current(); !ok {
		return
	}
	s.logger.Info("session expired", zap.Error(reason))
	if reason == nil {
		reason = api.ErrSessionExpired
	}
	s.end(context.Background(), reason)
}

func (s *Service) end(ctx context.Context, reason error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	hooks := append([]func(error){}, s.onLogout...)
	s.mu.Unlock()

	if err := s.push.Disconnect(); err != nil {
		s.logger.Warn("closing push channel failed", zap.Error(err))
	}
	s.clearPersisted(ctx)

	for _, fn := range hooks {
		fn(reason)
	}
}

func (s *Service) clearPersisted(ctx context.Context) {
	if err := s.store.ClearSession(ctx); err != nil {
		s.logger.Warn("clearing session failed", zap.Error(err))
	}
	if err := s.store.ClearTasks(ctx); err != nil {
		s.logger.Warn("clearing task snapshot failed", zap.Error(err))
	}
	if s.vault != nil {
		if err := s.vault.ClearCookies(); err != nil {
			s.logger.Warn("clearing cookies failed", zap.Error(err))
		}
	}
}
