// Package session keeps the signed-in administrator and their membership
// flags in one typed place with a login/logout lifecycle.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/models"
)

var (
	ErrNoToken            = errors.New("login response carried no token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrNotAdmin           = errors.New("admin role required")
)

// Poster is the part of datasource.Client used to sign in and out.
type Poster interface {
	Post(ctx context.Context, path string, payload interface{}) ([]byte, int, error)
}

// Credentials are what the login form collects.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the signed-in user.
type Session struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             string    `json:"role"`
	AcademyMember    bool      `json:"academy_member"`
	TournamentTeamID string    `json:"tournament_team_id,omitempty"`
	ExpiresAt        time.Time `json:"expires_at,omitempty"`
	SignedInAt       time.Time `json:"signed_in_at"`

	token string
}

// Expired reports whether the token expiry has passed. Tokens without an
// expiry never expire locally.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// IsAdmin reports whether the session may use the admin screens.
func (s Session) IsAdmin() bool {
	return strings.EqualFold(s.Role, "admin")
}

type claims struct {
	jwt.RegisteredClaims
	Role             string `json:"role,omitempty"`
	Email            string `json:"email,omitempty"`
	AcademyMember    bool   `json:"academy_member,omitempty"`
	TournamentTeamID string `json:"tournament_team_id,omitempty"`
}

// Store holds at most one session. It is a datasource.TokenSource: while
// signed in it supplies the session token, otherwise the fallback token.
type Store struct {
	fallback   string
	loginPath  string
	logoutPath string
	now        func() time.Time

	mu      sync.RWMutex
	current *Session
}

// NewStore creates an empty store. fallbackToken is the configured static
// backend token, used while nobody is signed in.
func NewStore(fallbackToken string) *Store {
	return &Store{
		fallback:   fallbackToken,
		loginPath:  "/login",
		logoutPath: "/logout",
		now:        time.Now,
	}
}

// Token implements datasource.TokenSource.
func (s *Store) Token() string {
	if sess, ok := s.Current(); ok {
		return sess.token
	}
	return s.fallback
}

// Current returns the live session. An expired session is dropped.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return Session{}, false
	}
	if cur.Expired(s.now()) {
		s.mu.Lock()
		if s.current == cur {
			s.current = nil
			slog.Info("session_event", "event", "expired", "user_id", cur.UserID)
		}
		s.mu.Unlock()
		return Session{}, false
	}
	return *cur, true
}

// IsAdmin reports whether an admin is signed in.
func (s *Store) IsAdmin() bool {
	sess, ok := s.Current()
	return ok && sess.IsAdmin()
}

// Login posts credentials to the backend and starts a session from the
// returned token.
func (s *Store) Login(ctx context.Context, p Poster, creds Credentials) (Session, error) {
	body, _, err := p.Post(ctx, s.loginPath, creds)
	if err != nil {
		var fe *datasource.FetchError
		var ve *datasource.ValidationError
		if errors.As(err, &ve) || (errors.As(err, &fe) && (fe.Status == http.StatusUnauthorized || fe.Status == http.StatusForbidden)) {
			slog.Warn("session_event", "event", "login_rejected", "email", creds.Email)
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return Session{}, err
	}
	return s.begin(body, creds.Email)
}

// Begin starts a session from a login response body. The token is read
// without verifying its signature; the backend verifies it on every call.
func (s *Store) Begin(body []byte) (Session, error) {
	return s.begin(body, "")
}

func (s *Store) begin(body []byte, email string) (Session, error) {
	var resp struct {
		Token       string      `json:"token"`
		AccessToken string      `json:"access_token"`
		User        models.Item `json:"user"`
		Data        *struct {
			Token string      `json:"token"`
			User  models.Item `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Session{}, fmt.Errorf("%w: %v", datasource.ErrMalformedResponse, err)
	}
	token, user := resp.Token, resp.User
	if token == "" {
		token = resp.AccessToken
	}
	if resp.Data != nil {
		if token == "" {
			token = resp.Data.Token
		}
		if user == nil {
			user = resp.Data.User
		}
	}
	if token == "" {
		return Session{}, ErrNoToken
	}

	sess := Session{token: token, SignedInAt: s.now()}
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err == nil {
		sess.UserID = c.Subject
		sess.Role = c.Role
		sess.Email = c.Email
		sess.AcademyMember = c.AcademyMember
		sess.TournamentTeamID = c.TournamentTeamID
		if c.ExpiresAt != nil {
			sess.ExpiresAt = c.ExpiresAt.Time
		}
	}
	if user != nil {
		applyUser(&sess, user)
	}
	if sess.Email == "" {
		sess.Email = email
	}
	if sess.Expired(s.now()) {
		return Session{}, fmt.Errorf("token expired at %s", sess.ExpiresAt.Format(time.RFC3339))
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	slog.Info("session_event", "event", "signed_in", "user_id", sess.UserID, "role", sess.Role)
	return sess, nil
}

func applyUser(sess *Session, u models.Item) {
	if id := u.Text("id"); id != "" {
		sess.UserID = id
	}
	if v := u.Text("email"); v != "" {
		sess.Email = v
	}
	if v := u.Text("role"); v != "" {
		sess.Role = v
	}
	name := strings.TrimSpace(u.Text("first_name") + " " + u.Text("last_name"))
	if name == "" {
		name = u.Text("name")
	}
	sess.Name = name
	if v, ok := u["academy_member"].(bool); ok {
		sess.AcademyMember = v
	}
	if v := u.Text("tournament_team_id"); v != "" {
		sess.TournamentTeamID = v
	}
}

// Logout ends the session. The backend call is best effort; local state is
// always cleared.
func (s *Store) Logout(ctx context.Context, p Poster) error {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return ErrNotSignedIn
	}
	// The token must still be attached to the logout call.
	if p != nil {
		if _, _, err := p.Post(ctx, s.logoutPath, nil); err != nil {
			slog.Warn("session_event", "event", "logout_call_failed", "user_id", cur.UserID, "error", err)
		}
	}
	s.mu.Lock()
	if s.current == cur {
		s.current = nil
	}
	s.mu.Unlock()
	slog.Info("session_event", "event", "signed_out", "user_id", cur.UserID)
	return nil
}
