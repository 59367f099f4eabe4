package profile

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// State is where a shopper is in its authentication lifecycle.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is the per-shopper authentication state. It is owned by a single
// virtual user and is not safe for concurrent use.
type Session struct {
	token        string
	userID       string
	emailCounter int
	state        State
}

// Token returns the bearer token, or "" when not logged in.
func (s *Session) Token() string { return s.token }

// UserID returns the JWT subject of the token, if it had one.
func (s *Session) UserID() string { return s.userID }

// EmailCounter returns how many authentication attempts were made.
func (s *Session) EmailCounter() int { return s.emailCounter }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// beginAttempt moves to Authenticating and bumps the attempt counter.
func (s *Session) beginAttempt() int {
	s.emailCounter++
	s.state = StateAuthenticating
	return s.emailCounter
}

// authenticated stores token as a whole; it is never partially set.
func (s *Session) authenticated(token string) {
	s.token = token
	s.userID = subjectOf(token)
	s.state = StateAuthenticated
}

// unauthenticated clears the token after a failed attempt.
func (s *Session) unauthenticated() {
	s.token = ""
	s.userID = ""
	s.state = StateUnauthenticated
}

func (s *Session) terminate() {
	s.token = ""
	s.state = StateTerminated
}

// subjectOf returns the "sub" claim when token is a JWT. The signature is
// not checked; the value only enriches logs.
func subjectOf(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if sub, err := claims.GetSubject(); err == nil {
		return sub
	}
	// Some backends put the numeric user id in sub.
	if n, ok := claims["sub"].(float64); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}
