package models

import (
	"time"

	"github.com/rs/zerolog"
)

// SessionInfo is the server-side session record issued by the identity provider.
// The raw token value is never part of it.
type SessionInfo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`

	// Optional audit metadata
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Session represents a user's authenticated session as seen by this application.
type Session struct {
	User    User        `json:"user"`
	Session SessionInfo `json:"session"`
}

// IsExpired returns true if the session carries an expiry that has passed.
// A zero expiry means the backend did not report one.
func (s *Session) IsExpired() bool {
	if s.Session.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.Session.ExpiresAt)
}

// IsVerified returns true once the session's user has confirmed their email address.
func (s *Session) IsVerified() bool {
	return s != nil && s.User.EmailVerified
}

// SessionToken is an opaque session credential carried in one of the recognized cookies.
type SessionToken struct {
	Name  string
	Value string
}

// String never includes the token value.
func (t SessionToken) String() string {
	if t.Value == "" {
		return t.Name + "=<empty>"
	}
	return t.Name + "=<redacted>"
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler without the token value.
func (t SessionToken) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", t.Name).Bool("present", t.Value != "")
}
