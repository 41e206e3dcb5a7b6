package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantUserID string
		wantErr    error
	}{
		{
			name:       "nested under data",
			body:       `{"data":{"user":{"id":"u1","email":"a@example.com"},"session":{"id":"s1","userId":"u1"}}}`,
			wantUserID: "u1",
		},
		{
			name:       "flat",
			body:       `{"user":{"id":"u2","is_student":true},"session":{"id":"s2","userId":"u2"}}`,
			wantUserID: "u2",
		},
		{
			name:       "nested wins over flat",
			body:       `{"data":{"user":{"id":"nested"}},"user":{"id":"flat"}}`,
			wantUserID: "nested",
		},
		{
			name:       "nested user null falls through to flat",
			body:       `{"data":{"user":null},"user":{"id":"flat"}}`,
			wantUserID: "flat",
		},
		{
			name:    "user null",
			body:    `{"user":null}`,
			wantErr: ErrNoSession,
		},
		{
			name:    "literal null",
			body:    `null`,
			wantErr: ErrNoSession,
		},
		{
			name:    "user without id",
			body:    `{"user":{"email":"a@example.com"}}`,
			wantErr: ErrNoSession,
		},
		{
			name:    "not json",
			body:    `<html>login</html>`,
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := Normalize([]byte(tt.body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, session)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantUserID, session.User.ID)
			require.Equal(t, tt.wantUserID, session.Session.UserID)
		})
	}
}

func TestNormalize_sessionFields(t *testing.T) {
	body := `{"data":{
		"user":{"id":"u1","email":"a@example.com","first_name":"Ada","last_name":"Lovelace","is_student":true,"emailVerified":true},
		"session":{"id":"s1","userId":"u1","expiresAt":"2030-01-02T03:04:05.000Z","ipAddress":"203.0.113.1","userAgent":"test"}
	}}`

	session, err := Normalize([]byte(body))
	require.NoError(t, err)

	require.Equal(t, "Ada", session.User.FirstName)
	require.True(t, session.User.IsStudent)
	require.True(t, session.User.EmailVerified)
	require.Equal(t, "s1", session.Session.ID)
	require.Equal(t, "203.0.113.1", session.Session.IPAddress)
	require.Equal(t, "test", session.Session.UserAgent)
	require.True(t, time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC).Equal(session.Session.ExpiresAt))
}

func TestNormalizeUser(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr error
	}{
		{name: "bare record", body: `{"id":"u1","is_student":true}`, wantID: "u1"},
		{name: "data record", body: `{"data":{"id":"u2"}}`, wantID: "u2"},
		{name: "data.user", body: `{"data":{"user":{"id":"u3"}}}`, wantID: "u3"},
		{name: "user", body: `{"user":{"id":"u4"}}`, wantID: "u4"},
		{name: "empty object", body: `{}`, wantErr: ErrNoUser},
		{name: "garbage", body: `nope`, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := NormalizeUser([]byte(tt.body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, user.ID)
		})
	}
}
