package backend

import (
	"encoding/json"
	"fmt"

	"github.com/hireloop/gatekeeper/internal/models"
	"github.com/tidwall/gjson"
)

// Payload shapes are checked in this order; the first one holding a user with an id wins:
//
//	{"data": {"user": {...}, "session": {...}}}
//	{"user": {...}, "session": {...}}
//
// A missing or null user at every location means there is no session.
var sessionShapes = []struct {
	user    string
	session string
}{
	{user: "data.user", session: "data.session"},
	{user: "user", session: "session"},
}

// userShapes covers the current-user endpoint, which may also return the record bare.
var userShapes = []string{"data.user", "user", "data", "@this"}

// Normalize converts a session-verification response body into a Session.
// It returns ErrNoSession when the body is valid JSON without a user, and
// ErrMalformedResponse when it is not JSON at all.
func Normalize(body []byte) (*models.Session, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}

	root := gjson.ParseBytes(body)

	for _, shape := range sessionShapes {
		userRes := root.Get(shape.user)
		if !isRecord(userRes) {
			continue
		}

		var sess models.Session
		if err := json.Unmarshal([]byte(userRes.Raw), &sess.User); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrMalformedResponse, err)
		}

		if sessRes := root.Get(shape.session); sessRes.IsObject() {
			sess.Session = models.SessionInfo{
				ID:        sessRes.Get("id").String(),
				UserID:    sessRes.Get("userId").String(),
				ExpiresAt: sessRes.Get("expiresAt").Time(),
				IPAddress: sessRes.Get("ipAddress").String(),
				UserAgent: sessRes.Get("userAgent").String(),
			}
		}

		if sess.Session.UserID == "" {
			sess.Session.UserID = sess.User.ID
		}

		return &sess, nil
	}

	return nil, ErrNoSession
}

// NormalizeUser extracts a user record from a current-user response body.
func NormalizeUser(body []byte) (*models.User, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}

	root := gjson.ParseBytes(body)

	for _, path := range userShapes {
		res := root.Get(path)
		if !isRecord(res) {
			continue
		}

		var user models.User
		if err := json.Unmarshal([]byte(res.Raw), &user); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrMalformedResponse, err)
		}
		return &user, nil
	}

	return nil, ErrNoUser
}

// isRecord reports whether res is an object carrying a non-empty id.
func isRecord(res gjson.Result) bool {
	return res.IsObject() && res.Get("id").String() != ""
}
