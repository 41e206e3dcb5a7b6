package backend

import "errors"

var (
	// ErrNoSession is returned when the backend answered but reported no active session.
	ErrNoSession = errors.New("no active session")
	// ErrNoUser is returned when a current-user response holds no user record.
	ErrNoUser = errors.New("no user in response")
	// ErrMalformedResponse is returned when a response body is not the JSON we expect.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrNotJSON is returned when a response does not declare a JSON content type.
	ErrNotJSON = errors.New("response is not JSON")
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrAllCandidatesFailed is returned when no session endpoint produced a usable answer.
	ErrAllCandidatesFailed = errors.New("all session endpoints failed")
)
