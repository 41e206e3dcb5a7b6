package backend

import (
	"mime"
	"net/http"
	"strings"
)

// Endpoints lists the backend URLs this application consumes.
type Endpoints struct {
	// SessionCandidates are tried in order; the backend exposed the same capability
	// at more than one path during migrations.
	SessionCandidates []string
	CurrentUser       string
	ClearLegacy       string
}

// DefaultEndpoints builds the endpoint set from the API and auth base URLs.
// authURL falls back to apiURL when empty.
func DefaultEndpoints(apiURL, authURL string) Endpoints {
	apiURL = strings.TrimRight(apiURL, "/")
	authURL = strings.TrimRight(authURL, "/")
	if authURL == "" {
		authURL = apiURL
	}

	return Endpoints{
		SessionCandidates: []string{
			authURL + "/api/auth/get-session",
			authURL + "/api/auth/session",
			apiURL + "/api/session",
		},
		CurrentUser: apiURL + "/api/users/me",
		ClearLegacy: authURL + "/api/auth/clear-legacy-cookies",
	}
}

// IsJSON reports whether the response declares a JSON media type, including +json suffixes.
func IsJSON(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// IsSuccess reports whether the status code is 2xx.
func IsSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
