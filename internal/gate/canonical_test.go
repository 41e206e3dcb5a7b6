package gate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCanonicalizer(t *testing.T) {
	tests := []struct {
		host     string
		apex     string
		errorMsg string
	}{
		{host: "www.example.com", apex: "example.com"},
		{host: "WWW.Example.com.", apex: "example.com"},
		{host: "www.example.co.uk", apex: "example.co.uk"},
		{host: "example.com", errorMsg: "must be a subdomain"},
		{host: "localhost", errorMsg: "invalid canonical host"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			c, err := NewCanonicalizer(tt.host)
			if tt.errorMsg != "" {
				require.ErrorContains(t, err, tt.errorMsg)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.apex, c.Apex())
		})
	}
}

func TestCanonicalizer_Redirect(t *testing.T) {
	c, err := NewCanonicalizer("www.example.com")
	require.NoError(t, err)

	tests := []struct {
		name     string
		host     string
		path     string
		query    string
		location string
		redirect bool
	}{
		{name: "apex root", host: "example.com", path: "/", location: "https://www.example.com/", redirect: true},
		{name: "apex empty path", host: "example.com", location: "https://www.example.com/", redirect: true},
		{name: "apex with query", host: "example.com", path: "/matches", query: "page=2", location: "https://www.example.com/matches?page=2", redirect: true},
		{name: "apex with port", host: "example.com:8443", path: "/a", location: "https://www.example.com/a", redirect: true},
		{name: "canonical host", host: "www.example.com", path: "/a"},
		{name: "other subdomain", host: "api.example.com", path: "/a"},
		{name: "unrelated host", host: "example.org", path: "/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, ok := c.Redirect(tt.host, tt.path, tt.query)
			require.Equal(t, tt.redirect, ok)
			require.Equal(t, tt.location, location)
		})
	}
}
