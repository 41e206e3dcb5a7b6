// Package routes classifies request paths into access-control tiers.
//
// Classification is static: it depends only on the path string and the configured
// prefix lists, never on the request time or on session state.
package routes

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidPrefix     = errors.New("invalid route prefix")
	ErrOverlappingPrefix = errors.New("route prefixes overlap")
)

// Class is the access-control tier of a path.
type Class int

const (
	Public Class = iota
	AlwaysAllow
	Protected
	Admin
)

func (c Class) String() string {
	switch c {
	case AlwaysAllow:
		return "always-allow"
	case Protected:
		return "protected"
	case Admin:
		return "admin"
	default:
		return "public"
	}
}

// RequiresSession reports whether paths of this class need an authenticated visitor.
// Admin is gated exactly like Protected here; role checks belong to the backend API.
func (c Class) RequiresSession() bool {
	return c == Protected || c == Admin
}

// Table holds the prefix lists used to classify paths.
type Table struct {
	AlwaysAllow []string `yaml:"always_allow"`
	Protected   []string `yaml:"protected"`
	Admin       []string `yaml:"admin"`
}

// Default returns the marketplace's built-in route table.
func Default() *Table {
	return &Table{
		AlwaysAllow: []string{"/login", "/signup", "/verify-email", "/email-verified"},
		Protected:   []string{"/profile", "/settings", "/matches", "/internships"},
		Admin:       []string{"/admin", "/analytics", "/interviews", "/matching"},
	}
}

// Load reads a route table from a YAML file and validates it.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table: %w", err)
	}

	table := new(Table)
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}

	return table, nil
}

// Classify maps a path to its class. Sets are checked in the fixed order
// AlwaysAllow, Protected, Admin; anything unmatched (including "/") is Public.
func (t *Table) Classify(path string) Class {
	switch {
	case matchesAny(path, t.AlwaysAllow):
		return AlwaysAllow
	case matchesAny(path, t.Protected):
		return Protected
	case matchesAny(path, t.Admin):
		return Admin
	default:
		return Public
	}
}

// Validate checks every prefix is a rooted path and that no path could match
// more than one set.
func (t *Table) Validate() error {
	type entry struct {
		class  Class
		prefix string
	}

	var all []entry
	for _, set := range []struct {
		class    Class
		prefixes []string
	}{
		{AlwaysAllow, t.AlwaysAllow},
		{Protected, t.Protected},
		{Admin, t.Admin},
	} {
		for _, p := range set.prefixes {
			if !strings.HasPrefix(p, "/") || p == "/" || strings.HasSuffix(p, "/") {
				return fmt.Errorf("%w: %q in %s", ErrInvalidPrefix, p, set.class)
			}
			all = append(all, entry{class: set.class, prefix: p})
		}
	}

	for i, a := range all {
		for _, b := range all[i+1:] {
			if a.class == b.class {
				continue
			}
			if hasPathPrefix(a.prefix, b.prefix) || hasPathPrefix(b.prefix, a.prefix) {
				return fmt.Errorf("%w: %q (%s) and %q (%s)", ErrOverlappingPrefix, a.prefix, a.class, b.prefix, b.class)
			}
		}
	}

	return nil
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if hasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches on segment boundaries: "/matches" covers "/matches/42"
// but not "/matching".
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
