// Package validation agrupa las reglas de forma para datos que entran por
// registro de clients: nombres de scope y redirect URIs.
package validation

import (
	"net/url"
	"regexp"
	"strings"
)

// Scope name rules (scope-token de RFC 6749 §3.3, acotado):
// - Cualquier ASCII visible excepto espacio, comilla doble y backslash.
// - Length 1..64.
//
// Examples valid: read, profile:read, ROLE_x, https://api.example.com/jobs.write
// Examples invalid: "", "bad space", `a"b`, `a\b`, 65+ chars, no-ASCII.
var scopeNameRe = regexp.MustCompile(`^[\x21\x23-\x5B\x5D-\x7E]{1,64}$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidRedirectURI: URI absoluta con scheme y host (o scheme privado tipo
// com.example.app:/cb para apps nativas), sin fragment.
func ValidRedirectURI(raw string) bool {
	if raw == "" || strings.TrimSpace(raw) != raw {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Fragment != "" || strings.Contains(raw, "#") {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	default:
		return u.Opaque != "" || u.Path != "" || u.Host != ""
	}
}
