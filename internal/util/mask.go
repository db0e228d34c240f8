// Package util: helpers chicos sin dependencias del dominio.
package util

import (
	"net/url"
	"strings"
)

// MaskSecret deja ver solo el primer y último char ("s…t"); vacío queda vacío.
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 3 {
		return "***"
	}
	return s[:1] + "…" + s[len(s)-1:]
}

// MaskDSN oculta la password de un DSN URL (postgres://u:p@h/db) o key/value
// (host=h password=p). Lo que no se puede parsear se enmascara entero.
func MaskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return MaskSecret(dsn)
		}
		return u.Redacted()
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
