package password

import (
	"strings"
	"unicode"
)

// Policy valida la fortaleza de un client secret antes de hashearlo.
// El zero value no exige nada.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// PolicyError lista las reglas incumplidas (too_short, missing_upper, ...).
type PolicyError struct{ Reasons []string }

func (e *PolicyError) Error() string {
	return "password: weak secret: " + strings.Join(e.Reasons, ",")
}

// Check devuelve nil o *PolicyError.
func (p Policy) Check(s string) error {
	var reasons []string
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	classes := map[string]bool{}
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			classes["upper"] = true
		case unicode.IsLower(r):
			classes["lower"] = true
		case unicode.IsDigit(r):
			classes["digit"] = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			classes["symbol"] = true
		}
	}
	for _, rule := range []struct {
		on    bool
		class string
	}{
		{p.RequireUpper, "upper"},
		{p.RequireLower, "lower"},
		{p.RequireDigit, "digit"},
		{p.RequireSymbol, "symbol"},
	} {
		if rule.on && !classes[rule.class] {
			reasons = append(reasons, "missing_"+rule.class)
		}
	}
	if len(reasons) > 0 {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}
