package jwt

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// TokenType distingue access de refresh dentro del payload ("token_type").
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Nombres de claims en el payload.
const (
	ClaimSubject       = "sub"
	ClaimClientID      = "client_id"
	ClaimScope         = "scope"
	ClaimAuthorities   = "authorities"
	ClaimIssuedAt      = "iat"
	ClaimExpiresAt     = "exp"
	ClaimJTI           = "jti"
	ClaimTokenType     = "token_type"
	ClaimIssuer        = "iss"
	ClaimAccessTokenID = "ati"
)

var reserved = map[string]struct{}{
	ClaimSubject: {}, ClaimClientID: {}, ClaimScope: {}, ClaimAuthorities: {},
	ClaimIssuedAt: {}, ClaimExpiresAt: {}, ClaimJTI: {}, ClaimTokenType: {},
	ClaimIssuer: {}, ClaimAccessTokenID: {},
}

// IsReserved informa si name es un claim estructural (no puede venir en Extra).
func IsReserved(name string) bool {
	_, ok := reserved[name]
	return ok
}

// Claims es el contenido de un access o refresh token.
// Los tiempos se serializan en segundos (NumericDate), así que un round-trip
// devuelve IssuedAt/ExpiresAt truncados al segundo y en UTC.
type Claims struct {
	Subject     string
	ClientID    string
	Scopes      []string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	JTI         string
	TokenType   TokenType

	// Opcionales.
	Issuer        string
	AccessTokenID string // solo refresh: jti del access emitido junto con él

	// Extra: claims agregados por enhancers. Solo escalares (string, bool, int64, float64).
	Extra map[string]any
}

// Clone es una copia profunda; los enhancers trabajan siempre sobre una.
func (c Claims) Clone() Claims {
	out := c
	out.Scopes = slices.Clone(c.Scopes)
	out.Authorities = slices.Clone(c.Authorities)
	out.Extra = maps.Clone(c.Extra)
	return out
}

// Validate chequea los campos obligatorios antes de firmar.
func (c Claims) Validate() error {
	switch {
	case c.Subject == "":
		return fmt.Errorf("%w: missing subject", ErrMalformedToken)
	case c.ClientID == "":
		return fmt.Errorf("%w: missing client_id", ErrMalformedToken)
	case c.JTI == "":
		return fmt.Errorf("%w: missing jti", ErrMalformedToken)
	case c.TokenType != TokenTypeAccess && c.TokenType != TokenTypeRefresh:
		return fmt.Errorf("%w: invalid token_type %q", ErrMalformedToken, c.TokenType)
	case c.IssuedAt.IsZero() || c.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing iat/exp", ErrMalformedToken)
	case !c.ExpiresAt.After(c.IssuedAt):
		return fmt.Errorf("%w: exp must be after iat", ErrMalformedToken)
	}
	for k, v := range c.Extra {
		if IsReserved(k) {
			return fmt.Errorf("%w: extra claim %q is reserved", ErrMalformedToken, k)
		}
		if _, err := NormalizeScalar(v); err != nil {
			return fmt.Errorf("%w: extra claim %q: %v", ErrMalformedToken, k, err)
		}
	}
	return nil
}

// SameRequired compara los campos que ningún enhancer puede alterar. Un scope
// vacío y uno nil no son lo mismo: viajan distinto en el token.
func (c Claims) SameRequired(o Claims) bool {
	return c.Subject == o.Subject &&
		c.ClientID == o.ClientID &&
		(c.Scopes == nil) == (o.Scopes == nil) &&
		slices.Equal(c.Scopes, o.Scopes) &&
		c.IssuedAt.Equal(o.IssuedAt) &&
		c.ExpiresAt.Equal(o.ExpiresAt) &&
		c.JTI == o.JTI &&
		c.TokenType == o.TokenType
}

// NormalizeScalar lleva un valor de Extra a su forma canónica:
// enteros => int64, flotantes => float64 (finitos). Cualquier otra cosa es error.
// Un float64 integral (2.0) sigue siendo float64: el codec conserva el tipo.
func NormalizeScalar(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("integer overflows int64")
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("integer overflows int64")
		}
		return int64(x), nil
	case float32:
		return finite(float64(x))
	case float64:
		return finite(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return finite(f)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func finite(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number")
	}
	return f, nil
}

// Canonical es la forma que devuelve Decode(Encode(c)): Extra normalizado con
// NormalizeScalar y un Extra vacío como nil. Scopes/Authorities se conservan
// tal cual (nil y vacío son distintos y ambos sobreviven).
func (c Claims) Canonical() Claims {
	out := c.Clone()
	out.IssuedAt = time.Unix(c.IssuedAt.Unix(), 0).UTC()
	out.ExpiresAt = time.Unix(c.ExpiresAt.Unix(), 0).UTC()
	if len(c.Extra) == 0 {
		out.Extra = nil
		return out
	}
	for k, v := range c.Extra {
		if n, err := NormalizeScalar(v); err == nil {
			out.Extra[k] = n
		}
	}
	return out
}
