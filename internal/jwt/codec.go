// Package jwt codifica y verifica los tokens compactos (header.payload.signature)
// firmados con el material de internal/keys.
package jwt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DefaultSkew es la tolerancia de reloj aplicada a exp.
const DefaultSkew = 60 * time.Second

// Signer es lo que el codec necesita del material de claves (*keys.Material lo cumple).
type Signer interface {
	Sign(data []byte) ([]byte, error)
	Verify(data, sig []byte) bool
	Algorithm() string
	KeyID() string
}

// Codec es inmutable después de NewCodec; seguro para uso concurrente.
type Codec struct {
	signer Signer
	method jwtv5.SigningMethod
	skew   time.Duration
	now    func() time.Time
}

type Option func(*Codec)

// WithSkew cambia la tolerancia de expiración (negativo => 0).
func WithSkew(d time.Duration) Option {
	return func(c *Codec) {
		if d < 0 {
			d = 0
		}
		c.skew = d
	}
}

// WithClock inyecta el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(s Signer, opts ...Option) (*Codec, error) {
	if s == nil {
		return nil, errors.New("jwt: nil signer")
	}
	m := jwtv5.GetSigningMethod(s.Algorithm())
	if m == nil || m == jwtv5.SigningMethodNone {
		return nil, fmt.Errorf("jwt: unsupported alg %q", s.Algorithm())
	}
	c := &Codec{signer: s, method: m, skew: DefaultSkew, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Encode valida los claims, los serializa y firma.
func (c *Codec) Encode(cl Claims) (string, error) {
	if err := cl.Validate(); err != nil {
		return "", err
	}
	tok := jwtv5.NewWithClaims(c.method, toMapClaims(cl))
	tok.Header["kid"] = c.signer.KeyID()

	signingInput, err := tok.SigningString()
	if err != nil {
		return "", fmt.Errorf("jwt: signing string: %w", err)
	}
	sig, err := c.signer.Sign([]byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signingInput + "." + tok.EncodeSegment(sig), nil
}

// Decode verifica la firma ANTES de mirar el payload; recién después valida exp
// (con skew) y arma los Claims.
func (c *Codec) Decode(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: expected 3 segments", ErrMalformedToken)
	}

	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := decodeSegment(parts[0], &hdr); err != nil {
		return Claims{}, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	if hdr.Alg != c.method.Alg() {
		return Claims{}, fmt.Errorf("%w: unexpected alg %q", ErrSignature, hdr.Alg)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: signature encoding", ErrMalformedToken)
	}
	if !c.signer.Verify([]byte(parts[0]+"."+parts[1]), sig) {
		return Claims{}, ErrSignature
	}

	mc := jwtv5.MapClaims{}
	if err := decodeSegment(parts[1], &mc); err != nil {
		return Claims{}, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	v := jwtv5.NewValidator(
		jwtv5.WithLeeway(c.skew),
		jwtv5.WithTimeFunc(c.now),
		jwtv5.WithExpirationRequired(),
	)
	if err := v.Validate(mc); err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return fromMapClaims(mc)
}

// Introspect es Decode devuelto como mapa plano (respuesta de check_token).
func (c *Codec) Introspect(token string) (map[string]any, error) {
	cl, err := c.Decode(token)
	if err != nil {
		return nil, err
	}
	out := map[string]any(toMapClaims(cl))
	out["active"] = true
	return out, nil
}

func decodeSegment(seg string, dst any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

func toMapClaims(cl Claims) jwtv5.MapClaims {
	mc := make(jwtv5.MapClaims, len(cl.Extra)+10)
	for k, v := range cl.Extra {
		if IsReserved(k) {
			continue
		}
		if n, err := NormalizeScalar(v); err == nil {
			mc[k] = payloadScalar(n)
		}
	}
	mc[ClaimSubject] = cl.Subject
	mc[ClaimClientID] = cl.ClientID
	// nil se omite; vacío viaja como [] y vuelve vacío
	if cl.Scopes != nil {
		mc[ClaimScope] = cl.Scopes
	}
	if cl.Authorities != nil {
		mc[ClaimAuthorities] = cl.Authorities
	}
	mc[ClaimIssuedAt] = cl.IssuedAt.Unix()
	mc[ClaimExpiresAt] = cl.ExpiresAt.Unix()
	mc[ClaimJTI] = cl.JTI
	mc[ClaimTokenType] = string(cl.TokenType)
	if cl.Issuer != "" {
		mc[ClaimIssuer] = cl.Issuer
	}
	if cl.AccessTokenID != "" {
		mc[ClaimAccessTokenID] = cl.AccessTokenID
	}
	return mc
}

// payloadScalar escribe los float64 siempre con punto o exponente ("2.0"), así
// el decode los distingue de los int64 y el tipo sobrevive al round-trip.
func payloadScalar(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

func fromMapClaims(mc jwtv5.MapClaims) (Claims, error) {
	var (
		cl  Claims
		err error
	)
	str := func(k string, required bool) string {
		v, ok := mc[k]
		if !ok {
			if required && err == nil {
				err = fmt.Errorf("%w: missing %s", ErrMalformedToken, k)
			}
			return ""
		}
		s, ok := v.(string)
		if !ok && err == nil {
			err = fmt.Errorf("%w: %s must be a string", ErrMalformedToken, k)
		}
		return s
	}
	list := func(k string) []string {
		raw, ok := mc[k]
		if !ok {
			return nil
		}
		arr, ok := raw.([]any)
		if !ok {
			if err == nil {
				err = fmt.Errorf("%w: %s must be an array", ErrMalformedToken, k)
			}
			return nil
		}
		out := make([]string, 0, len(arr))
		for _, it := range arr {
			s, ok := it.(string)
			if !ok {
				if err == nil {
					err = fmt.Errorf("%w: %s must contain strings", ErrMalformedToken, k)
				}
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	unix := func(k string) time.Time {
		n, ok := mc[k].(json.Number)
		if !ok {
			if err == nil {
				err = fmt.Errorf("%w: %s must be numeric", ErrMalformedToken, k)
			}
			return time.Time{}
		}
		i, perr := n.Int64()
		if perr != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				if err == nil {
					err = fmt.Errorf("%w: %s: %v", ErrMalformedToken, k, ferr)
				}
				return time.Time{}
			}
			i = int64(f)
		}
		return time.Unix(i, 0).UTC()
	}

	cl.Subject = str(ClaimSubject, true)
	cl.ClientID = str(ClaimClientID, true)
	cl.Scopes = list(ClaimScope)
	cl.Authorities = list(ClaimAuthorities)
	cl.IssuedAt = unix(ClaimIssuedAt)
	cl.ExpiresAt = unix(ClaimExpiresAt)
	cl.JTI = str(ClaimJTI, true)
	cl.TokenType = TokenType(str(ClaimTokenType, true))
	cl.Issuer = str(ClaimIssuer, false)
	cl.AccessTokenID = str(ClaimAccessTokenID, false)
	if err != nil {
		return Claims{}, err
	}

	for k, v := range mc {
		if IsReserved(k) {
			continue
		}
		n, nerr := NormalizeScalar(v)
		if nerr != nil {
			return Claims{}, fmt.Errorf("%w: claim %q: %v", ErrMalformedToken, k, nerr)
		}
		if cl.Extra == nil {
			cl.Extra = make(map[string]any)
		}
		cl.Extra[k] = n
	}
	if err := cl.Validate(); err != nil {
		return Claims{}, err
	}
	return cl, nil
}
