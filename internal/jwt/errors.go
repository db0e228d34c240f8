package jwt

import "errors"

// Errores de verificación. Decode siempre devuelve uno de estos (wrappeado) para
// que el caller los distinga con errors.Is.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrSignature      = errors.New("invalid token signature")
	ErrExpiredToken   = errors.New("token expired")
)
