// Package oautherr define la taxonomía de errores OAuth2 que devuelve el core.
//
// Cada error lleva un Code estándar (RFC 6749 §5.2) y una descripción apta para
// el cliente. La causa original queda en Err: sirve para logs y nunca se expone.
package oautherr

import (
	"errors"
	"fmt"
)

// Error es el error tipado del core.
type Error struct {
	Code        string // invalid_client, invalid_grant, ...
	Description string // segura para el cliente: sin secretos, tokens ni passwords
	Err         error  // causa (solo logs)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Code, así errors.Is(WithCause(ErrInvalidGrant, x), ErrInvalidGrant) == true.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause devuelve una COPIA con la causa seteada (no muta los sentinels).
func WithCause(base *Error, cause error) *Error {
	cp := *base
	cp.Err = cause
	return &cp
}

// WithDescription devuelve una COPIA con otra descripción.
func WithDescription(base *Error, desc string) *Error {
	cp := *base
	cp.Description = desc
	return &cp
}

var (
	ErrInvalidRequest = &Error{
		Code:        "invalid_request",
		Description: "The request is missing a required parameter or is otherwise malformed.",
	}

	// ErrInvalidClient se reporta igual para cliente inexistente y secret incorrecto.
	ErrInvalidClient = &Error{
		Code:        "invalid_client",
		Description: "Client authentication failed.",
	}

	ErrUnauthorizedClient = &Error{
		Code:        "unauthorized_client",
		Description: "The client is not authorized to use this grant type.",
	}

	// ErrInvalidGrant cubre credenciales del owner, códigos inválidos/consumidos/expirados
	// y refresh tokens que no corresponden; el caller no puede distinguir la causa.
	ErrInvalidGrant = &Error{
		Code:        "invalid_grant",
		Description: "The provided authorization grant is invalid, expired, or was issued to another client.",
	}

	ErrInvalidScope = &Error{
		Code:        "invalid_scope",
		Description: "The requested scope is invalid or exceeds the scope granted to the client.",
	}

	ErrUnsupportedGrantType = &Error{
		Code:        "unsupported_grant_type",
		Description: "The authorization grant type is not supported.",
	}

	// ErrInvalidToken lo usa check_token; la causa (jwt.ErrExpiredToken, ...) queda en Err.
	ErrInvalidToken = &Error{
		Code:        "invalid_token",
		Description: "The token is malformed, expired, or its signature is invalid.",
	}

	ErrTimeout = &Error{
		Code:        "temporarily_unavailable",
		Description: "A dependency did not answer in time.",
	}

	ErrServerError = &Error{
		Code:        "server_error",
		Description: "The authorization server encountered an unexpected condition.",
	}
)

// From convierte cualquier error en *Error. Lo que no sea *Error se vuelve server_error
// conservando la causa.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WithCause(ErrServerError, err)
}
