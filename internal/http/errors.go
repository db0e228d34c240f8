package http

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/oautherr"
)

// apiError es el cuerpo de error OAuth2 (RFC 6749 §5.2).
type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// statusFor mapea el código OAuth a HTTP.
func statusFor(code string) int {
	switch code {
	case oautherr.ErrInvalidClient.Code:
		return http.StatusUnauthorized
	case oautherr.ErrServerError.Code:
		return http.StatusInternalServerError
	case oautherr.ErrTimeout.Code:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// WriteOAuthError escribe un *oautherr.Error. La causa nunca sale al cliente.
func WriteOAuthError(w http.ResponseWriter, err error) {
	oe := oautherr.From(err)
	status := statusFor(oe.Code)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2/client"`)
	}
	desc := oe.Description
	if status >= 500 {
		// no filtrar detalles internos
		desc = oautherr.ErrServerError.Description
		if oe.Code == oautherr.ErrTimeout.Code {
			desc = oautherr.ErrTimeout.Description
		}
	}
	noStore(w)
	WriteJSON(w, status, apiError{Error: oe.Code, ErrorDescription: desc})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// noStore: respuestas con tokens o credenciales no se cachean (RFC 6749 §5.1).
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
