package keys

import (
	"errors"
	"fmt"
)

// ErrKeyLoad permite errors.Is(err, keys.ErrKeyLoad) sin conocer el detalle.
var ErrKeyLoad = errors.New("key load failed")

// KeyLoadError es fatal: el proceso no debe arrancar sin material de firma válido.
// Nunca incluye passwords ni bytes de clave.
type KeyLoadError struct {
	Alias  string
	Reason string
	Err    error
}

func (e *KeyLoadError) Error() string {
	msg := fmt.Sprintf("keys: cannot load alias %q: %s", e.Alias, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *KeyLoadError) Unwrap() error { return e.Err }

func (e *KeyLoadError) Is(target error) bool { return target == ErrKeyLoad }

func loadErr(alias, reason string, err error) error {
	return &KeyLoadError{Alias: alias, Reason: reason, Err: err}
}
