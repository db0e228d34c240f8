package clients

import "errors"

var (
	ErrDuplicateClient     = errors.New("clients: client already registered")
	ErrNoSuchClient        = errors.New("clients: no such client")
	ErrInvalidRegistration = errors.New("clients: invalid registration")
)
