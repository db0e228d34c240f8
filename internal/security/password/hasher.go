// Package password implementa hashing de credenciales multi-algoritmo.
//
// Formato almacenado: "{id}" + encoding nativo del algoritmo, ej:
//
//	{argon2id}$argon2id$v=19$m=65536,t=3,p=1$<salt>$<dk>
//	{bcrypt}$2a$10$...
//
// El prefijo permite convivir varios algoritmos y migrar de a poco: Verify despacha
// por id y NeedsRehash avisa cuando conviene re-hashear con el default.
// Nunca loguea plaintext ni hashes.
package password

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm es un comparador concreto. Verify debe ser tiempo constante.
type Algorithm interface {
	ID() string
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
}

var ErrEmpty = errors.New("password: empty plaintext")

// Hasher elige el algoritmo default para Hash y despacha Verify por prefijo.
// Inmutable después de NewHasher.
type Hasher struct {
	def  Algorithm
	algs map[string]Algorithm
}

// NewHasher registra algs; el primero es el default.
func NewHasher(def Algorithm, others ...Algorithm) (*Hasher, error) {
	if def == nil {
		return nil, errors.New("password: default algorithm required")
	}
	h := &Hasher{def: def, algs: map[string]Algorithm{def.ID(): def}}
	for _, a := range others {
		if _, dup := h.algs[a.ID()]; dup {
			return nil, fmt.Errorf("password: duplicate algorithm %q", a.ID())
		}
		h.algs[a.ID()] = a
	}
	return h, nil
}

// Default: argon2id para hashes nuevos; bcrypt, scrypt y pbkdf2 sólo para verificar.
func Default() *Hasher {
	h, _ := NewHasher(Argon2id(DefaultArgon2), Bcrypt(0), Scrypt(), PBKDF2SHA256(0))
	return h
}

// DefaultID devuelve el id del algoritmo usado por Hash.
func (h *Hasher) DefaultID() string { return h.def.ID() }

// Hash codifica plain con el algoritmo default, con prefijo {id}.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	enc, err := h.def.Hash(plain)
	if err != nil {
		return "", fmt.Errorf("password: hash %s: %w", h.def.ID(), err)
	}
	return "{" + h.def.ID() + "}" + enc, nil
}

// Verify parsea el prefijo y compara. Id desconocido o formato roto => false.
func (h *Hasher) Verify(plain, encoded string) bool {
	id, rest, ok := splitID(encoded)
	if !ok {
		return false
	}
	alg, ok := h.algs[id]
	if !ok {
		return false
	}
	return alg.Verify(plain, rest)
}

// NeedsRehash es true si el hash no usa el algoritmo default (o sus parámetros actuales).
func (h *Hasher) NeedsRehash(encoded string) bool {
	id, rest, ok := splitID(encoded)
	if !ok || id != h.def.ID() {
		return true
	}
	if a, isArgon := h.def.(argon2idAlg); isArgon {
		p, ok := paramsOf(rest)
		return !ok || p.Memory != a.p.Memory || p.Time != a.p.Time || p.Parallelism != a.p.Parallelism
	}
	return false
}

func splitID(encoded string) (id, rest string, ok bool) {
	if !strings.HasPrefix(encoded, "{") {
		return "", "", false
	}
	end := strings.IndexByte(encoded, '}')
	if end <= 1 {
		return "", "", false
	}
	return encoded[1:end], encoded[end+1:], true
}
