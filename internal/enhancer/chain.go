// Package enhancer aplica, en orden de registro, funciones puras que agregan
// claims extra antes de firmar.
package enhancer

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/authcore/internal/jwt"
)

var (
	// ErrRequiredClaimTampered: un paso modificó sub, client_id, scope, iat, exp, jti o token_type.
	ErrRequiredClaimTampered = errors.New("enhancer modified a required claim")
	// ErrInvalidExtraClaim: un paso dejó un extra reservado o no escalar.
	ErrInvalidExtraClaim = errors.New("enhancer produced an invalid extra claim")
)

// Func recibe una copia propia de los claims y devuelve la versión aumentada.
// No debe hacer I/O ni tocar estado compartido.
type Func func(jwt.Claims) jwt.Claims

// Enhancer es un paso con nombre (el nombre aparece en errores y logs).
type Enhancer struct {
	Name string
	Fn   Func
}

// Chain es inmutable; Apply se puede llamar concurrentemente.
type Chain struct {
	steps []Enhancer
}

func NewChain(steps ...Enhancer) (*Chain, error) {
	seen := make(map[string]struct{}, len(steps))
	out := make([]Enhancer, 0, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("enhancer: step %d has no name", i)
		}
		if s.Fn == nil {
			return nil, fmt.Errorf("enhancer: step %q has no function", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("enhancer: duplicate step %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		out = append(out, s)
	}
	return &Chain{steps: out}, nil
}

// Names devuelve los pasos en orden de ejecución.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name
	}
	return names
}

// Apply corre los pasos en orden. El input nunca se modifica. Una cadena nil
// devuelve una copia sin cambios.
func (c *Chain) Apply(in jwt.Claims) (jwt.Claims, error) {
	cur := in.Clone()
	if c == nil {
		return cur, nil
	}
	for _, s := range c.steps {
		next := s.Fn(cur.Clone())
		if !next.SameRequired(in) {
			return jwt.Claims{}, fmt.Errorf("%w: step %q", ErrRequiredClaimTampered, s.Name)
		}
		extra, err := normalizeExtra(next.Extra)
		if err != nil {
			return jwt.Claims{}, fmt.Errorf("%w: step %q: %v", ErrInvalidExtraClaim, s.Name, err)
		}
		next.Extra = extra
		cur = next
	}
	return cur, nil
}

func normalizeExtra(in map[string]any) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == "" || jwt.IsReserved(k) {
			return nil, fmt.Errorf("claim %q is reserved", k)
		}
		n, err := jwt.NormalizeScalar(v)
		if err != nil {
			return nil, fmt.Errorf("claim %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
