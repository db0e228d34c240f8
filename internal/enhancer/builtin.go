package enhancer

import (
	"maps"

	"github.com/dropDatabas3/authcore/internal/jwt"
)

// Static agrega claims fijos de configuración (p.ej. organization). El mapa se
// copia al construir; cambios posteriores del caller no afectan a la cadena.
func Static(name string, claims map[string]any) Enhancer {
	fixed := maps.Clone(claims)
	return Enhancer{Name: name, Fn: func(c jwt.Claims) jwt.Claims {
		if len(fixed) == 0 {
			return c
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any, len(fixed))
		}
		maps.Copy(c.Extra, fixed)
		return c
	}}
}

// PerClient agrega claims según el client_id del token. Igual que Static, la
// tabla se congela al construir.
func PerClient(name string, byClient map[string]map[string]any) Enhancer {
	table := make(map[string]map[string]any, len(byClient))
	for id, m := range byClient {
		table[id] = maps.Clone(m)
	}
	return Enhancer{Name: name, Fn: func(c jwt.Claims) jwt.Claims {
		add, ok := table[c.ClientID]
		if !ok || len(add) == 0 {
			return c
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any, len(add))
		}
		maps.Copy(c.Extra, add)
		return c
	}}
}
