package enhancer

import (
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/stretchr/testify/require"
)

func baseClaims() jwt.Claims {
	now := time.Unix(1_700_000_000, 0).UTC()
	return jwt.Claims{
		Subject:   "alice",
		ClientID:  "web-app",
		Scopes:    []string{"read"},
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		JTI:       "jti-1",
		TokenType: jwt.TokenTypeAccess,
	}
}

func TestChain_AppliesInOrder(t *testing.T) {
	c, err := NewChain(
		Static("org", map[string]any{"organization": "acme", "level": 1}),
		Enhancer{Name: "override", Fn: func(cl jwt.Claims) jwt.Claims {
			cl.Extra["organization"] = "acme-" + cl.Subject
			return cl
		}},
		PerClient("per-client", map[string]map[string]any{"web-app": {"client_name": "Web App"}}),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"org", "override", "per-client"}, c.Names())

	in := baseClaims()
	out, err := c.Apply(in)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"organization": "acme-alice",
		"level":        int64(1),
		"client_name":  "Web App",
	}, out.Extra)
	require.Nil(t, in.Extra, "input must not be mutated")
}

func TestChain_RejectsRequiredFieldChanges(t *testing.T) {
	cases := map[string]Func{
		"subject": func(cl jwt.Claims) jwt.Claims { cl.Subject = "mallory"; return cl },
		"scopes":  func(cl jwt.Claims) jwt.Claims { cl.Scopes = nil; return cl },
		"widen":   func(cl jwt.Claims) jwt.Claims { cl.Scopes = append(cl.Scopes, "admin"); return cl },
		"expiry":  func(cl jwt.Claims) jwt.Claims { cl.ExpiresAt = cl.ExpiresAt.Add(time.Hour); return cl },
		"type":    func(cl jwt.Claims) jwt.Claims { cl.TokenType = jwt.TokenTypeRefresh; return cl },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := NewChain(Enhancer{Name: name, Fn: fn})
			require.NoError(t, err)
			_, err = c.Apply(baseClaims())
			require.ErrorIs(t, err, ErrRequiredClaimTampered)
		})
	}
}

func TestChain_RejectsInvalidExtras(t *testing.T) {
	for name, extra := range map[string]map[string]any{
		"reserved":   {"exp": 1},
		"non scalar": {"roles": []string{"a"}},
	} {
		c, err := NewChain(Static(name, extra))
		require.NoError(t, err)
		_, err = c.Apply(baseClaims())
		require.ErrorIs(t, err, ErrInvalidExtraClaim, name)
	}
}

func TestChain_KeepsCanonicalShape(t *testing.T) {
	c, err := NewChain(Enhancer{Name: "clear", Fn: func(cl jwt.Claims) jwt.Claims {
		cl.Extra = map[string]any{}
		return cl
	}})
	require.NoError(t, err)

	in := baseClaims()
	in.Scopes = []string{}
	out, err := c.Apply(in)
	require.NoError(t, err)
	require.Nil(t, out.Extra)
	require.Equal(t, in.Canonical(), out)

	nilScopes, err := NewChain(Enhancer{Name: "nil-scopes", Fn: func(cl jwt.Claims) jwt.Claims {
		cl.Scopes = nil
		return cl
	}})
	require.NoError(t, err)
	_, err = nilScopes.Apply(in)
	require.ErrorIs(t, err, ErrRequiredClaimTampered)
}

func TestNewChain_Validation(t *testing.T) {
	_, err := NewChain(Enhancer{Name: "", Fn: func(c jwt.Claims) jwt.Claims { return c }})
	require.Error(t, err)
	_, err = NewChain(Enhancer{Name: "x"})
	require.Error(t, err)
	_, err = NewChain(Static("x", nil), Static("x", nil))
	require.Error(t, err)

	var nilChain *Chain
	out, err := nilChain.Apply(baseClaims())
	require.NoError(t, err)
	require.Equal(t, baseClaims(), out)
}

func TestChain_ConcurrentApply(t *testing.T) {
	src := map[string]any{"organization": "acme"}
	c, err := NewChain(Static("org", src))
	require.NoError(t, err)
	src["organization"] = "changed"

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Apply(baseClaims())
			if err != nil || out.Extra["organization"] != "acme" {
				t.Errorf("unexpected result: %v %v", out.Extra, err)
			}
		}()
	}
	wg.Wait()
}
