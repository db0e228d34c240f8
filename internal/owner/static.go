package owner

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain"
)

// StaticUser es un owner definido en configuración (password ya hasheada con {id}).
type StaticUser struct {
	ID           string `yaml:"id"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Disabled     bool   `yaml:"disabled"`
}

// Static es un domain.ResourceOwnerLookup en memoria, inmutable.
type Static struct {
	byName map[string]domain.ResourceOwner
}

// NewStatic valida ids/usernames únicos. El username se compara sin mayúsculas.
func NewStatic(users []StaticUser) (*Static, error) {
	s := &Static{byName: make(map[string]domain.ResourceOwner, len(users))}
	ids := make(map[string]struct{}, len(users))
	for _, u := range users {
		name := strings.ToLower(strings.TrimSpace(u.Username))
		if name == "" || u.ID == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("owner: static user %q needs id, username and password_hash", u.Username)
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("owner: duplicate username %q", u.Username)
		}
		if _, dup := ids[u.ID]; dup {
			return nil, fmt.Errorf("owner: duplicate id %q", u.ID)
		}
		ids[u.ID] = struct{}{}
		s.byName[name] = domain.ResourceOwner{
			ID: u.ID, Username: u.Username, PasswordHash: u.PasswordHash, Disabled: u.Disabled,
		}
	}
	return s, nil
}

func (s *Static) FindOwner(_ context.Context, username string) (*domain.ResourceOwner, error) {
	o, ok := s.byName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}
