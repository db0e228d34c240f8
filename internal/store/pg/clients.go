package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authcore/internal/domain"
)

// ClientStore implementa domain.ClientStore sobre la tabla oauth_client.
type ClientStore struct{ pool *pgxpool.Pool }

var _ domain.ClientStore = (*ClientStore)(nil)

const clientColumns = `client_id, name, secret_hash, grant_types, scopes, authorities, redirect_uris,
	access_token_ttl, refresh_token_ttl, created_at, updated_at`

func (s *ClientStore) Get(ctx context.Context, clientID string) (*domain.Client, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth_client WHERE client_id = $1`, clientID)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get client: %w", err)
	}
	return c, nil
}

func (s *ClientStore) Put(ctx context.Context, c *domain.Client, overwrite bool) error {
	args := []any{
		c.ClientID, c.Name, c.SecretHash, grantStrings(c.GrantTypes),
		nonNil(c.Scopes), nonNil(c.Authorities), nonNil(c.RedirectURIs),
		c.AccessTokenTTL, c.RefreshTokenTTL, c.CreatedAt, c.UpdatedAt,
	}
	if !overwrite {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO oauth_client (`+clientColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (client_id) DO NOTHING`, args...)
		if err != nil {
			return fmt.Errorf("pg: insert client: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE oauth_client SET
			name = $2, secret_hash = $3, grant_types = $4, scopes = $5, authorities = $6,
			redirect_uris = $7, access_token_ttl = $8, refresh_token_ttl = $9,
			created_at = $10, updated_at = $11
		WHERE client_id = $1`, args...)
	if err != nil {
		return fmt.Errorf("pg: update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ClientStore) Delete(ctx context.Context, clientID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM oauth_client WHERE client_id = $1`, clientID); err != nil {
		return fmt.Errorf("pg: delete client: %w", err)
	}
	return nil
}

func (s *ClientStore) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+clientColumns+` FROM oauth_client ORDER BY client_id`)
	if err != nil {
		return nil, fmt.Errorf("pg: list clients: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Client, error) {
		c, err := scanClient(r)
		if err != nil {
			return domain.Client{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pg: scan clients: %w", err)
	}
	return out, nil
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var (
		c      domain.Client
		grants []string
	)
	err := row.Scan(
		&c.ClientID, &c.Name, &c.SecretHash, &grants, &c.Scopes, &c.Authorities, &c.RedirectURIs,
		&c.AccessTokenTTL, &c.RefreshTokenTTL, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.GrantTypes = make([]domain.GrantType, 0, len(grants))
	for _, g := range grants {
		c.GrantTypes = append(c.GrantTypes, domain.GrantType(g))
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func grantStrings(gs []domain.GrantType) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = string(g)
	}
	return out
}

// nonNil: las columnas TEXT[] son NOT NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
