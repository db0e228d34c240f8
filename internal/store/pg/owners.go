package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authcore/internal/domain"
)

// OwnerStore lee y crea resource owners (tabla resource_owner).
type OwnerStore struct{ pool *pgxpool.Pool }

var _ domain.ResourceOwnerLookup = (*OwnerStore)(nil)

// Owners devuelve el repo de resource owners sobre este pool.
func (s *Store) Owners() *OwnerStore { return &OwnerStore{pool: s.pool} }

// FindOwner busca por username sin distinguir mayúsculas.
func (s *OwnerStore) FindOwner(ctx context.Context, username string) (*domain.ResourceOwner, error) {
	var o domain.ResourceOwner
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, disabled, created_at
		FROM resource_owner
		WHERE LOWER(username) = LOWER($1)
		LIMIT 1`, strings.TrimSpace(username),
	).Scan(&id, &o.Username, &o.PasswordHash, &o.Disabled, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: find owner: %w", err)
	}
	o.ID = id.String()
	return &o, nil
}

// CreateOwner inserta un owner con un hash ya calculado. ErrConflict si el username existe.
func (s *OwnerStore) CreateOwner(ctx context.Context, username, passwordHash string) (*domain.ResourceOwner, error) {
	o := &domain.ResourceOwner{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resource_owner (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`, o.ID, o.Username, o.PasswordHash, o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("pg: create owner: %w", err)
	}
	return o, nil
}

// SetOwnerDisabled habilita/deshabilita un owner.
func (s *OwnerStore) SetOwnerDisabled(ctx context.Context, username string, disabled bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE resource_owner SET disabled = $2 WHERE LOWER(username) = LOWER($1)`, username, disabled)
	if err != nil {
		return fmt.Errorf("pg: disable owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
