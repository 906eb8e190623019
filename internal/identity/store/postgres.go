package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"healthexchange/internal/identity/models"
	"healthexchange/internal/platform/postgres"
	id "healthexchange/pkg/domain"
	"healthexchange/pkg/platform/sentinel"
)

// Postgres persists users in the users table. Uniqueness of principal and
// short id is enforced by the primary key and unique constraint, so a
// duplicate registration fails atomically inside the database.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (principal, short_id, name, email, phone, location, credential, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(user.Principal), int32(user.ShortID), user.Name, user.Email,
		user.Phone, user.Location, user.CredentialHash, string(user.Role), user.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByPrincipal(ctx context.Context, principal id.Principal) (*models.User, error) {
	return s.find(ctx, `WHERE principal = $1`, uuid.UUID(principal))
}

func (s *Postgres) FindByShortID(ctx context.Context, shortID id.ShortID) (*models.User, error) {
	return s.find(ctx, `WHERE short_id = $1`, int32(shortID))
}

func (s *Postgres) find(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT principal, short_id, name, email, phone, location, credential, role, created_at
		FROM users `+where, arg)

	var (
		user      models.User
		principal uuid.UUID
		shortID   int32
		role      string
	)
	err := row.Scan(&principal, &shortID, &user.Name, &user.Email, &user.Phone,
		&user.Location, &user.CredentialHash, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.Principal = id.Principal(principal)
	user.ShortID = id.ShortID(shortID)
	user.Role = id.Role(role)
	return &user, nil
}
