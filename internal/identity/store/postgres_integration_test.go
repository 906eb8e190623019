//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthexchange/internal/identity/models"
	"healthexchange/internal/identity/store"
	"healthexchange/internal/platform/postgres"
	id "healthexchange/pkg/domain"
	"healthexchange/pkg/platform/sentinel"
	"healthexchange/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	dsn := containers.NewPostgresDSN(s.T())

	db, err := postgres.Open(ctx, dsn)
	s.Require().NoError(err)
	s.Require().NoError(postgres.EnsureSchema(ctx, db))

	s.db = db
	s.store = store.NewPostgres(db)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), "TRUNCATE users CASCADE")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newUser(shortID id.ShortID) *models.User {
	user, err := models.NewUser(id.NewPrincipal(), shortID, "Alice", "alice@example.com",
		"555-0100", "Springfield", "hash", id.RolePatient, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return user
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	user := s.newUser(123456)
	s.Require().NoError(s.store.Create(ctx, user))

	byShortID, err := s.store.FindByShortID(ctx, 123456)
	s.Require().NoError(err)
	s.Equal(user.Principal, byShortID.Principal)
	s.Equal(user.Name, byShortID.Name)
	s.Equal(user.Role, byShortID.Role)

	byPrincipal, err := s.store.FindByPrincipal(ctx, user.Principal)
	s.Require().NoError(err)
	s.Equal(user.ShortID, byPrincipal.ShortID)
}

func (s *PostgresStoreSuite) TestDuplicateShortIDIsRejected() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newUser(123456)))
	s.Require().ErrorIs(s.store.Create(ctx, s.newUser(123456)), sentinel.ErrAlreadyExists)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByShortID(ctx, 999999)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
