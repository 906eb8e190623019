//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthexchange/internal/access/store"
	"healthexchange/internal/platform/postgres"
	id "healthexchange/pkg/domain"
	"healthexchange/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *store.Postgres
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	db, err := postgres.Open(ctx, containers.NewPostgresDSN(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(postgres.EnsureSchema(ctx, db))
	s.db = db
	s.store = store.NewPostgres(db)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), "TRUNCATE access_grants")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAddReportsChange() {
	ctx := context.Background()
	grantee := id.NewPrincipal()

	added, err := s.store.Add(ctx, 123456, grantee, s.now)
	s.Require().NoError(err)
	s.True(added)

	added, err = s.store.Add(ctx, 123456, grantee, s.now)
	s.Require().NoError(err)
	s.False(added)

	has, err := s.store.Has(ctx, 123456, grantee)
	s.Require().NoError(err)
	s.True(has)
}

func (s *PostgresStoreSuite) TestRemoveReportsChange() {
	ctx := context.Background()
	grantee := id.NewPrincipal()

	removed, err := s.store.Remove(ctx, 123456, grantee)
	s.Require().NoError(err)
	s.False(removed)

	_, err = s.store.Add(ctx, 123456, grantee, s.now)
	s.Require().NoError(err)

	removed, err = s.store.Remove(ctx, 123456, grantee)
	s.Require().NoError(err)
	s.True(removed)
}

func (s *PostgresStoreSuite) TestListings() {
	ctx := context.Background()
	first := id.NewPrincipal()
	second := id.NewPrincipal()

	_, err := s.store.Add(ctx, 123456, first, s.now)
	s.Require().NoError(err)
	_, err = s.store.Add(ctx, 123456, second, s.now.Add(time.Minute))
	s.Require().NoError(err)
	_, err = s.store.Add(ctx, 234567, first, s.now)
	s.Require().NoError(err)

	grantees, err := s.store.ListGrantees(ctx, 123456)
	s.Require().NoError(err)
	s.Equal([]id.Principal{first, second}, grantees)

	patients, err := s.store.ListPatients(ctx, first)
	s.Require().NoError(err)
	s.Equal([]id.ShortID{123456, 234567}, patients)
}
