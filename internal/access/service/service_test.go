package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessstore "healthexchange/internal/access/store"
	"healthexchange/internal/audit"
	identityservice "healthexchange/internal/identity/service"
	identitystore "healthexchange/internal/identity/store"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/testutil"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	access     *Service
	identity   *identityservice.Service
	auditStore *audit.InMemoryStore

	patient  id.Principal
	doctor   id.Principal
	hospital id.Principal
}

const (
	patientID  = id.ShortID(123456)
	doctorID   = id.ShortID(234567)
	hospitalID = id.ShortID(345678)
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	auditStore := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(auditStore)
	identity := identityservice.New(identitystore.NewInMemory(),
		identityservice.WithAuditPublisher(publisher))
	access := New(accessstore.NewInMemory(), identity, WithAuditPublisher(publisher))

	f := &fixture{
		access:     access,
		identity:   identity,
		auditStore: auditStore,
		patient:    id.NewPrincipal(),
		doctor:     id.NewPrincipal(),
		hospital:   id.NewPrincipal(),
	}
	f.register(t, f.patient, patientID, id.RolePatient)
	f.register(t, f.doctor, doctorID, id.RoleDoctor)
	f.register(t, f.hospital, hospitalID, id.RoleHospital)
	return f
}

func (f *fixture) register(t *testing.T, principal id.Principal, shortID id.ShortID, role id.Role) {
	t.Helper()
	_, err := f.identity.Register(testutil.AuthedContext(principal, fixedNow), identityservice.RegisterRequest{
		Name:       "User " + shortID.String(),
		ShortID:    shortID,
		Credential: "secret",
		Role:       role,
	})
	require.NoError(t, err)
}

func (f *fixture) auditKinds() []audit.Kind {
	var kinds []audit.Kind
	for _, e := range f.auditStore.ListAll() {
		if e.Kind != audit.KindUserRegistered {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

func TestCheckAccess(t *testing.T) {
	t.Run("patient always reads their own records", func(t *testing.T) {
		f := newFixture(t)
		allowed, err := f.access.CheckAccess(testutil.AuthedContext(f.patient, fixedNow), patientID, f.patient)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("others are denied until granted", func(t *testing.T) {
		f := newFixture(t)
		ctx := testutil.AuthedContext(f.patient, fixedNow)

		allowed, err := f.access.CheckAccess(ctx, patientID, f.doctor)
		require.NoError(t, err)
		assert.False(t, allowed)

		require.NoError(t, f.access.Grant(ctx, patientID, doctorID))

		allowed, err = f.access.CheckAccess(ctx, patientID, f.doctor)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("unknown patient yields false, never an error", func(t *testing.T) {
		f := newFixture(t)
		allowed, err := f.access.CheckAccess(testutil.AuthedContext(f.doctor, fixedNow), 999999, f.doctor)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("nil principal is denied", func(t *testing.T) {
		f := newFixture(t)
		allowed, err := f.access.CheckAccess(testutil.AuthedContext(f.patient, fixedNow), patientID, id.Principal{})
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("revocation takes effect on the next check", func(t *testing.T) {
		f := newFixture(t)
		ctx := testutil.AuthedContext(f.patient, fixedNow)
		require.NoError(t, f.access.Grant(ctx, patientID, doctorID))
		require.NoError(t, f.access.Revoke(ctx, patientID, doctorID))

		allowed, err := f.access.CheckAccess(ctx, patientID, f.doctor)
		require.NoError(t, err)
		assert.False(t, allowed, "permission checks must re-read current state")
	})
}

func TestGrant(t *testing.T) {
	t.Run("only the patient may grant", func(t *testing.T) {
		f := newFixture(t)
		err := f.access.Grant(testutil.AuthedContext(f.doctor, fixedNow), patientID, doctorID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown patient reads as not-the-owner", func(t *testing.T) {
		f := newFixture(t)
		err := f.access.Grant(testutil.AuthedContext(f.patient, fixedNow), 999999, doctorID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("grantee must exist", func(t *testing.T) {
		f := newFixture(t)
		err := f.access.Grant(testutil.AuthedContext(f.patient, fixedNow), patientID, 999999)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIdentityNotFound))
	})

	t.Run("grantee must be a doctor or hospital", func(t *testing.T) {
		f := newFixture(t)
		other := id.NewPrincipal()
		f.register(t, other, 456789, id.RolePatient)

		err := f.access.Grant(testutil.AuthedContext(f.patient, fixedNow), patientID, 456789)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeRoleMismatch))
	})

	t.Run("repeat grant is a silent no-op", func(t *testing.T) {
		f := newFixture(t)
		ctx := testutil.AuthedContext(f.patient, fixedNow)

		require.NoError(t, f.access.Grant(ctx, patientID, doctorID))
		require.NoError(t, f.access.Grant(ctx, patientID, doctorID))

		assert.Equal(t, []audit.Kind{audit.KindAccessGranted}, f.auditKinds(),
			"idempotent repeat must not add audit noise")
	})
}

func TestRevoke(t *testing.T) {
	t.Run("only the patient may revoke", func(t *testing.T) {
		f := newFixture(t)
		ctx := testutil.AuthedContext(f.patient, fixedNow)
		require.NoError(t, f.access.Grant(ctx, patientID, doctorID))

		err := f.access.Revoke(testutil.AuthedContext(f.doctor, fixedNow), patientID, doctorID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("revoking an absent grant is a silent no-op", func(t *testing.T) {
		f := newFixture(t)
		ctx := testutil.AuthedContext(f.patient, fixedNow)

		require.NoError(t, f.access.Revoke(ctx, patientID, doctorID))
		assert.Empty(t, f.auditKinds())
	})

	t.Run("revoking an unregistered grantee is a silent no-op", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.access.Revoke(testutil.AuthedContext(f.patient, fixedNow), patientID, 999999))
		assert.Empty(t, f.auditKinds())
	})

	t.Run("ownership is checked before the grantee is resolved", func(t *testing.T) {
		f := newFixture(t)
		err := f.access.Revoke(testutil.AuthedContext(f.doctor, fixedNow), patientID, 999999)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestListGrantees(t *testing.T) {
	t.Run("returns directory entries in grant order", func(t *testing.T) {
		f := newFixture(t)
		ctx := testutil.AuthedContext(f.patient, fixedNow)
		require.NoError(t, f.access.Grant(ctx, patientID, doctorID))

		later := testutil.AuthedContext(f.patient, fixedNow.Add(time.Minute))
		require.NoError(t, f.access.Grant(later, patientID, hospitalID))

		grantees, err := f.access.ListGrantees(ctx, patientID)
		require.NoError(t, err)
		require.Len(t, grantees, 2)
		assert.Equal(t, doctorID, grantees[0].ShortID)
		assert.Equal(t, hospitalID, grantees[1].ShortID)
	})

	t.Run("a grantee cannot list the table", func(t *testing.T) {
		f := newFixture(t)
		ctx := testutil.AuthedContext(f.patient, fixedNow)
		require.NoError(t, f.access.Grant(ctx, patientID, doctorID))

		_, err := f.access.ListGrantees(testutil.AuthedContext(f.doctor, fixedNow), patientID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestAccessiblePatients(t *testing.T) {
	f := newFixture(t)
	second := id.NewPrincipal()
	f.register(t, second, 456789, id.RolePatient)

	require.NoError(t, f.access.Grant(testutil.AuthedContext(f.patient, fixedNow), patientID, doctorID))
	require.NoError(t, f.access.Grant(testutil.AuthedContext(second, fixedNow), 456789, doctorID))

	patients, err := f.access.AccessiblePatients(testutil.AuthedContext(f.doctor, fixedNow))
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.ShortID{patientID, 456789}, patients)

	t.Run("revocation removes the entry", func(t *testing.T) {
		require.NoError(t, f.access.Revoke(testutil.AuthedContext(f.patient, fixedNow), patientID, doctorID))

		patients, err := f.access.AccessiblePatients(testutil.AuthedContext(f.doctor, fixedNow))
		require.NoError(t, err)
		assert.Equal(t, []id.ShortID{456789}, patients)
	})
}
