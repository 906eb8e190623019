package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessservice "healthexchange/internal/access/service"
	accessstore "healthexchange/internal/access/store"
	"healthexchange/internal/audit"
	identityservice "healthexchange/internal/identity/service"
	identitystore "healthexchange/internal/identity/store"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/testutil"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

const (
	patientID  = id.ShortID(123456)
	doctorID   = id.ShortID(234567)
	hospitalID = id.ShortID(345678)
)

type fixture struct {
	emergency  *Service
	access     *accessservice.Service
	identity   *identityservice.Service
	auditStore *audit.InMemoryStore

	patient  id.Principal
	doctor   id.Principal
	hospital id.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	auditStore := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(auditStore)
	identity := identityservice.New(identitystore.NewInMemory())
	access := accessservice.New(accessstore.NewInMemory(), identity,
		accessservice.WithAuditPublisher(publisher))

	f := &fixture{
		emergency:  New(identity, access),
		access:     access,
		identity:   identity,
		auditStore: auditStore,
		patient:    id.NewPrincipal(),
		doctor:     id.NewPrincipal(),
		hospital:   id.NewPrincipal(),
	}

	register := func(principal id.Principal, shortID id.ShortID, role id.Role) {
		_, err := identity.Register(testutil.AuthedContext(principal, fixedNow), identityservice.RegisterRequest{
			Name:       "User " + shortID.String(),
			ShortID:    shortID,
			Credential: "secret",
			Role:       role,
		})
		require.NoError(t, err)
	}
	register(f.patient, patientID, id.RolePatient)
	register(f.doctor, doctorID, id.RoleDoctor)
	register(f.hospital, hospitalID, id.RoleHospital)
	return f
}

func (f *fixture) grantHospitalAccess(t *testing.T) {
	t.Helper()
	require.NoError(t, f.access.Grant(testutil.AuthedContext(f.patient, fixedNow), patientID, hospitalID))
}

func TestShare(t *testing.T) {
	t.Run("hospital with access extends it to the recipient", func(t *testing.T) {
		f := newFixture(t)
		f.grantHospitalAccess(t)

		err := f.emergency.Share(testutil.AuthedContext(f.hospital, fixedNow), patientID, doctorID)
		require.NoError(t, err)

		allowed, err := f.access.CheckAccess(testutil.AuthedContext(f.hospital, fixedNow), patientID, f.doctor)
		require.NoError(t, err)
		assert.True(t, allowed)

		events := f.auditStore.ListAll()
		var found *audit.Event
		for i := range events {
			if events[i].Kind == audit.KindEmergencyAccessGranted {
				found = &events[i]
			}
		}
		require.NotNil(t, found, "emergency share must write its distinct audit kind")
		assert.Equal(t, f.hospital, found.Actor)
		assert.Equal(t, patientID, found.SubjectShortID)
		assert.Equal(t, doctorID, found.RelatedShortID)
	})

	t.Run("hospital without access is denied", func(t *testing.T) {
		f := newFixture(t)
		err := f.emergency.Share(testutil.AuthedContext(f.hospital, fixedNow), patientID, doctorID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	t.Run("non-hospital callers get the same denial", func(t *testing.T) {
		f := newFixture(t)
		f.grantHospitalAccess(t)
		require.NoError(t, f.access.Grant(testutil.AuthedContext(f.patient, fixedNow), patientID, doctorID))

		// A doctor with access and the patient themselves are both refused,
		// with an error indistinguishable from the missing-access case.
		errDoctor := f.emergency.Share(testutil.AuthedContext(f.doctor, fixedNow), patientID, hospitalID)
		errPatient := f.emergency.Share(testutil.AuthedContext(f.patient, fixedNow), patientID, doctorID)
		errNoAccess := f.emergency.Share(testutil.AuthedContext(id.NewPrincipal(), fixedNow), patientID, doctorID)

		for _, err := range []error{errDoctor, errPatient, errNoAccess} {
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
		}
		assert.Equal(t, errDoctor.Error(), errPatient.Error())
		assert.Equal(t, errDoctor.Error(), errNoAccess.Error())
	})

	t.Run("recipient must exist", func(t *testing.T) {
		f := newFixture(t)
		f.grantHospitalAccess(t)

		err := f.emergency.Share(testutil.AuthedContext(f.hospital, fixedNow), patientID, 999999)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIdentityNotFound))
	})

	t.Run("recipient role is unrestricted", func(t *testing.T) {
		f := newFixture(t)
		f.grantHospitalAccess(t)
		other := id.NewPrincipal()
		_, err := f.identity.Register(testutil.AuthedContext(other, fixedNow), identityservice.RegisterRequest{
			Name:       "Second Patient",
			ShortID:    456789,
			Credential: "secret",
			Role:       id.RolePatient,
		})
		require.NoError(t, err)

		require.NoError(t, f.emergency.Share(testutil.AuthedContext(f.hospital, fixedNow), patientID, 456789))

		allowed, err := f.access.CheckAccess(testutil.AuthedContext(f.hospital, fixedNow), patientID, other)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("repeat share is a silent no-op", func(t *testing.T) {
		f := newFixture(t)
		f.grantHospitalAccess(t)

		ctx := testutil.AuthedContext(f.hospital, fixedNow)
		require.NoError(t, f.emergency.Share(ctx, patientID, doctorID))
		require.NoError(t, f.emergency.Share(ctx, patientID, doctorID))

		var count int
		for _, e := range f.auditStore.ListAll() {
			if e.Kind == audit.KindEmergencyAccessGranted {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}
