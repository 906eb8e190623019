package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthexchange/internal/audit"
	"healthexchange/internal/identity/store"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/testutil"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *audit.InMemoryStore) {
	t.Helper()
	auditStore := audit.NewInMemoryStore()
	svc := New(store.NewInMemory(), WithAuditPublisher(audit.NewPublisher(auditStore)))
	return svc, auditStore
}

func validRequest(shortID id.ShortID, role id.Role) RegisterRequest {
	return RegisterRequest{
		Name:       "Alice",
		Email:      "alice@example.com",
		Phone:      "555-0100",
		ShortID:    shortID,
		Location:   "Springfield",
		Credential: "correct horse battery staple",
		Role:       role,
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates the user and stamps request time", func(t *testing.T) {
		svc, auditStore := newService(t)
		ctx := testutil.AuthedContext(id.NewPrincipal(), fixedNow)

		user, err := svc.Register(ctx, validRequest(123456, id.RolePatient))
		require.NoError(t, err)
		assert.Equal(t, id.ShortID(123456), user.ShortID)
		assert.Equal(t, id.RolePatient, user.Role)
		assert.Equal(t, fixedNow, user.CreatedAt)
		assert.NotEqual(t, "correct horse battery staple", user.CredentialHash)

		events := auditStore.ListAll()
		require.Len(t, events, 1)
		assert.Equal(t, audit.KindUserRegistered, events[0].Kind)
		assert.Equal(t, id.ShortID(123456), events[0].SubjectShortID)
	})

	t.Run("rejects a duplicate short id", func(t *testing.T) {
		svc, auditStore := newService(t)

		_, err := svc.Register(testutil.AuthedContext(id.NewPrincipal(), fixedNow), validRequest(123456, id.RolePatient))
		require.NoError(t, err)

		_, err = svc.Register(testutil.AuthedContext(id.NewPrincipal(), fixedNow), validRequest(123456, id.RoleDoctor))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateIdentity))
		assert.Len(t, auditStore.ListAll(), 1, "failed registration must not be audited")
	})

	t.Run("rejects a duplicate principal", func(t *testing.T) {
		svc, _ := newService(t)
		ctx := testutil.AuthedContext(id.NewPrincipal(), fixedNow)

		_, err := svc.Register(ctx, validRequest(123456, id.RolePatient))
		require.NoError(t, err)

		_, err = svc.Register(ctx, validRequest(234567, id.RoleDoctor))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateIdentity))

		// Checks-before-effects: the failed registration claimed nothing.
		_, err = svc.LookupByShortID(ctx, 234567)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIdentityNotFound))
	})

	t.Run("rejects invalid input before any write", func(t *testing.T) {
		svc, auditStore := newService(t)
		ctx := testutil.AuthedContext(id.NewPrincipal(), fixedNow)

		bad := validRequest(123456, id.RolePatient)
		bad.Name = "   "
		_, err := svc.Register(ctx, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		bad = validRequest(99999, id.RolePatient)
		_, err = svc.Register(ctx, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		bad = validRequest(123456, id.Role("admin"))
		_, err = svc.Register(ctx, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		bad = validRequest(123456, id.RolePatient)
		bad.Credential = ""
		_, err = svc.Register(ctx, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		assert.Empty(t, auditStore.ListAll())
	})

	t.Run("requires a caller principal", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Register(context.Background(), validRequest(123456, id.RolePatient))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestResolveAndLookup(t *testing.T) {
	svc, _ := newService(t)
	principal := id.NewPrincipal()
	ctx := testutil.AuthedContext(principal, fixedNow)

	_, err := svc.Register(ctx, validRequest(123456, id.RolePatient))
	require.NoError(t, err)

	t.Run("resolve maps short id to principal", func(t *testing.T) {
		resolved, err := svc.Resolve(ctx, 123456)
		require.NoError(t, err)
		assert.Equal(t, principal, resolved)
	})

	t.Run("unknown short id is identity_not_found", func(t *testing.T) {
		_, err := svc.Resolve(ctx, 999999)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIdentityNotFound))
	})

	t.Run("malformed short id is invalid_input, not not_found", func(t *testing.T) {
		_, err := svc.LookupByShortID(ctx, 42)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown principal is identity_not_found", func(t *testing.T) {
		_, err := svc.Lookup(ctx, id.NewPrincipal())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIdentityNotFound))
	})
}

func TestVerifyCredential(t *testing.T) {
	svc, _ := newService(t)
	ctx := testutil.AuthedContext(id.NewPrincipal(), fixedNow)
	_, err := svc.Register(ctx, validRequest(123456, id.RolePatient))
	require.NoError(t, err)

	t.Run("accepts the registered credential", func(t *testing.T) {
		user, err := svc.VerifyCredential(ctx, 123456, "correct horse battery staple")
		require.NoError(t, err)
		assert.Equal(t, id.ShortID(123456), user.ShortID)
	})

	t.Run("rejects a wrong credential", func(t *testing.T) {
		_, err := svc.VerifyCredential(ctx, 123456, "wrong")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown short id is identity_not_found", func(t *testing.T) {
		_, err := svc.VerifyCredential(ctx, 999999, "whatever")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIdentityNotFound))
	})
}
