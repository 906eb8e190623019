package service

import (
	"context"
	"log/slog"
	"time"

	accessmetrics "healthexchange/internal/access/metrics"
	"healthexchange/internal/audit"
	"healthexchange/internal/identity/models"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/requestcontext"
)

// Store is the consent table. Add and Remove report whether state actually
// changed so idempotent repeats skip audit noise.
type Store interface {
	Add(ctx context.Context, patient id.ShortID, grantee id.Principal, at time.Time) (bool, error)
	Remove(ctx context.Context, patient id.ShortID, grantee id.Principal) (bool, error)
	Has(ctx context.Context, patient id.ShortID, grantee id.Principal) (bool, error)
	ListGrantees(ctx context.Context, patient id.ShortID) ([]id.Principal, error)
	ListPatients(ctx context.Context, grantee id.Principal) ([]id.ShortID, error)
}

// IdentityDirectory is the slice of the identity registry this service reads.
type IdentityDirectory interface {
	Resolve(ctx context.Context, shortID id.ShortID) (id.Principal, error)
	Lookup(ctx context.Context, principal id.Principal) (*models.User, error)
	LookupByShortID(ctx context.Context, shortID id.ShortID) (*models.User, error)
}

// AuditPublisher records consent changes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the permission engine plus the consent mutations that feed it.
// CheckAccess is a pure function of current registry and table state; nothing
// here caches a decision across calls.
type Service struct {
	grants    Store
	identity  IdentityDirectory
	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *accessmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *accessmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(grants Store, identity IdentityDirectory, opts ...Option) *Service {
	s := &Service{grants: grants, identity: identity, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAccess reports whether principal may read patient's records: either
// the principal is the patient, or it is in the patient's grant set. An
// unknown patient yields false, never an error, so callers cannot learn
// whether the patient exists from the shape of the answer.
func (s *Service) CheckAccess(ctx context.Context, patient id.ShortID, principal id.Principal) (bool, error) {
	if principal.IsNil() {
		return false, nil
	}
	owner, err := s.identity.Resolve(ctx, patient)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeIdentityNotFound) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return false, nil
		}
		return false, err
	}
	if owner == principal {
		return true, nil
	}
	has, err := s.grants.Has(ctx, patient, principal)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check grant")
	}
	if !has && s.metrics != nil {
		s.metrics.ChecksDenied.Inc()
	}
	return has, nil
}

// Grant adds granteeShortID to the patient's consent set. Only the patient
// principal may call this for their own short id; the grantee must be a
// registered doctor or hospital. Granting an existing grantee succeeds
// without effect.
func (s *Service) Grant(ctx context.Context, patient id.ShortID, granteeShortID id.ShortID) error {
	caller := requestcontext.Principal(ctx)
	if err := s.requireOwner(ctx, patient, caller); err != nil {
		return err
	}

	grantee, err := s.identity.LookupByShortID(ctx, granteeShortID)
	if err != nil {
		return err
	}
	if !grantee.Role.CanBeGrantee() {
		return dErrors.New(dErrors.CodeRoleMismatch, "grantee must be a doctor or hospital")
	}
	if grantee.ShortID == patient {
		// Self-grants are meaningless; the owner already has access.
		return nil
	}

	added, err := s.grants.Add(ctx, patient, grantee.Principal, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add grant")
	}
	if !added {
		return nil
	}

	s.logAudit(ctx, audit.Event{
		Kind:           audit.KindAccessGranted,
		Actor:          caller,
		SubjectShortID: patient,
		RelatedShortID: granteeShortID,
		Timestamp:      requestcontext.Now(ctx),
	})
	if s.metrics != nil {
		s.metrics.GrantsIssued.Inc()
	}
	return nil
}

// Revoke removes granteeShortID from the patient's consent set. Revoking an
// absent grantee succeeds without effect.
func (s *Service) Revoke(ctx context.Context, patient id.ShortID, granteeShortID id.ShortID) error {
	caller := requestcontext.Principal(ctx)
	if err := s.requireOwner(ctx, patient, caller); err != nil {
		return err
	}

	grantee, err := s.identity.Resolve(ctx, granteeShortID)
	if err != nil {
		// An unregistered grantee cannot appear in any consent set, so
		// revoking it is the same absent-grantee no-op as below.
		if dErrors.HasCode(err, dErrors.CodeIdentityNotFound) {
			return nil
		}
		return err
	}

	removed, err := s.grants.Remove(ctx, patient, grantee)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove grant")
	}
	if !removed {
		return nil
	}

	s.logAudit(ctx, audit.Event{
		Kind:           audit.KindAccessRevoked,
		Actor:          caller,
		SubjectShortID: patient,
		RelatedShortID: granteeShortID,
		Timestamp:      requestcontext.Now(ctx),
	})
	if s.metrics != nil {
		s.metrics.GrantsRevoked.Inc()
	}
	return nil
}

// EmergencyAdd inserts a grant on behalf of the emergency override path. The
// override service owns the preconditions; this records the distinct audit
// kind with the hospital as initiator.
func (s *Service) EmergencyAdd(ctx context.Context, patient id.ShortID, recipient *models.User, hospital id.Principal) error {
	added, err := s.grants.Add(ctx, patient, recipient.Principal, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add grant")
	}
	if !added {
		return nil
	}

	s.logAudit(ctx, audit.Event{
		Kind:           audit.KindEmergencyAccessGranted,
		Actor:          hospital,
		SubjectShortID: patient,
		RelatedShortID: recipient.ShortID,
		Timestamp:      requestcontext.Now(ctx),
	})
	if s.metrics != nil {
		s.metrics.EmergencyGrants.Inc()
	}
	return nil
}

// ListGrantees returns the patient's current consent set as directory
// entries. Only the patient may list their own table.
func (s *Service) ListGrantees(ctx context.Context, patient id.ShortID) ([]models.PublicUser, error) {
	caller := requestcontext.Principal(ctx)
	if err := s.requireOwner(ctx, patient, caller); err != nil {
		return nil, err
	}

	principals, err := s.grants.ListGrantees(ctx, patient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grantees")
	}

	out := make([]models.PublicUser, 0, len(principals))
	for _, p := range principals {
		user, err := s.identity.Lookup(ctx, p)
		if err != nil {
			// The registry never deletes users, so a dangling grant is an
			// internal inconsistency, not a caller problem.
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "grant references unknown principal")
		}
		out = append(out, user.Public())
	}
	return out, nil
}

// AccessiblePatients returns the short ids of every patient the caller
// currently holds a grant for. Self-access is implicit and not listed.
func (s *Service) AccessiblePatients(ctx context.Context) ([]id.ShortID, error) {
	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	patients, err := s.grants.ListPatients(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list patients")
	}
	return patients, nil
}

// requireOwner enforces that caller is the principal registered for patient.
// An unknown patient short id also fails this check: whoever is calling, it
// is not their resource.
func (s *Service) requireOwner(ctx context.Context, patient id.ShortID, caller id.Principal) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	owner, err := s.identity.Resolve(ctx, patient)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeIdentityNotFound) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return dErrors.New(dErrors.CodeUnauthorized, "caller does not own this record")
		}
		return err
	}
	if owner != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not own this record")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit audit event", "kind", event.Kind, "error", err)
	}
}
