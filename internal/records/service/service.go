package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"healthexchange/internal/audit"
	identitymodels "healthexchange/internal/identity/models"
	recordsmetrics "healthexchange/internal/records/metrics"
	"healthexchange/internal/records/models"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/requestcontext"
)

// Store is the per-patient append-only record list.
type Store interface {
	Append(ctx context.Context, patient id.ShortID, report models.Report) error
	ListByPatient(ctx context.Context, patient id.ShortID) ([]models.Report, error)
}

// AccessChecker is the permission engine. Every privileged read and write
// goes through it at call time; results are never kept across operations.
type AccessChecker interface {
	CheckAccess(ctx context.Context, patient id.ShortID, principal id.Principal) (bool, error)
}

// IdentityDirectory resolves the calling principal to its registry record.
type IdentityDirectory interface {
	Lookup(ctx context.Context, principal id.Principal) (*identitymodels.User, error)
}

// AuditPublisher records appended reports.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns report reads and writes. Denied reads are a bare access_denied
// with no existence or length information in any field.
type Service struct {
	reports   Store
	checker   AccessChecker
	identity  IdentityDirectory
	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *recordsmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *recordsmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(reports Store, checker AccessChecker, identity IdentityDirectory, opts ...Option) *Service {
	s := &Service{reports: reports, checker: checker, identity: identity, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload appends a report to the caller's own record list. The caller must
// be a registered patient; uploads into someone else's list go through
// AddToPatient and its permission check instead.
func (s *Service) Upload(ctx context.Context, contentRef, description string) (models.Report, error) {
	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return models.Report{}, dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	user, err := s.identity.Lookup(ctx, caller)
	if err != nil {
		return models.Report{}, err
	}
	if user.Role != id.RolePatient {
		return models.Report{}, dErrors.New(dErrors.CodeRoleMismatch, "only patients hold a record list")
	}

	report, err := models.NewReport(contentRef, description, caller, requestcontext.Now(ctx))
	if err != nil {
		return models.Report{}, err
	}
	return s.append(ctx, user.ShortID, caller, report)
}

// AddToPatient appends a report to another patient's list. The permission
// check covers the patient's existence too: a missing patient and a missing
// grant fail identically.
func (s *Service) AddToPatient(ctx context.Context, patient id.ShortID, contentRef, description string) (models.Report, error) {
	caller := requestcontext.Principal(ctx)

	report, err := models.NewReport(contentRef, description, caller, requestcontext.Now(ctx))
	if err != nil {
		return models.Report{}, err
	}

	allowed, err := s.checker.CheckAccess(ctx, patient, caller)
	if err != nil {
		return models.Report{}, err
	}
	if !allowed {
		return models.Report{}, s.denied()
	}
	return s.append(ctx, patient, caller, report)
}

// ViewMine returns the caller's own record list in upload order. Possession
// of the list is the only requirement; the consent table is not consulted.
func (s *Service) ViewMine(ctx context.Context) ([]models.Report, error) {
	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	user, err := s.identity.Lookup(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, user.ShortID)
}

// Get returns a patient's record list to an authorized caller. The
// permission state is re-read on every call.
func (s *Service) Get(ctx context.Context, patient id.ShortID) ([]models.Report, error) {
	caller := requestcontext.Principal(ctx)
	allowed, err := s.checker.CheckAccess(ctx, patient, caller)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, s.denied()
	}
	return s.list(ctx, patient)
}

func (s *Service) append(ctx context.Context, patient id.ShortID, caller id.Principal, report models.Report) (models.Report, error) {
	if err := s.reports.Append(ctx, patient, report); err != nil {
		return models.Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append report")
	}

	s.logAudit(ctx, audit.Event{
		Kind:           audit.KindReportAdded,
		Actor:          caller,
		SubjectShortID: patient,
		ContentRef:     report.ContentRef,
		Timestamp:      report.UploadedAt,
	})
	if s.metrics != nil {
		s.metrics.ReportsUploaded.Inc()
	}
	return report, nil
}

func (s *Service) list(ctx context.Context, patient id.ShortID) ([]models.Report, error) {
	start := time.Now()
	reports, err := s.reports.ListByPatient(ctx, patient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	if s.metrics != nil {
		s.metrics.ListDuration.Observe(time.Since(start).Seconds())
	}
	return reports, nil
}

// denied is the single access failure value: same code, same message, no
// matter why the check failed.
func (s *Service) denied() error {
	if s.metrics != nil {
		s.metrics.ReadsDenied.Inc()
	}
	return dErrors.New(dErrors.CodeAccessDenied, "no access to reports")
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit audit event", "kind", event.Kind, "error", err)
	}
}
