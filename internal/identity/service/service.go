package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"healthexchange/internal/audit"
	identitymetrics "healthexchange/internal/identity/metrics"
	"healthexchange/internal/identity/models"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/platform/sentinel"
	"healthexchange/pkg/requestcontext"
)

// Store is the persistence surface the registry needs. Create must reject a
// taken principal or short id atomically.
type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByPrincipal(ctx context.Context, principal id.Principal) (*models.User, error)
	FindByShortID(ctx context.Context, shortID id.ShortID) (*models.User, error)
}

// AuditPublisher records registrations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the identity registry. Users are created exactly once and never
// mutated; every operation re-reads the store rather than caching identity.
type Service struct {
	users     Store
	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *identitymetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(users Store, opts ...Option) *Service {
	s := &Service{users: users, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest carries registration input. The short id and role are
// re-validated here no matter what the client already checked.
type RegisterRequest struct {
	Name       string
	Email      string
	Phone      string
	ShortID    id.ShortID
	Location   string
	Credential string
	Role       id.Role
}

// Register creates the immutable identity record for the calling principal.
// All validation happens before the store write; a duplicate principal or
// short id aborts with no partial state.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller principal is required")
	}
	if strings.TrimSpace(req.Credential) == "" {
		s.rejected(dErrors.CodeInvalidInput)
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash credential")
	}

	user, err := models.NewUser(caller, req.ShortID, req.Name, req.Email, req.Phone,
		req.Location, string(hash), req.Role, requestcontext.Now(ctx))
	if err != nil {
		s.rejected(dErrors.CodeOf(err))
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			s.rejected(dErrors.CodeDuplicateIdentity)
			return nil, dErrors.New(dErrors.CodeDuplicateIdentity, "short id or principal already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logAudit(ctx, audit.Event{
		Kind:           audit.KindUserRegistered,
		Actor:          caller,
		SubjectShortID: user.ShortID,
		Timestamp:      requestcontext.Now(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementRegistered(string(user.Role))
	}
	return user, nil
}

// Resolve maps a short id to its principal.
func (s *Service) Resolve(ctx context.Context, shortID id.ShortID) (id.Principal, error) {
	user, err := s.lookupByShortID(ctx, shortID)
	if err != nil {
		return id.Principal{}, err
	}
	return user.Principal, nil
}

// Lookup returns the full identity record for a principal.
func (s *Service) Lookup(ctx context.Context, principal id.Principal) (*models.User, error) {
	user, err := s.users.FindByPrincipal(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeIdentityNotFound, "principal is not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// LookupByShortID returns the identity record behind a short id.
func (s *Service) LookupByShortID(ctx context.Context, shortID id.ShortID) (*models.User, error) {
	return s.lookupByShortID(ctx, shortID)
}

// VerifyCredential compares a credential against the stored hash. Token
// issuance on success belongs to the transport layer, not here.
func (s *Service) VerifyCredential(ctx context.Context, shortID id.ShortID, credential string) (*models.User, error) {
	if s.metrics != nil {
		s.metrics.CredentialChecks.Inc()
	}
	user, err := s.lookupByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.CredentialHash), []byte(credential)); err != nil {
		if s.metrics != nil {
			s.metrics.CredentialFailed.Inc()
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "credential does not match")
	}
	return user, nil
}

func (s *Service) lookupByShortID(ctx context.Context, shortID id.ShortID) (*models.User, error) {
	if err := shortID.Validate(); err != nil {
		return nil, err
	}
	user, err := s.users.FindByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeIdentityNotFound, "short id is not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// logAudit emits best-effort: the registry mutation has already committed, so
// a failing audit sink is logged rather than turned into a partial rollback.
func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit audit event", "kind", event.Kind, "error", err)
	}
}

func (s *Service) rejected(code dErrors.Code) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(string(code))
	}
}
