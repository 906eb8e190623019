package audit

import (
	"time"

	"github.com/google/uuid"

	id "healthexchange/pkg/domain"
)

// Kind tags every state-changing event in the system. The emergency grant has
// its own kind so the consent bypass is always distinguishable in the trail,
// even though the resulting grant is indistinguishable in the access table.
type Kind string

const (
	KindUserRegistered         Kind = "user_registered"
	KindReportAdded            Kind = "report_added"
	KindAccessGranted          Kind = "access_granted"
	KindAccessRevoked          Kind = "access_revoked"
	KindEmergencyAccessGranted Kind = "emergency_access_granted"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. The trail is
// append-only and exists purely for observability: the permission engine
// never reads it.
type Event struct {
	ID             uuid.UUID
	Kind           Kind
	Actor          id.Principal
	SubjectShortID id.ShortID
	// RelatedShortID carries the second party where one exists: the grantee
	// on consent events, the recipient on emergency shares.
	RelatedShortID id.ShortID
	// ContentRef is set on report events only.
	ContentRef string
	Timestamp  time.Time
}
