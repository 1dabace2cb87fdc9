package patient

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/diabcrf/crf/internal/platform/auth"
	"github.com/diabcrf/crf/internal/platform/session"
)

var (
	ErrNotFound = errors.New("patient not found")
	ErrInvalid  = errors.New("invalid patient record")
)

// Patient is one submitted case report. CenterID never changes after
// creation. FormData holds the complete answers as submitted.
type Patient struct {
	ID                uuid.UUID       `json:"id"`
	PatientIdentifier string          `json:"patient_identifier"`
	Age               *float64        `json:"age"`
	Sex               string          `json:"sex"`
	CenterID          int             `json:"center_id"`
	CenterName        *string         `json:"center_name,omitempty"`
	FormData          json.RawMessage `json:"form_data,omitempty"`
	CreatedBy         uuid.UUID       `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Scope restricts which records a caller may read.
type Scope struct {
	All      bool
	CenterID *int
}

// None reports whether the scope matches no record at all.
func (s Scope) None() bool {
	return !s.All && s.CenterID == nil
}

// ScopeFor returns the row visibility of a session. Administrators and
// researchers see every record, investigators only their own center.
func ScopeFor(s *session.Session) Scope {
	switch s.Role() {
	case auth.RoleAdmin, auth.RoleResearcher:
		return Scope{All: true}
	case auth.RoleInvestigator:
		if center, ok := s.CenterID(); ok {
			return Scope{CenterID: &center}
		}
	}
	return Scope{}
}

// CenterCount is the number of visible records owned by one center.
type CenterCount struct {
	CenterID   int     `json:"center_id"`
	CenterName *string `json:"center_name"`
	Count      int     `json:"count"`
}

// Dashboard summarizes the visible records.
type Dashboard struct {
	Total       int           `json:"total"`
	LastWeek    int           `json:"last_week"`
	ByCenter    []CenterCount `json:"by_center"`
	GeneratedAt time.Time     `json:"generated_at"`
}
