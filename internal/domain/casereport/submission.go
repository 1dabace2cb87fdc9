package casereport

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/diabcrf/crf/internal/domain/patient"
	"github.com/diabcrf/crf/internal/platform/form"
	"github.com/diabcrf/crf/internal/platform/session"
)

var (
	ErrNoCenter      = errors.New("no center to record the patient under")
	ErrInvalidCenter = errors.New("center override is not a valid center number")
)

// Submission is the normalized record written to the backend. FormData is
// the complete answer set, hidden fields included.
type Submission struct {
	PatientIdentifier string       `json:"patientIdentifier"`
	Age               *float64     `json:"age"`
	Sex               string       `json:"sex"`
	CenterID          int          `json:"centerId"`
	FormData          form.Answers `json:"formData"`
}

// BuildSubmission derives the core record from answers. The center is the
// override answer when that field is visible to the profile's role and
// filled in, and the profile's own center otherwise; an override the role
// cannot see is kept in FormData but ignored here.
func BuildSubmission(schema *form.Schema, answers form.Answers, profile *session.Profile) (*Submission, error) {
	if profile == nil {
		return nil, ErrNoCenter
	}
	sub := &Submission{
		PatientIdentifier: strings.TrimSpace(answers.Text(FieldSerialNumber)),
		Sex:               answers.Text(FieldSex),
		FormData:          answers.Clone(),
	}
	if age, ok := answers.Number(FieldAge); ok {
		sub.Age = &age
	}

	override, hasOverride := answers[FieldCenterOverride]
	if hasOverride && !override.IsEmpty() && schema.Visible(FieldCenterOverride, answers, profile.Role) {
		center, err := parseCenter(override)
		if err != nil {
			return nil, err
		}
		sub.CenterID = center
		return sub, nil
	}
	if profile.CenterID == nil {
		return nil, ErrNoCenter
	}
	sub.CenterID = *profile.CenterID
	return sub, nil
}

// parseCenter reads the integer part of an override, the way a typed
// "7" or 7.0 is meant.
func parseCenter(v form.Value) (int, error) {
	var n float64
	switch v.Kind {
	case form.KindNumber:
		n = *v.Number
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCenter, v.Text)
		}
		n = f
	}
	n = math.Trunc(n)
	if n < 1 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCenter, n)
	}
	return int(n), nil
}

// Patient converts the submission into a record created by createdBy.
func (s *Submission) Patient(createdBy uuid.UUID) (*patient.Patient, error) {
	data, err := json.Marshal(s.FormData)
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}
	return &patient.Patient{
		PatientIdentifier: s.PatientIdentifier,
		Age:               s.Age,
		Sex:               s.Sex,
		CenterID:          s.CenterID,
		FormData:          data,
		CreatedBy:         createdBy,
	}, nil
}
