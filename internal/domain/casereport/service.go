package casereport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/diabcrf/crf/internal/domain/patient"
	"github.com/diabcrf/crf/internal/platform/form"
	"github.com/diabcrf/crf/internal/platform/session"
)

// ErrBackend marks a failed write of a valid submission.
var ErrBackend = errors.New("backend rejected the submission")

// PatientStore persists submitted records.
type PatientStore interface {
	Create(ctx context.Context, p *patient.Patient) error
}

// DraftView is the client-facing state of a draft: the current section with
// its visible fields, and every answer entered so far.
type DraftView struct {
	ID           uuid.UUID    `json:"id"`
	Section      int          `json:"section"`
	SectionCount int          `json:"section_count"`
	SectionID    string       `json:"section_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	AtLast       bool         `json:"at_last"`
	Fields       []form.Field `json:"fields"`
	Answers      form.Answers `json:"answers"`
	// Grid is set when the current section shows the monitoring grid.
	Grid      []form.GridRow `json:"grid,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SubmitResult reports a stored submission.
type SubmitResult struct {
	PatientID  uuid.UUID   `json:"patient_id"`
	Submission *Submission `json:"submission"`
}

type Service struct {
	schema      *form.Schema
	drafts      *DraftStore
	patients    PatientStore
	logger      zerolog.Logger
	submissions *prometheus.CounterVec
	now         func() time.Time
}

// NewService wires the wizard service and registers its metrics on reg.
func NewService(schema *form.Schema, drafts *DraftStore, patients PatientStore, logger zerolog.Logger, reg prometheus.Registerer) (*Service, error) {
	s := &Service{
		schema:   schema,
		drafts:   drafts,
		patients: patients,
		logger:   logger.With().Str("component", "casereport").Logger(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crf",
			Name:      "submissions_total",
			Help:      "Case report submissions by outcome.",
		}, []string{"outcome"}),
		now: time.Now,
	}
	open := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "crf",
		Name:      "drafts_open",
		Help:      "Drafts currently held in memory.",
	}, func() float64 { return float64(drafts.Len()) })

	for _, c := range []prometheus.Collector{s.submissions, open} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register casereport metrics: %w", err)
		}
	}
	return s, nil
}

func (s *Service) Schema() *form.Schema { return s.schema }

// Open starts an empty draft at the first section for the session's user.
func (s *Service) Open(_ context.Context, sess *session.Session) *DraftView {
	now := s.now()
	d := &Draft{
		ID:        uuid.New(),
		Owner:     sess.UserID,
		CreatedAt: now,
		wizard:    form.NewWizard(s.schema, sess.Role(), form.WithSanitizer(sanitizeText)),
		updatedAt: now,
	}
	s.drafts.Add(d)
	s.logger.Debug().Str("draft_id", d.ID.String()).Str("user_id", sess.UserID.String()).Msg("draft opened")

	d.mu.Lock()
	defer d.mu.Unlock()
	return view(d)
}

func (s *Service) Get(_ context.Context, sess *session.Session, id uuid.UUID) (*DraftView, error) {
	d, err := s.drafts.Get(sess.UserID, id)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return view(d), nil
}

func (s *Service) SetAnswer(_ context.Context, sess *session.Session, id uuid.UUID, field string, raw any) (*DraftView, error) {
	return s.edit(sess, id, func(w *form.Wizard) error {
		return w.SetAnswer(field, raw)
	})
}

func (s *Service) ToggleMultiChoice(_ context.Context, sess *session.Session, id uuid.UUID, field, option string, included bool) (*DraftView, error) {
	return s.edit(sess, id, func(w *form.Wizard) error {
		return w.ToggleMultiChoice(field, option, included)
	})
}

func (s *Service) SetCell(_ context.Context, sess *session.Session, id uuid.UUID, day int, timeOfDay, text string) (*DraftView, error) {
	return s.edit(sess, id, func(w *form.Wizard) error {
		return w.SetCell(day, timeOfDay, text)
	})
}

// Advance moves to the next section once the current one has no missing
// required field. On the last section it changes nothing.
func (s *Service) Advance(_ context.Context, sess *session.Session, id uuid.UUID) (*DraftView, error) {
	return s.edit(sess, id, func(w *form.Wizard) error {
		if w.AtLast() {
			return nil
		}
		if missing := w.MissingRequired(); len(missing) > 0 {
			return &form.ValidationError{Fields: missing}
		}
		w.Advance()
		return nil
	})
}

func (s *Service) Retreat(_ context.Context, sess *session.Session, id uuid.UUID) (*DraftView, error) {
	return s.edit(sess, id, func(w *form.Wizard) error {
		w.Retreat()
		return nil
	})
}

// Discard drops the draft and its answers.
func (s *Service) Discard(_ context.Context, sess *session.Session, id uuid.UUID) error {
	d, err := s.drafts.Get(sess.UserID, id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitting {
		return ErrSubmitInProgress
	}
	s.drafts.Remove(id)
	return nil
}

// Submit validates every section, builds the record and writes it. The
// draft is locked against edits and further submits while the write is in
// flight. It is removed on success and kept unchanged on failure, so the
// user can retry.
func (s *Service) Submit(ctx context.Context, sess *session.Session, id uuid.UUID) (*SubmitResult, error) {
	d, err := s.drafts.Get(sess.UserID, id)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	switch {
	case d.submitting:
		d.mu.Unlock()
		s.submissions.WithLabelValues("conflict").Inc()
		return nil, ErrSubmitInProgress
	case !d.wizard.AtLast():
		d.mu.Unlock()
		s.submissions.WithLabelValues("conflict").Inc()
		return nil, ErrNotAtLastSection
	}
	if missing := d.wizard.MissingRequiredAll(); len(missing) > 0 {
		d.mu.Unlock()
		s.submissions.WithLabelValues("invalid").Inc()
		return nil, &form.ValidationError{Fields: missing}
	}
	sub, err := BuildSubmission(s.schema, d.wizard.Answers(), sess.Profile)
	if err != nil {
		d.mu.Unlock()
		s.submissions.WithLabelValues("invalid").Inc()
		return nil, err
	}
	d.submitting = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.submitting = false
		d.mu.Unlock()
	}()

	log := s.logger.With().Str("draft_id", id.String()).Str("user_id", sess.UserID.String()).Logger()
	p, err := sub.Patient(sess.UserID)
	if err == nil {
		err = s.patients.Create(ctx, p)
	}
	if err != nil {
		s.submissions.WithLabelValues("backend_error").Inc()
		log.Error().Err(err).Msg("submission failed, draft kept")
		return nil, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	s.drafts.Remove(id)
	s.submissions.WithLabelValues("created").Inc()
	log.Info().Str("patient_id", p.ID.String()).Int("center_id", sub.CenterID).Msg("case report submitted")
	return &SubmitResult{PatientID: p.ID, Submission: sub}, nil
}

// edit runs fn on the draft's wizard under the draft lock.
func (s *Service) edit(sess *session.Session, id uuid.UUID, fn func(w *form.Wizard) error) (*DraftView, error) {
	d, err := s.drafts.Get(sess.UserID, id)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitting {
		return nil, ErrSubmitInProgress
	}
	if err := fn(d.wizard); err != nil {
		return nil, err
	}
	d.updatedAt = s.now()
	s.drafts.Touch(d)
	return view(d), nil
}

// view snapshots d. The caller holds d.mu.
func view(d *Draft) *DraftView {
	w := d.wizard
	sec := w.Schema().Sections[w.Section()]
	fields := w.VisibleFields()
	if fields == nil {
		fields = []form.Field{}
	}
	answers := w.Answers()
	var grid []form.GridRow
	for _, f := range fields {
		if f.Kind == form.KindGrid {
			grid = answers.Grid()
		}
	}
	return &DraftView{
		ID:           d.ID,
		Section:      w.Section(),
		SectionCount: w.SectionCount(),
		SectionID:    sec.ID,
		Title:        sec.Title,
		Description:  sec.Description,
		AtLast:       w.AtLast(),
		Fields:       fields,
		Answers:      answers,
		Grid:         grid,
		UpdatedAt:    d.updatedAt,
	}
}
