package patient

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExportHeader is the fixed column order of the CSV export.
var ExportHeader = []string{"identifier", "age", "sex", "center", "created_at"}

// MissingCenter is written when a record's center has no name.
const MissingCenter = "N/A"

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new record. The caller has already resolved the center.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.PatientIdentifier = strings.TrimSpace(p.PatientIdentifier)
	if p.PatientIdentifier == "" {
		return fmt.Errorf("%w: patient identifier is required", ErrInvalid)
	}
	if p.CenterID <= 0 {
		return fmt.Errorf("%w: center is required", ErrInvalid)
	}
	if p.CreatedBy == uuid.Nil {
		return fmt.Errorf("%w: creator is required", ErrInvalid)
	}
	if len(p.FormData) == 0 {
		p.FormData = []byte("{}")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, scope Scope) (*Patient, error) {
	if scope.None() {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, id, scope)
}

func (s *Service) List(ctx context.Context, scope Scope, limit, offset int) ([]*Patient, int, error) {
	if scope.None() {
		return []*Patient{}, 0, nil
	}
	return s.repo.List(ctx, scope, limit, offset)
}

// Dashboard counts the visible records, overall, for the last seven days
// and per center.
func (s *Service) Dashboard(ctx context.Context, scope Scope) (*Dashboard, error) {
	now := s.now()
	if scope.None() {
		return &Dashboard{ByCenter: []CenterCount{}, GeneratedAt: now}, nil
	}
	d, err := s.repo.Counts(ctx, scope, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	if d.ByCenter == nil {
		d.ByCenter = []CenterCount{}
	}
	d.GeneratedAt = now
	return d, nil
}

// ExportCSV writes one row per visible record and returns the row count.
func (s *Service) ExportCSV(ctx context.Context, scope Scope, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, err
	}

	n := 0
	if !scope.None() {
		err := s.repo.Each(ctx, scope, func(p *Patient) error {
			n++
			return cw.Write(exportRow(p))
		})
		if err != nil {
			return n, fmt.Errorf("export patients: %w", err)
		}
	}
	cw.Flush()
	return n, cw.Error()
}

func exportRow(p *Patient) []string {
	age := ""
	if p.Age != nil {
		age = strconv.FormatFloat(*p.Age, 'f', -1, 64)
	}
	center := MissingCenter
	if p.CenterName != nil && *p.CenterName != "" {
		center = *p.CenterName
	}
	return []string{p.PatientIdentifier, age, p.Sex, center, p.CreatedAt.UTC().Format("2006-01-02")}
}
