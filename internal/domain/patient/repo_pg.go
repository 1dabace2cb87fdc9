package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/diabcrf/crf/internal/platform/db"
)

type repoPG struct {
	pool db.Querier
}

func NewRepo(pool db.Querier) Repository {
	return &repoPG{pool: pool}
}

const patientColumns = `p.id, p.patient_identifier, p.age, p.sex, p.center_id, c.name, p.created_by, p.created_at`

// scopeClause returns the WHERE fragment for scope, with its first
// placeholder numbered from n.
func scopeClause(scope Scope, n int) (string, []interface{}) {
	switch {
	case scope.All:
		return "TRUE", nil
	case scope.CenterID != nil:
		return fmt.Sprintf("p.center_id = $%d", n), []interface{}{*scope.CenterID}
	default:
		return "FALSE", nil
	}
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (id, patient_identifier, age, sex, center_id, form_data, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		p.ID, p.PatientIdentifier, p.Age, p.Sex, p.CenterID, []byte(p.FormData), p.CreatedBy,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, scope Scope) (*Patient, error) {
	where, args := scopeClause(scope, 2)
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+patientColumns+`, p.form_data
		FROM patient p LEFT JOIN center c ON c.id = p.center_id
		WHERE p.id = $1 AND `+where,
		append([]interface{}{id}, args...)...)

	var p Patient
	var formData []byte
	err := row.Scan(&p.ID, &p.PatientIdentifier, &p.Age, &p.Sex, &p.CenterID, &p.CenterName, &p.CreatedBy, &p.CreatedAt, &formData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	p.FormData = formData
	return &p, nil
}

func (r *repoPG) List(ctx context.Context, scope Scope, limit, offset int) ([]*Patient, int, error) {
	where, args := scopeClause(scope, 1)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patient p WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	n := len(args)
	rows, err := conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM patient p LEFT JOIN center c ON c.id = p.center_id
		WHERE %s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`, patientColumns, where, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Each(ctx context.Context, scope Scope, fn func(*Patient) error) error {
	where, args := scopeClause(scope, 1)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+patientColumns+`
		FROM patient p LEFT JOIN center c ON c.id = p.center_id
		WHERE `+where+`
		ORDER BY p.created_at`, args...)
	if err != nil {
		return fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanRow(rows)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *repoPG) Counts(ctx context.Context, scope Scope, since time.Time) (*Dashboard, error) {
	where, args := scopeClause(scope, 2)
	conn := db.Conn(ctx, r.pool)

	d := &Dashboard{}
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE p.created_at >= $1)
		FROM patient p WHERE `+where,
		append([]interface{}{since}, args...)...).Scan(&d.Total, &d.LastWeek)
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}

	where, args = scopeClause(scope, 1)
	rows, err := conn.Query(ctx, `
		SELECT p.center_id, c.name, COUNT(*)
		FROM patient p LEFT JOIN center c ON c.id = p.center_id
		WHERE `+where+`
		GROUP BY p.center_id, c.name
		ORDER BY COUNT(*) DESC, p.center_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("count by center: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc CenterCount
		if err := rows.Scan(&cc.CenterID, &cc.CenterName, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan center count: %w", err)
		}
		d.ByCenter = append(d.ByCenter, cc)
	}
	return d, rows.Err()
}

func scanRow(rows pgx.Rows) (*Patient, error) {
	var p Patient
	if err := rows.Scan(&p.ID, &p.PatientIdentifier, &p.Age, &p.Sex, &p.CenterID, &p.CenterName, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
