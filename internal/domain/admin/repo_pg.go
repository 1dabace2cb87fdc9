package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/diabcrf/crf/internal/platform/db"
)

// mapPgError translates constraint and procedure errors into package errors.
func mapPgError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case "23503", "23514":
			return fmt.Errorf("%s: %w: %s", op, ErrInvalid, pgErr.ConstraintName)
		case "P0002":
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// -- Profiles --

type profileRepoPG struct {
	pool db.Querier
}

func NewProfileRepo(pool db.Querier) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

const profileColumns = `id, email, full_name, role, center_id, created_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.CenterID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO profile (id, email, full_name, role, center_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		p.ID, p.Email, p.FullName, p.Role, p.CenterID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return mapPgError(err, "insert profile")
	}
	return nil
}

func (r *profileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profile WHERE id = $1`, id))
	if err != nil {
		return nil, mapPgError(err, "get profile")
	}
	return p, nil
}

func (r *profileRepoPG) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM profile`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	rows, err := conn.Query(ctx,
		`SELECT `+profileColumns+` FROM profile ORDER BY email LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []*Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *profileRepoPG) PromoteToAdmin(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `SELECT promote_to_admin($1)`, id); err != nil {
		return mapPgError(err, "promote_to_admin")
	}
	return nil
}

// -- Centers --

type centerRepoPG struct {
	pool db.Querier
}

func NewCenterRepo(pool db.Querier) CenterRepository {
	return &centerRepoPG{pool: pool}
}

func (r *centerRepoPG) Create(ctx context.Context, c *Center) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO center (name, city) VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at`,
		c.Name, c.City,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return mapPgError(err, "insert center")
	}
	return nil
}

func (r *centerRepoPG) List(ctx context.Context) ([]*Center, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, COALESCE(city, ''), created_at FROM center ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	defer rows.Close()

	out := []*Center{}
	for rows.Next() {
		var c Center
		if err := rows.Scan(&c.ID, &c.Name, &c.City, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan center: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// -- Invitations --

type invitationRepoPG struct {
	pool db.Querier
}

func NewInvitationRepo(pool db.Querier) InvitationRepository {
	return &invitationRepoPG{pool: pool}
}

const invitationColumns = `id, email, role, center_id, token, invited_by, created_at, expires_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var i Invitation
	err := row.Scan(&i.ID, &i.Email, &i.Role, &i.CenterID, &i.Token, &i.InvitedBy, &i.CreatedAt, &i.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *invitationRepoPG) Create(ctx context.Context, inv *Invitation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO invitation (id, email, role, center_id, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		inv.ID, inv.Email, inv.Role, inv.CenterID, inv.Token, inv.InvitedBy, inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return mapPgError(err, "insert invitation")
	}
	return nil
}

func (r *invitationRepoPG) GetByToken(ctx context.Context, token string) (*Invitation, error) {
	inv, err := scanInvitation(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitation WHERE token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, mapPgError(err, "get invitation")
	}
	return inv, nil
}

func (r *invitationRepoPG) ListPending(ctx context.Context, now time.Time, limit, offset int) ([]*Invitation, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM invitation WHERE expires_at > $1`, now).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invitations: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT `+invitationColumns+` FROM invitation
		WHERE expires_at > $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, now, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	out := []*Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *invitationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `SELECT delete_invitation($1)`, id); err != nil {
		return mapPgError(err, "delete_invitation")
	}
	return nil
}

func (r *invitationRepoPG) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM invitation WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}
