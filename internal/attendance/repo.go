package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"totpattend/internal/roster"
	"totpattend/internal/store"
)

// Repository persists the roster and attendance rows in Postgres, MySQL or SQLite.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// ListRoster returns all users ordered by enrolment, which fixes the match scan order.
func (r *Repository) ListRoster(ctx context.Context) ([]roster.Entry, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT id, name, nrp, COALESCE(totp_secret, '')
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []roster.Entry
	for rows.Next() {
		var e roster.Entry
		var nrp sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &nrp, &e.Secret); err != nil {
			return nil, err
		}
		if nrp.Valid && nrp.String != "" {
			e.NRP = &nrp.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// GetAttendance returns the row for (userID, meetingID), or nil when absent.
func (r *Repository) GetAttendance(ctx context.Context, userID, meetingID string) (*Record, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, user_id, meeting_id, is_attending, attended_at
		FROM attendance
		WHERE user_id = $1 AND meeting_id = $2
	`), userID, meetingID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.MeetingID, &rec.IsAttending, &rec.AttendedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertAttendance writes rec unless the (user_id, meeting_id) pair already exists.
func (r *Repository) InsertAttendance(ctx context.Context, rec Record) (bool, error) {
	if rec.AttendedAt.IsZero() {
		rec.AttendedAt = time.Now().UTC()
	}
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(insertAttendanceQuery(r.db.Dialect)),
		rec.ID, rec.UserID, rec.MeetingID, true, rec.AttendedAt)
	if err != nil {
		return false, err
	}
	if r.db.Dialect == store.MySQL {
		// clientFoundRows makes a no-op duplicate report one row as well.
		return r.ownsPair(ctx, rec)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// insertAttendanceQuery is insert-if-absent per dialect. MySQL avoids IGNORE so
// truncation and foreign key errors still fail the statement.
func insertAttendanceQuery(d store.Dialect) string {
	if d == store.MySQL {
		return `
		INSERT INTO attendance (id, user_id, meeting_id, is_attending, attended_at)
		VALUES ($1, $2, $3, $4, $5)
		ON DUPLICATE KEY UPDATE id = id
	`
	}
	return `
		INSERT INTO attendance (id, user_id, meeting_id, is_attending, attended_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, meeting_id) DO NOTHING
	`
}

// ownsPair reports whether rec's id is the row stored for its (user_id, meeting_id).
func (r *Repository) ownsPair(ctx context.Context, rec Record) (bool, error) {
	var owner string
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id FROM attendance WHERE user_id = $1 AND meeting_id = $2
	`), rec.UserID, rec.MeetingID).Scan(&owner)
	if err != nil {
		return false, fmt.Errorf("read back attendance %s/%s: %w", rec.UserID, rec.MeetingID, err)
	}
	return owner == rec.ID, nil
}

// UpdateAttendance marks the row attending at the given time.
func (r *Repository) UpdateAttendance(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE attendance
		SET is_attending = $1, attended_at = $2
		WHERE id = $3
	`), true, at, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("attendance %s not found", id)
	}
	return nil
}

// ListAttendance returns the rows of one meeting ordered by attendance time.
func (r *Repository) ListAttendance(ctx context.Context, meetingID string) ([]Record, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT id, user_id, meeting_id, is_attending, attended_at
		FROM attendance
		WHERE meeting_id = $1
		ORDER BY attended_at, user_id
	`), meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.MeetingID, &rec.IsAttending, &rec.AttendedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UpsertUser creates or replaces a roster entry. Used for seeding.
func (r *Repository) UpsertUser(ctx context.Context, e roster.Entry) error {
	query := `
		INSERT INTO users (id, name, nrp, totp_secret)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			nrp = excluded.nrp,
			totp_secret = excluded.totp_secret
	`
	if r.db.Dialect == store.MySQL {
		query = `
		INSERT INTO users (id, name, nrp, totp_secret)
		VALUES ($1, $2, $3, $4)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			nrp = VALUES(nrp),
			totp_secret = VALUES(totp_secret)
	`
	}
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(query), e.ID, e.Name, e.NRP, e.Secret)
	return err
}

// Ping checks store connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
