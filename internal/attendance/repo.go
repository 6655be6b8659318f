package attendance

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusattend/internal/store"
)

const recordColumns = `id, student_id, class_date, period_number, marked_at, status, subject`

// Repository persists attendance records in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes a record unless the (student, date, period) key is taken.
// The unique constraint makes check and insert one statement.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT attendance_one_per_period DO NOTHING
		RETURNING id
	`, rec.ID, rec.StudentID, rec.Date, rec.PeriodNumber, rec.MarkedAt, string(rec.Status), rec.Subject).Scan(&rec.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrDuplicateForPeriod
		}
		return Record{}, store.Wrap("insert attendance", err)
	}
	return rec, nil
}

// Counts returns present and total record counts for a student.
func (r *Repository) Counts(ctx context.Context, studentID string) (int, int, error) {
	var present, total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'present'), COUNT(*)
		FROM attendance_records
		WHERE student_id = $1
	`, studentID).Scan(&present, &total)
	if err != nil {
		return 0, 0, store.Wrap("count attendance", err)
	}
	return present, total, nil
}

// Recent returns a student's newest records.
func (r *Repository) Recent(ctx context.Context, studentID string, limit int) ([]Record, error) {
	return r.List(ctx, Filter{StudentID: studentID, Limit: limit})
}

// List returns records with basic filters.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, "student_id = $"+strconv.Itoa(len(args)))
	}
	if !f.Date.IsZero() {
		args = append(args, f.Date)
		clauses = append(clauses, "class_date = $"+strconv.Itoa(len(args)))
	}
	if f.Period > 0 {
		args = append(args, f.Period)
		clauses = append(clauses, "period_number = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY marked_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, normalizeLimit(f.Limit, 50), f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("list attendance", err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.PeriodNumber, &rec.MarkedAt, &status, &rec.Subject); err != nil {
			return nil, store.Wrap("scan attendance", err)
		}
		rec.Status = Status(status)
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list attendance", err)
	}
	return res, nil
}
