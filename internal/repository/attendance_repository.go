package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AttendanceRepository reads yearly attendance summaries.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindPercent returns the student's attendance percentage for the year, or
// nil when no summary has been recorded.
func (r *AttendanceRepository) FindPercent(ctx context.Context, studentID string, academicYear int) (*float64, error) {
	const query = `SELECT percent FROM attendance_summaries WHERE student_id = $1 AND academic_year = $2`
	var percent sql.NullFloat64
	if err := r.db.GetContext(ctx, &percent, query, studentID, academicYear); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	if !percent.Valid {
		return nil, nil
	}
	value := percent.Float64
	return &value, nil
}
