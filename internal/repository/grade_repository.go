package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// GradeRepository reads recorded grade values.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListValues returns the values recorded for a class subject in an academic
// year. A non-empty studentID narrows the result to one student. Missing rows
// mean "not yet graded"; NULL values are skipped for the same reason.
func (r *GradeRepository) ListValues(ctx context.Context, classID, subjectID, studentID string, academicYear int) ([]models.GradeValue, error) {
	query := `SELECT gv.student_id, gv.component_id, gv.value
        FROM grade_values gv
        JOIN grade_components gc ON gc.id = gv.component_id
        WHERE gc.class_id = $1 AND gc.subject_id = $2 AND gv.academic_year = $3 AND gv.value IS NOT NULL`
	args := []interface{}{classID, subjectID, academicYear}
	if studentID != "" {
		query += " AND gv.student_id = $4"
		args = append(args, studentID)
	}
	var values []models.GradeValue
	if err := r.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("list grade values: %w", err)
	}
	return values, nil
}
