package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// StudentRepository reads student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student. sql.ErrNoRows is returned as is.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, school_id, full_name, active FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListActiveByClass returns the active students of a class in an academic
// year, ordered by name.
func (r *StudentRepository) ListActiveByClass(ctx context.Context, classID string, academicYear int) ([]models.Student, error) {
	const query = `SELECT s.id, s.school_id, s.full_name, s.active
        FROM class_students cs
        JOIN students s ON s.id = cs.student_id
        WHERE cs.class_id = $1 AND cs.academic_year = $2 AND s.active = TRUE
        ORDER BY s.full_name, s.id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID, academicYear); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}
