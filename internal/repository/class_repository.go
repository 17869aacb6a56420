package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// ClassRepository reads classes and the subjects taught in them.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class. sql.ErrNoRows is returned as is.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, school_id, name, label, level, COALESCE(education_level, '') AS education_level,
        COALESCE(track, '') AS track, academic_year FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListSubjects returns the subjects of a class ordered by name.
func (r *ClassRepository) ListSubjects(ctx context.Context, classID string) ([]models.ClassSubject, error) {
	const query = `SELECT cs.class_id, cs.subject_id, s.name AS subject_name, s.code AS subject_code, cs.mandatory
        FROM class_subjects cs
        JOIN subjects s ON s.id = cs.subject_id
        WHERE cs.class_id = $1
        ORDER BY s.name`
	var subjects []models.ClassSubject
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}
