package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// GradeComponentRepository reads the grade components configured for a
// class subject.
type GradeComponentRepository struct {
	db *sqlx.DB
}

// NewGradeComponentRepository constructs the repository.
func NewGradeComponentRepository(db *sqlx.DB) *GradeComponentRepository {
	return &GradeComponentRepository{db: db}
}

// ListBySubject returns the components of a class subject, whole-year
// components first and then by trimester and code.
func (r *GradeComponentRepository) ListBySubject(ctx context.Context, classID, subjectID string) ([]models.GradeComponent, error) {
	const query = `SELECT id, class_id, subject_id, code, name, weight, is_calculated, trimester
        FROM grade_components
        WHERE class_id = $1 AND subject_id = $2
        ORDER BY trimester NULLS FIRST, code`
	var components []models.GradeComponent
	if err := r.db.SelectContext(ctx, &components, query, classID, subjectID); err != nil {
		return nil, fmt.Errorf("list grade components: %w", err)
	}
	return components, nil
}
