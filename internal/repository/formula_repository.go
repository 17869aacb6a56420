package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// FormulaRepository reads the NF/MT formulas of a class subject.
type FormulaRepository struct {
	db *sqlx.DB
}

// NewFormulaRepository constructs the repository.
func NewFormulaRepository(db *sqlx.DB) *FormulaRepository {
	return &FormulaRepository{db: db}
}

// ListBySubject returns MT formulas ordered by trimester followed by NF.
func (r *FormulaRepository) ListBySubject(ctx context.Context, classID, subjectID string) ([]models.GradeFormula, error) {
	const query = `SELECT id, class_id, subject_id, kind, trimester, target_code, expression, extended
        FROM grade_formulas
        WHERE class_id = $1 AND subject_id = $2
        ORDER BY CASE kind WHEN 'MT' THEN 0 ELSE 1 END, trimester NULLS LAST, target_code`
	var formulas []models.GradeFormula
	if err := r.db.SelectContext(ctx, &formulas, query, classID, subjectID); err != nil {
		return nil, fmt.Errorf("list grade formulas: %w", err)
	}
	return formulas, nil
}
