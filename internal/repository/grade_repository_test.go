package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

func TestGradeComponentRepositoryListBySubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeComponentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "subject_id", "code", "name", "weight", "is_calculated", "trimester"}).
		AddRow("c-1", "class-8a", "sub-mat", "MAC", "Avaliação contínua", 40.0, false, 1).
		AddRow("c-2", "class-8a", "sub-mat", "MT1", "Média T1", 0.0, true, nil)
	mock.ExpectQuery(`FROM grade_components\s+WHERE class_id = \$1 AND subject_id = \$2`).
		WithArgs("class-8a", "sub-mat").WillReturnRows(rows)

	components, err := repo.ListBySubject(context.Background(), "class-8a", "sub-mat")
	require.NoError(t, err)
	require.Len(t, components, 2)
	require.NotNil(t, components[0].Trimester)
	assert.Equal(t, 1, *components[0].Trimester)
	assert.Nil(t, components[1].Trimester)
	assert.True(t, components[1].IsCalculated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListValues(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(`FROM grade_values gv\s+JOIN grade_components gc ON gc.id = gv.component_id\s+WHERE gc.class_id = \$1 AND gc.subject_id = \$2 AND gv.academic_year = \$3 AND gv.value IS NOT NULL$`).
		WithArgs("class-8a", "sub-mat", 2024).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "component_id", "value"}).AddRow("stu-1", "c-1", 0.0))
	mock.ExpectQuery(`AND gv.student_id = \$4`).
		WithArgs("class-8a", "sub-mat", 2024, "stu-2").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "component_id", "value"}))

	values, err := repo.ListValues(context.Background(), "class-8a", "sub-mat", "", 2024)
	require.NoError(t, err)
	assert.Equal(t, []models.GradeValue{{StudentID: "stu-1", ComponentID: "c-1", Value: 0}}, values)

	values, err = repo.ListValues(context.Background(), "class-8a", "sub-mat", "stu-2", 2024)
	require.NoError(t, err)
	assert.Empty(t, values)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormulaRepositoryListBySubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFormulaRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "subject_id", "kind", "trimester", "target_code", "expression", "extended"}).
		AddRow("f-1", "class-8a", "sub-mat", "MT", 1, "MT1", "(MAC + NPP) / 2", false).
		AddRow("f-2", "class-8a", "sub-mat", "NF", nil, "NF", "MT1", false)
	mock.ExpectQuery(`FROM grade_formulas`).WithArgs("class-8a", "sub-mat").WillReturnRows(rows)

	formulas, err := repo.ListBySubject(context.Background(), "class-8a", "sub-mat")
	require.NoError(t, err)
	require.Len(t, formulas, 2)
	assert.Equal(t, models.FormulaKindTrimester, formulas[0].Kind)
	assert.Equal(t, models.FormulaKindFinal, formulas[1].Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindPercent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	query := `SELECT percent FROM attendance_summaries WHERE student_id = \$1 AND academic_year = \$2`
	mock.ExpectQuery(query).WithArgs("stu-1", 2024).WillReturnRows(sqlmock.NewRows([]string{"percent"}).AddRow(72.5))
	mock.ExpectQuery(query).WithArgs("stu-2", 2024).WillReturnRows(sqlmock.NewRows([]string{"percent"}))

	percent, err := repo.FindPercent(context.Background(), "stu-1", 2024)
	require.NoError(t, err)
	require.NotNil(t, percent)
	assert.Equal(t, 72.5, *percent)

	percent, err = repo.FindPercent(context.Background(), "stu-2", 2024)
	require.NoError(t, err)
	assert.Nil(t, percent)
	require.NoError(t, mock.ExpectationsWereMet())
}
