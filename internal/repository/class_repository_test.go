package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

func TestClassRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "school_id", "name", "label", "level", "education_level", "track", "academic_year"}).
		AddRow("class-8a", "school-1", "8ª A", "8ª Classe", 8, "SECONDARY", "", 2024)
	mock.ExpectQuery(`FROM classes WHERE id = \$1`).WithArgs("class-8a").WillReturnRows(rows)

	class, err := repo.FindByID(context.Background(), "class-8a")
	require.NoError(t, err)
	assert.Equal(t, 8, class.Level)
	assert.Equal(t, models.EducationSecondary, class.EducationLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListSubjects(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"class_id", "subject_id", "subject_name", "subject_code", "mandatory"}).
		AddRow("class-8a", "sub-mat", "Matemática", "MAT", true).
		AddRow("class-8a", "sub-fis", "Física", "FIS", false)
	mock.ExpectQuery(`FROM class_subjects cs\s+JOIN subjects s`).WithArgs("class-8a").WillReturnRows(rows)

	subjects, err := repo.ListSubjects(context.Background(), "class-8a")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.True(t, subjects[0].Mandatory)
	assert.Equal(t, "FIS", subjects[1].SubjectCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
