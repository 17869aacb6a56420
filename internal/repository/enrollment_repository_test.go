package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var enrollmentRowColumns = []string{
	"id", "school_id", "student_id", "origin_class_id", "origin_class_label", "origin_class_level",
	"education_level", "track", "origin_year", "destination_year", "destination_class_level", "destination_class_id",
	"state", "verdict", "reasons", "at_risk_subjects", "recommended_actions", "observation", "retention_reason",
	"conditional_enrollment", "overall_average", "attendance_percent", "exam_passed", "exam_grade", "exam_date",
	"version", "created_at", "updated_at", "confirmed_at", "cancelled_at",
}

func enrollmentRow(id, state string, verdict interface{}) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, "school-1", "stu-1", "class-8a", "8ª Classe", 8,
		"SECONDARY", "", 2024, 2025, nil, nil,
		state, verdict, "{}", "{Física}", "{}", "", nil,
		false, nil, 91.5, nil, nil, nil,
		3, now, now, nil, nil,
	}
}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows(enrollmentRowColumns).AddRow(enrollmentRow("mat-1", "AWAITING_EXAM", "CONDITIONAL")...)
	mock.ExpectQuery(`FROM matriculas m WHERE m.id = \$1`).WithArgs("mat-1").WillReturnRows(rows)

	enrollment, err := repo.FindByID(context.Background(), "mat-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStateAwaitingExam, enrollment.State)
	require.NotNil(t, enrollment.Verdict)
	assert.Equal(t, models.VerdictConditional, *enrollment.Verdict)
	assert.Equal(t, pq.StringArray{"Física"}, enrollment.AtRiskSubjects)
	assert.Equal(t, 3, enrollment.Version)
	require.NotNil(t, enrollment.AttendancePercent)
	assert.Equal(t, 91.5, *enrollment.AttendancePercent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	columns := append(append([]string{}, enrollmentRowColumns...), "student_name")
	rows := sqlmock.NewRows(columns).AddRow(append(enrollmentRow("mat-1", "PENDING", nil), "Ana João")...)
	mock.ExpectQuery(`SELECT .* FROM matriculas m\s+LEFT JOIN students s ON s.id = m.student_id WHERE m.school_id = \$1 AND m.origin_class_id = \$2 AND m.state = \$3 ORDER BY s.full_name ASC, m.id LIMIT 20 OFFSET 0`).
		WithArgs("school-1", "class-8a", models.EnrollmentStatePending).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matriculas m`).
		WithArgs("school-1", "class-8a", models.EnrollmentStatePending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{SchoolID: "school-1", OriginClassID: "class-8a", State: models.EnrollmentStatePending, SortBy: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana João", list[0].StudentName)
	assert.Nil(t, list[0].Verdict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsForStudentYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`SELECT 1 FROM matriculas WHERE student_id = $1 AND origin_year = $2 AND state <> $3 LIMIT 1`)
	mock.ExpectQuery(query).WithArgs("stu-1", 2024, models.EnrollmentStateCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(query).WithArgs("stu-2", 2024, models.EnrollmentStateCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsForStudentYear(context.Background(), "stu-1", 2024)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForStudentYear(context.Background(), "stu-2", 2024)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(`INSERT INTO matriculas`).WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", OriginClassID: "class-8a", OriginYear: 2024, DestinationYear: 2025}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatePending, enrollment.State)
	assert.Equal(t, 1, enrollment.Version)
	assert.False(t, enrollment.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateTransitionOptimistic(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	update := `UPDATE matriculas SET state = \$3, .* version = version \+ 1\s+WHERE id = \$1 AND version = \$2`
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))

	enrollment := &models.Enrollment{ID: "mat-1", Version: 4, State: models.EnrollmentStateConfirmed}
	applied, err := repo.UpdateTransition(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 5, enrollment.Version)

	stale := &models.Enrollment{ID: "mat-1", Version: 4, State: models.EnrollmentStateConfirmed}
	applied, err = repo.UpdateTransition(context.Background(), stale)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 4, stale.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}
