package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

const enrollmentColumns = `m.id, m.school_id, m.student_id, m.origin_class_id, m.origin_class_label, m.origin_class_level,
        m.education_level, m.track, m.origin_year, m.destination_year, m.destination_class_level, m.destination_class_id,
        m.state, m.verdict, m.reasons, m.at_risk_subjects, m.recommended_actions, m.observation, m.retention_reason,
        m.conditional_enrollment, m.overall_average, m.attendance_percent, m.exam_passed, m.exam_grade, m.exam_date,
        m.version, m.created_at, m.updated_at, m.confirmed_at, m.cancelled_at`

// EnrollmentRepository persists matrícula records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM matriculas m
LEFT JOIN students s ON s.id = m.student_id`
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("m.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("m.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.OriginClassID != "" {
		conditions = append(conditions, fmt.Sprintf("m.origin_class_id = $%d", len(args)+1))
		args = append(args, filter.OriginClassID)
	}
	if filter.OriginYear > 0 {
		conditions = append(conditions, fmt.Sprintf("m.origin_year = $%d", len(args)+1))
		args = append(args, filter.OriginYear)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("m.state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.Verdict != "" {
		conditions = append(conditions, fmt.Sprintf("m.verdict = $%d", len(args)+1))
		args = append(args, filter.Verdict)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":      "m.created_at",
		"updated_at":      "m.updated_at",
		"student_name":    "s.full_name",
		"overall_average": "m.overall_average",
		"state":           "m.state",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, COALESCE(s.full_name, '') AS student_name
        %s ORDER BY %s %s, m.id LIMIT %d OFFSET %d`, enrollmentColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list matriculas: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count matriculas: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns a matrícula by its ID. sql.ErrNoRows is returned as is.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM matriculas m WHERE m.id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns a matrícula with the student's name.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(s.full_name, '') AS student_name
        FROM matriculas m
        LEFT JOIN students s ON s.id = m.student_id
        WHERE m.id = $1`, enrollmentColumns)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsForStudentYear reports whether a non-cancelled matrícula exists for
// the student's origin year.
func (r *EnrollmentRepository) ExistsForStudentYear(ctx context.Context, studentID string, originYear int) (bool, error) {
	const query = `SELECT 1 FROM matriculas WHERE student_id = $1 AND origin_year = $2 AND state <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, originYear, models.EnrollmentStateCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check matricula: %w", err)
	}
	return true, nil
}

// Create persists a new matrícula.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = enrollment.CreatedAt
	if enrollment.State == "" {
		enrollment.State = models.EnrollmentStatePending
	}
	if enrollment.Version == 0 {
		enrollment.Version = 1
	}
	const query = `INSERT INTO matriculas (id, school_id, student_id, origin_class_id, origin_class_label, origin_class_level,
        education_level, track, origin_year, destination_year, state, reasons, at_risk_subjects, recommended_actions,
        observation, conditional_enrollment, version, created_at, updated_at)
        VALUES (:id, :school_id, :student_id, :origin_class_id, :origin_class_label, :origin_class_level,
        :education_level, :track, :origin_year, :destination_year, :state, :reasons, :at_risk_subjects, :recommended_actions,
        :observation, :conditional_enrollment, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create matricula: %w", err)
	}
	return nil
}

// ListByOriginClass returns the non-cancelled matrículas generated from a
// class for an academic year, ordered by student name.
func (r *EnrollmentRepository) ListByOriginClass(ctx context.Context, classID string, originYear int) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(s.full_name, '') AS student_name
        FROM matriculas m
        LEFT JOIN students s ON s.id = m.student_id
        WHERE m.origin_class_id = $1 AND m.origin_year = $2 AND m.state <> $3
        ORDER BY s.full_name, m.id`, enrollmentColumns)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, originYear, models.EnrollmentStateCancelled); err != nil {
		return nil, fmt.Errorf("list class matriculas: %w", err)
	}
	return enrollments, nil
}

// UpdateTransition writes every mutable column of the record provided the
// stored version still equals enrollment.Version. It reports false when
// another writer got there first; on success the in-memory version is bumped.
func (r *EnrollmentRepository) UpdateTransition(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE matriculas SET state = $3, verdict = $4, reasons = $5, at_risk_subjects = $6, recommended_actions = $7,
        observation = $8, retention_reason = $9, conditional_enrollment = $10, destination_class_level = $11,
        destination_class_id = $12, overall_average = $13, attendance_percent = $14, exam_passed = $15, exam_grade = $16,
        exam_date = $17, confirmed_at = $18, cancelled_at = $19, updated_at = $20, version = version + 1
        WHERE id = $1 AND version = $2`
	res, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.Version,
		enrollment.State, enrollment.Verdict, enrollment.Reasons, enrollment.AtRiskSubjects, enrollment.RecommendedActions,
		enrollment.Observation, enrollment.RetentionReason, enrollment.ConditionalEnrollment, enrollment.DestinationClassLevel,
		enrollment.DestinationClassID, enrollment.OverallAverage, enrollment.AttendancePercent, enrollment.ExamPassed, enrollment.ExamGrade,
		enrollment.ExamDate, enrollment.ConfirmedAt, enrollment.CancelledAt, enrollment.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update matricula %s: %w", enrollment.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update matricula %s rows: %w", enrollment.ID, err)
	}
	if affected == 0 {
		return false, nil
	}
	enrollment.Version++
	return true, nil
}
