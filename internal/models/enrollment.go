package models

import (
	"time"

	"github.com/lib/pq"
)

// EnrollmentState represents the lifecycle of a yearly enrollment (matrícula).
type EnrollmentState string

// Possible enrollment states.
const (
	EnrollmentStatePending      EnrollmentState = "PENDING"
	EnrollmentStateAwaitingExam EnrollmentState = "AWAITING_EXAM"
	EnrollmentStateConfirmed    EnrollmentState = "CONFIRMED"
	EnrollmentStateCancelled    EnrollmentState = "CANCELLED"
)

// Enrollment tracks one student's transition from the origin class of an
// academic year to a class of the following year.
type Enrollment struct {
	ID                    string          `db:"id" json:"id"`
	SchoolID              string          `db:"school_id" json:"school_id"`
	StudentID             string          `db:"student_id" json:"student_id"`
	OriginClassID         string          `db:"origin_class_id" json:"origin_class_id"`
	OriginClassLabel      string          `db:"origin_class_label" json:"origin_class_label"`
	OriginClassLevel      int             `db:"origin_class_level" json:"origin_class_level"`
	EducationLevel        EducationLevel  `db:"education_level" json:"education_level"`
	Track                 string          `db:"track" json:"track"`
	OriginYear            int             `db:"origin_year" json:"origin_year"`
	DestinationYear       int             `db:"destination_year" json:"destination_year"`
	DestinationClassLevel *int            `db:"destination_class_level" json:"destination_class_level,omitempty"`
	DestinationClassID    *string         `db:"destination_class_id" json:"destination_class_id,omitempty"`
	State                 EnrollmentState `db:"state" json:"state"`
	Verdict               *Verdict        `db:"verdict" json:"verdict,omitempty"`
	Reasons               pq.StringArray  `db:"reasons" json:"reasons"`
	AtRiskSubjects        pq.StringArray  `db:"at_risk_subjects" json:"at_risk_subjects"`
	RecommendedActions    pq.StringArray  `db:"recommended_actions" json:"recommended_actions"`
	Observation           string          `db:"observation" json:"observation"`
	RetentionReason       *string         `db:"retention_reason" json:"retention_reason,omitempty"`
	ConditionalEnrollment bool            `db:"conditional_enrollment" json:"conditional_enrollment"`
	OverallAverage        *float64        `db:"overall_average" json:"overall_average,omitempty"`
	AttendancePercent     *float64        `db:"attendance_percent" json:"attendance_percent,omitempty"`
	ExamPassed            *bool           `db:"exam_passed" json:"exam_passed,omitempty"`
	ExamGrade             *float64        `db:"exam_grade" json:"exam_grade,omitempty"`
	ExamDate              *time.Time      `db:"exam_date" json:"exam_date,omitempty"`
	Version               int             `db:"version" json:"version"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
	ConfirmedAt           *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt           *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with the student's name.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
}

// ApplyClassification copies a verdict onto the denormalised enrollment columns.
func (e *Enrollment) ApplyClassification(c Classification) {
	verdict := c.Verdict
	e.Verdict = &verdict
	e.Reasons = pq.StringArray(c.Reasons)
	e.AtRiskSubjects = pq.StringArray(c.AtRiskSubjects)
	e.RecommendedActions = pq.StringArray(c.RecommendedActions)
	e.Observation = c.Observation
	e.RetentionReason = c.RetentionReason
	e.ConditionalEnrollment = c.ConditionalEnrollment
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	SchoolID      string
	StudentID     string
	OriginClassID string
	OriginYear    int
	State         EnrollmentState
	Verdict       Verdict
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
