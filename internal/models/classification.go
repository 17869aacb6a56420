package models

// EducationLevel selects the promotion rule set.
type EducationLevel string

const (
	EducationPrimary   EducationLevel = "PRIMARY"
	EducationSecondary EducationLevel = "SECONDARY"
)

// Verdict is the outcome of a year-end promotion classification.
type Verdict string

const (
	VerdictTransitions       Verdict = "TRANSITIONS"
	VerdictDoesNotTransition Verdict = "DOES_NOT_TRANSITION"
	VerdictConditional       Verdict = "CONDITIONAL"
	// VerdictAwaitingGrades means no decision is possible yet; it is not a failure.
	VerdictAwaitingGrades Verdict = "AWAITING_GRADES"
)

// SubjectGrade is one entry of a student's discipline-grade set.
type SubjectGrade struct {
	ID    string  `json:"id" validate:"required"`
	Name  string  `json:"name" validate:"required"`
	Grade float64 `json:"grade" validate:"gte=0,lte=20"`
}

// Classification is the verdict of the promotion classifier together with
// its supporting rationale. It is recomputed, never mutated.
type Classification struct {
	Verdict               Verdict  `json:"verdict"`
	Reasons               []string `json:"reasons"`
	AtRiskSubjects        []string `json:"at_risk_subjects"`
	RecommendedActions    []string `json:"recommended_actions"`
	Observation           string   `json:"observation"`
	RetentionReason       *string  `json:"retention_reason,omitempty"`
	ConditionalEnrollment bool     `json:"conditional_enrollment"`
}
