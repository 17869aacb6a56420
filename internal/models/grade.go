package models

// FormulaKind distinguishes the formulas configured for a subject.
type FormulaKind string

const (
	// FormulaKindFinal computes the subject's final grade (NF).
	FormulaKindFinal FormulaKind = "NF"
	// FormulaKindTrimester computes a trimester average (MT).
	FormulaKindTrimester FormulaKind = "MT"
)

// GradeComponent is a named, weighted contributor to a subject grade.
// Trimester is nil for whole-year components.
type GradeComponent struct {
	ID           string  `db:"id" json:"id"`
	ClassID      string  `db:"class_id" json:"class_id"`
	SubjectID    string  `db:"subject_id" json:"subject_id"`
	Code         string  `db:"code" json:"code"`
	Name         string  `db:"name" json:"name"`
	Weight       float64 `db:"weight" json:"weight"`
	IsCalculated bool    `db:"is_calculated" json:"is_calculated"`
	Trimester    *int    `db:"trimester" json:"trimester,omitempty"`
}

// GradeFormula is a user-authored expression over component codes. The
// result of an MT formula is stored under TargetCode so NF can reference it.
type GradeFormula struct {
	ID         string      `db:"id" json:"id"`
	ClassID    string      `db:"class_id" json:"class_id"`
	SubjectID  string      `db:"subject_id" json:"subject_id"`
	Kind       FormulaKind `db:"kind" json:"kind"`
	Trimester  *int        `db:"trimester" json:"trimester,omitempty"`
	TargetCode string      `db:"target_code" json:"target_code"`
	Expression string      `db:"expression" json:"expression"`
	Extended   bool        `db:"extended" json:"extended"`
}

// GradeValue is one recorded score on the 0–20 scale.
type GradeValue struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	ComponentID string  `db:"component_id" json:"component_id"`
	Value       float64 `db:"value" json:"value"`
}

// SubjectFinal is the computed final grade of one student in one subject.
// FinalGrade is nil when nothing has been graded yet or the computation failed.
type SubjectFinal struct {
	StudentID      string   `json:"student_id"`
	StudentName    string   `json:"student_name,omitempty"`
	SubjectID      string   `json:"subject_id"`
	SubjectName    string   `json:"subject_name,omitempty"`
	FinalGrade     *float64 `json:"final_grade,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Passed         bool     `json:"passed"`
	Method         string   `json:"method"`
	Error          string   `json:"error,omitempty"`
}

// ClassStatistics summarises final grades for a class/subject.
type ClassStatistics struct {
	Total        int            `json:"total"`
	Passed       int            `json:"passed"`
	Failed       int            `json:"failed"`
	PassRate     float64        `json:"pass_rate"`
	Mean         float64        `json:"mean"`
	Min          float64        `json:"min"`
	Max          float64        `json:"max"`
	Distribution map[string]int `json:"distribution"`
}

// WeightScopeReport describes the weight total of directly-entered
// components for one trimester scope (nil = whole year).
type WeightScopeReport struct {
	Trimester   *int     `json:"trimester,omitempty"`
	TotalWeight float64  `json:"total_weight"`
	Valid       bool     `json:"valid"`
	Components  []string `json:"components"`
}
