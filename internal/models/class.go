package models

// Class is a school class (turma) for one academic year, e.g. "8ª Classe A".
type Class struct {
	ID             string         `db:"id" json:"id"`
	SchoolID       string         `db:"school_id" json:"school_id"`
	Name           string         `db:"name" json:"name"`
	Label          string         `db:"label" json:"label"`
	Level          int            `db:"level" json:"level"`
	EducationLevel EducationLevel `db:"education_level" json:"education_level"`
	Track          string         `db:"track" json:"track"`
	AcademicYear   int            `db:"academic_year" json:"academic_year"`
}

// ClassSubject is a subject taught in a class; Mandatory marks the
// disciplines whose joint mid-range result blocks conditional promotion.
type ClassSubject struct {
	ClassID     string `db:"class_id" json:"class_id"`
	SubjectID   string `db:"subject_id" json:"subject_id"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
	Mandatory   bool   `db:"mandatory" json:"mandatory"`
}
