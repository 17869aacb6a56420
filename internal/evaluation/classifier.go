package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// Regulatory thresholds of the Angolan promotion rules.
const (
	MinimumAttendancePercent = 66.67
	PrimaryPassGrade         = 5
	SecondaryFloorGrade      = 7
	SecondaryPassGrade       = 10
)

// ClassifyInput is a student's discipline-grade set plus the context the
// promotion rules depend on. An empty EducationLevel is derived from the
// class label. MandatorySubjectIDs, when empty, falls back to recognising
// Portuguese and Mathematics by name.
type ClassifyInput struct {
	SubjectGrades       []models.SubjectGrade `json:"subject_grades" validate:"dive"`
	EducationLevel      models.EducationLevel `json:"education_level" validate:"omitempty,oneof=PRIMARY SECONDARY"`
	ClassLabel          string                `json:"class_label"`
	MandatorySubjectIDs []string              `json:"mandatory_subject_ids"`
	AttendancePercent   *float64              `json:"attendance_percent" validate:"omitempty,gte=0,lte=100"`
}

type roundedGrade struct {
	subject models.SubjectGrade
	rounded int
}

// Classify applies the attendance rule and then the Primary or Secondary
// rule set. Grades are rounded to the nearest integer before any threshold
// comparison.
func Classify(in ClassifyInput) models.Classification {
	if in.AttendancePercent != nil && *in.AttendancePercent < MinimumAttendancePercent {
		return retained(
			[]string{fmt.Sprintf("insufficient attendance (%.2f%% < %.2f%%)", *in.AttendancePercent, MinimumAttendancePercent)},
			nil,
			[]string{"repeat the class with attendance monitoring"},
			observationAttendance(*in.AttendancePercent),
			"insufficient attendance",
		)
	}

	if len(in.SubjectGrades) == 0 {
		return models.Classification{
			Verdict:            models.VerdictAwaitingGrades,
			Reasons:            []string{"no final grades recorded"},
			AtRiskSubjects:     []string{},
			RecommendedActions: []string{"record final grades before classifying"},
			Observation:        observationAwaiting(),
		}
	}

	grades := make([]roundedGrade, len(in.SubjectGrades))
	for i, sg := range in.SubjectGrades {
		grades[i] = roundedGrade{subject: sg, rounded: int(math.Round(sg.Grade))}
	}

	classLevel, hasLevel := ParseClassLevel(in.ClassLabel)
	level := in.EducationLevel
	if level == "" {
		level = models.EducationSecondary
		if hasLevel {
			level = EducationLevelForClass(classLevel)
		}
	}

	if level == models.EducationPrimary {
		return classifyPrimary(grades, in.AttendancePercent)
	}
	return classifySecondary(grades, classLevel, in.MandatorySubjectIDs, in.AttendancePercent)
}

func classifyPrimary(grades []roundedGrade, attendance *float64) models.Classification {
	failing := below(grades, PrimaryPassGrade)
	if len(failing) > 0 {
		names := subjectNames(failing)
		return retained(
			gradeReasons(failing, fmt.Sprintf("below %d", PrimaryPassGrade)),
			names,
			[]string{"repeat the class"},
			observationBelow(PrimaryPassGrade, names, attendance),
			fmt.Sprintf("grade below %d in %s", PrimaryPassGrade, strings.Join(names, ", ")),
		)
	}
	return transitions(PrimaryPassGrade, attendance)
}

func classifySecondary(grades []roundedGrade, classLevel int, mandatoryIDs []string, attendance *float64) models.Classification {
	if floor := below(grades, SecondaryFloorGrade); len(floor) > 0 {
		names := subjectNames(floor)
		return retained(
			gradeReasons(floor, fmt.Sprintf("below %d", SecondaryFloorGrade)),
			names,
			[]string{"repeat the class"},
			observationBelow(SecondaryFloorGrade, names, attendance),
			fmt.Sprintf("grade below %d in %s", SecondaryFloorGrade, strings.Join(names, ", ")),
		)
	}

	midRange := below(grades, SecondaryPassGrade)

	if classLevel != 7 && classLevel != 8 {
		if len(midRange) > 0 {
			names := subjectNames(midRange)
			return retained(
				gradeReasons(midRange, fmt.Sprintf("below %d", SecondaryPassGrade)),
				names,
				[]string{"repeat the class"},
				observationBelow(SecondaryPassGrade, names, attendance),
				fmt.Sprintf("grade below %d in %s", SecondaryPassGrade, strings.Join(names, ", ")),
			)
		}
		return transitions(SecondaryPassGrade, attendance)
	}

	names := subjectNames(midRange)
	switch {
	case len(midRange) == 0:
		return transitions(SecondaryPassGrade, attendance)
	case len(midRange) <= 2:
		if len(midRange) == 2 && isMandatory(midRange[0].subject, mandatoryIDs) && isMandatory(midRange[1].subject, mandatoryIDs) {
			return retained(
				append(gradeReasons(midRange, fmt.Sprintf("between %d and %d", SecondaryFloorGrade, SecondaryPassGrade-1)),
					"two mandatory subjects cannot both be between 7 and 9"),
				names,
				[]string{"repeat the class"},
				observationMandatoryPair(names, attendance),
				fmt.Sprintf("mandatory subjects %s both between %d and %d", strings.Join(names, " and "), SecondaryFloorGrade, SecondaryPassGrade-1),
			)
		}
		actions := make([]string, 0, len(names))
		for _, name := range names {
			actions = append(actions, fmt.Sprintf("schedule extraordinary exam in %s", name))
		}
		reason := fmt.Sprintf("pending extraordinary exam in %s", strings.Join(names, ", "))
		return models.Classification{
			Verdict:               models.VerdictConditional,
			Reasons:               gradeReasons(midRange, fmt.Sprintf("between %d and %d", SecondaryFloorGrade, SecondaryPassGrade-1)),
			AtRiskSubjects:        names,
			RecommendedActions:    actions,
			Observation:           observationConditional(names, attendance),
			RetentionReason:       &reason,
			ConditionalEnrollment: true,
		}
	default:
		return retained(
			append(gradeReasons(midRange, fmt.Sprintf("between %d and %d", SecondaryFloorGrade, SecondaryPassGrade-1)),
				fmt.Sprintf("%d subjects between %d and %d exceed the limit of 2", len(midRange), SecondaryFloorGrade, SecondaryPassGrade-1)),
			names,
			[]string{"repeat the class"},
			observationTooManyMidRange(names, attendance),
			fmt.Sprintf("%d subjects below %d", len(midRange), SecondaryPassGrade),
		)
	}
}

func transitions(threshold int, attendance *float64) models.Classification {
	return models.Classification{
		Verdict:            models.VerdictTransitions,
		Reasons:            []string{fmt.Sprintf("all subjects at or above %d", threshold)},
		AtRiskSubjects:     []string{},
		RecommendedActions: []string{"confirm enrollment in the next class"},
		Observation:        observationTransitions(threshold, attendance),
	}
}

func retained(reasons, atRisk, actions []string, observation, retention string) models.Classification {
	if atRisk == nil {
		atRisk = []string{}
	}
	return models.Classification{
		Verdict:            models.VerdictDoesNotTransition,
		Reasons:            reasons,
		AtRiskSubjects:     atRisk,
		RecommendedActions: actions,
		Observation:        observation,
		RetentionReason:    &retention,
	}
}

func below(grades []roundedGrade, threshold int) []roundedGrade {
	var out []roundedGrade
	for _, g := range grades {
		if g.rounded < threshold {
			out = append(out, g)
		}
	}
	return out
}

func subjectNames(grades []roundedGrade) []string {
	names := make([]string, len(grades))
	for i, g := range grades {
		names[i] = g.subject.Name
	}
	return names
}

func gradeReasons(grades []roundedGrade, band string) []string {
	reasons := make([]string, len(grades))
	for i, g := range grades {
		reasons[i] = fmt.Sprintf("%s: %d (%s)", g.subject.Name, g.rounded, band)
	}
	return reasons
}

func isMandatory(subject models.SubjectGrade, mandatoryIDs []string) bool {
	if len(mandatoryIDs) == 0 {
		return IsCoreSubjectName(subject.Name)
	}
	for _, id := range mandatoryIDs {
		if id == subject.ID {
			return true
		}
	}
	return false
}
