package evaluation

import (
	"fmt"
	"math"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// ExamResolution is the outcome of an extraordinary exam for a conditionally
// promoted student.
type ExamResolution struct {
	Verdict          models.Verdict
	DestinationLevel int
	Observation      string
	RetentionReason  *string
}

// ResolveExam settles a Conditional verdict. A pass promotes to the next
// class level; a fail repeats the origin level.
func ResolveExam(originLevel, maxLevel int, passed bool, grade float64) ExamResolution {
	if passed {
		return ExamResolution{
			Verdict:          models.VerdictTransitions,
			DestinationLevel: NextClassLevel(originLevel, maxLevel),
			Observation:      fmt.Sprintf("Transita após aprovação no exame extraordinário com %.1f valores.", grade),
		}
	}
	reason := fmt.Sprintf("failed extraordinary exam (%.1f)", grade)
	return ExamResolution{
		Verdict:          models.VerdictDoesNotTransition,
		DestinationLevel: originLevel,
		Observation:      fmt.Sprintf("Não transita por reprovação no exame extraordinário com %.1f valores.", grade),
		RetentionReason:  &reason,
	}
}

// OverallAverage is the mean of the subject grades rounded to two decimals.
func OverallAverage(grades []models.SubjectGrade) (float64, bool) {
	if len(grades) == 0 {
		return 0, false
	}
	var sum float64
	for _, g := range grades {
		sum += g.Grade
	}
	return math.Round(sum/float64(len(grades))*100) / 100, true
}
