// Package evaluation turns component grades into subject finals and class
// statistics and classifies a student's year-end promotion. Every function
// here is pure: no I/O, no shared state.
package evaluation

import (
	"errors"
	"math"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// Classification labels on the 0–20 scale.
const (
	LabelExcellent    = "Excellent"
	LabelGood         = "Good"
	LabelSufficient   = "Sufficient"
	LabelInsufficient = "Insufficient"
)

// PassingGrade is the minimum final grade that passes a subject.
const PassingGrade = 10.0

// ErrNothingGraded is returned when none of the components has a value.
var ErrNothingGraded = errors.New("no component has a grade")

// ComponentValue is a submitted grade for one component.
type ComponentValue struct {
	ComponentID string  `json:"component_id" validate:"required"`
	Value       float64 `json:"value" validate:"gte=0,lte=20"`
}

// ComponentWeight is a component's declared weight in percent.
type ComponentWeight struct {
	ID            string  `json:"id" validate:"required"`
	WeightPercent float64 `json:"weight_percent" validate:"gte=0,lte=100"`
}

// Contribution is one component's share of the final grade.
type Contribution struct {
	ComponentID  string  `json:"component_id"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// FinalGrade is the aggregated subject grade.
type FinalGrade struct {
	FinalGrade     float64        `json:"final_grade"`
	Classification string         `json:"classification"`
	Passed         bool           `json:"passed"`
	Contributions  []Contribution `json:"contributions"`
}

// AggregateFinalGrade weights the supplied values and renormalises over the
// weights of the components that actually have a value, so an ungraded
// component is excluded rather than counted as zero.
func AggregateFinalGrade(values []ComponentValue, components []ComponentWeight) (FinalGrade, error) {
	byComponent := make(map[string]float64, len(values))
	for _, v := range values {
		if math.IsNaN(v.Value) {
			continue
		}
		byComponent[v.ComponentID] = v.Value
	}

	var sumContribution, sumWeight float64
	contributions := make([]Contribution, 0, len(components))
	for _, comp := range components {
		value, ok := byComponent[comp.ID]
		if !ok {
			continue
		}
		contribution := value * (comp.WeightPercent / 100)
		sumContribution += contribution
		sumWeight += comp.WeightPercent
		contributions = append(contributions, Contribution{
			ComponentID:  comp.ID,
			Value:        value,
			Weight:       comp.WeightPercent,
			Contribution: contribution,
		})
	}
	if sumWeight == 0 {
		return FinalGrade{}, ErrNothingGraded
	}

	final := sumContribution / sumWeight * 100
	return FinalGrade{
		FinalGrade:     final,
		Classification: ClassificationLabel(final),
		Passed:         final >= PassingGrade,
		Contributions:  contributions,
	}, nil
}

// ClassificationLabel maps a 0–20 grade to its qualitative label.
func ClassificationLabel(grade float64) string {
	switch {
	case grade >= 17:
		return LabelExcellent
	case grade >= 14:
		return LabelGood
	case grade >= PassingGrade:
		return LabelSufficient
	default:
		return LabelInsufficient
	}
}

// AggregateClassStatistics summarises a list of final grades. PassRate is a
// percentage. An empty list yields zeroed statistics.
func AggregateClassStatistics(finalGrades []float64) models.ClassStatistics {
	stats := models.ClassStatistics{
		Distribution: map[string]int{
			LabelExcellent:    0,
			LabelGood:         0,
			LabelSufficient:   0,
			LabelInsufficient: 0,
		},
	}
	if len(finalGrades) == 0 {
		return stats
	}

	stats.Total = len(finalGrades)
	stats.Min = finalGrades[0]
	stats.Max = finalGrades[0]
	var sum float64
	for _, grade := range finalGrades {
		sum += grade
		stats.Min = math.Min(stats.Min, grade)
		stats.Max = math.Max(stats.Max, grade)
		if grade >= PassingGrade {
			stats.Passed++
		} else {
			stats.Failed++
		}
		stats.Distribution[ClassificationLabel(grade)]++
	}
	stats.Mean = sum / float64(stats.Total)
	stats.PassRate = float64(stats.Passed) / float64(stats.Total) * 100
	return stats
}
