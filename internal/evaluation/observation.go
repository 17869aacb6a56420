package evaluation

import (
	"fmt"
	"strings"
)

// Observation sentences printed on the pauta. Thresholds are the regulatory
// values and are formatted into the text, never configured.

func observationAttendance(attendance float64) string {
	return fmt.Sprintf("Não transita por falta de assiduidade: %.2f%% de presenças, abaixo do mínimo de %.2f%%.", attendance, MinimumAttendancePercent)
}

func observationAwaiting() string {
	return "Aguarda o lançamento das notas finais."
}

func observationTransitions(threshold int, attendance *float64) string {
	return withAttendance(fmt.Sprintf("Transita com nota igual ou superior a %d valores em todas as disciplinas.", threshold), attendance)
}

func observationBelow(threshold int, subjects []string, attendance *float64) string {
	return withAttendance(fmt.Sprintf("Não transita por ter nota inferior a %d valores em: %s.", threshold, strings.Join(subjects, ", ")), attendance)
}

func observationConditional(subjects []string, attendance *float64) string {
	return withAttendance(fmt.Sprintf("Transita condicionalmente, sujeito a exame extraordinário em: %s (nota entre %d e %d valores).",
		strings.Join(subjects, ", "), SecondaryFloorGrade, SecondaryPassGrade-1), attendance)
}

func observationMandatoryPair(subjects []string, attendance *float64) string {
	return withAttendance(fmt.Sprintf("Não transita por ter nota inferior a %d valores em simultâneo nas disciplinas obrigatórias: %s.",
		SecondaryPassGrade, strings.Join(subjects, ", ")), attendance)
}

func observationTooManyMidRange(subjects []string, attendance *float64) string {
	return withAttendance(fmt.Sprintf("Não transita por ter nota inferior a %d valores em %d disciplinas: %s.",
		SecondaryPassGrade, len(subjects), strings.Join(subjects, ", ")), attendance)
}

func withAttendance(sentence string, attendance *float64) string {
	if attendance == nil {
		return sentence
	}
	return fmt.Sprintf("%s Assiduidade: %.2f%%.", sentence, *attendance)
}
