package evaluation

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

// LastPrimaryClass is the highest class of Ensino Primário.
const LastPrimaryClass = 6

// ParseClassLevel reads the leading class number of a label such as
// "8ª Classe" or "10.ª Classe B".
func ParseClassLevel(label string) (int, bool) {
	trimmed := strings.TrimSpace(label)
	end := 0
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	level, err := strconv.Atoi(trimmed[:end])
	if err != nil {
		return 0, false
	}
	return level, true
}

// NextClassLevel returns the class a promoted student moves to. The last
// level does not advance.
func NextClassLevel(level, maxLevel int) int {
	if maxLevel > 0 && level >= maxLevel {
		return maxLevel
	}
	return level + 1
}

// EducationLevelForClass maps a class number to its rule set.
func EducationLevelForClass(level int) models.EducationLevel {
	if level <= LastPrimaryClass {
		return models.EducationPrimary
	}
	return models.EducationSecondary
}

// IsCoreSubjectName reports whether a subject name denotes Portuguese or
// Mathematics, ignoring case and accents.
func IsCoreSubjectName(name string) bool {
	folded := foldName(name)
	return strings.Contains(folded, "portugues") || strings.Contains(folded, "matematica")
}

func foldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(folded)
}
