package formula

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	basicCharset    = regexp.MustCompile(`^[A-Za-z0-9_+\-*/(). ]*$`)
	extendedCharset = regexp.MustCompile(`^[A-Za-z0-9_+\-*/(). ,<>=!&|]*$`)
	codePattern     = regexp.MustCompile(`[A-Z][A-Z0-9_]*`)
)

// ValidationResult is the outcome of a static formula check.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationError carries the first failed check of Validate.
type ValidationError struct {
	Expression string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid formula %q: %s", e.Expression, e.Reason)
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err(expression string) error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Expression: expression, Reason: r.Error}
}

// Validate statically checks a basic-grammar expression against the set of
// codes defined for its scope. Checks run in order and stop at the first
// failure: non-empty, allowed characters, balanced parentheses, known codes,
// no consecutive operators, and finally a full parse.
func Validate(expression string, validCodes []string) ValidationResult {
	return validate(expression, validCodes, false)
}

// ValidateExtended is Validate for the extended grammar.
func ValidateExtended(expression string, validCodes []string) ValidationResult {
	return validate(expression, validCodes, true)
}

func validate(expression string, validCodes []string, extended bool) ValidationResult {
	if strings.TrimSpace(expression) == "" {
		return invalid("formula is empty")
	}

	charset := basicCharset
	if extended {
		charset = extendedCharset
	}
	if !charset.MatchString(expression) {
		return invalid("formula contains invalid characters")
	}

	depth := 0
	for _, ch := range expression {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return invalid("unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return invalid("unbalanced parentheses")
	}

	known := make(map[string]struct{}, len(validCodes))
	for _, code := range validCodes {
		known[code] = struct{}{}
	}
	for _, code := range ExtractCodes(expression) {
		if _, ok := known[code]; !ok {
			return invalid(fmt.Sprintf("unknown component code: %s", code))
		}
	}

	if pos := consecutiveOperator(expression); pos >= 0 {
		return invalid(fmt.Sprintf("consecutive operators at position %d", pos))
	}

	_, idents, err := parse(expression, extended)
	if err != nil {
		return invalid(err.Error())
	}
	// lower-case identifiers escape ExtractCodes but still need a value
	for _, ident := range idents {
		if _, ok := known[ident]; !ok {
			return invalid(fmt.Sprintf("unknown component code: %s", ident))
		}
	}

	return ValidationResult{Valid: true}
}

// ExtractCodes returns the distinct component codes (maximal runs of
// [A-Z][A-Z0-9_]*) found in expression, ignoring numeric literals.
func ExtractCodes(expression string) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, loc := range codePattern.FindAllStringIndex(expression, -1) {
		// skip runs glued to a preceding identifier character, e.g. the "B" in "aB"
		if loc[0] > 0 && isIdentPart(expression[loc[0]-1]) {
			continue
		}
		code := expression[loc[0]:loc[1]]
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// consecutiveOperator returns the position of the second operator of the
// first adjacent + - * / pair, or -1. A '-' directly followed by a digit is
// a sign rather than an operator.
func consecutiveOperator(expression string) int {
	prevOperator := false
	compact := make([]int, 0, len(expression))
	for i := 0; i < len(expression); i++ {
		if expression[i] != ' ' {
			compact = append(compact, i)
		}
	}
	for idx, pos := range compact {
		ch := expression[pos]
		isOp := ch == '+' || ch == '-' || ch == '*' || ch == '/'
		if !isOp {
			prevOperator = false
			continue
		}
		if prevOperator {
			if ch == '-' && idx+1 < len(compact) && isDigit(expression[compact[idx+1]]) {
				prevOperator = true
				continue
			}
			return pos
		}
		prevOperator = true
	}
	return -1
}

func invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Error: reason}
}
