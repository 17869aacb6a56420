// Package formula parses and evaluates the grading formulas that schools
// author over component codes (e.g. "(MAC + NPP + NPT) / 3").
//
// Expressions are handled by a small recursive-descent parser. Nothing in an
// expression can reach beyond arithmetic over numeric literals and the
// values supplied by the caller.
package formula

import (
	"errors"
	"fmt"
	"math"
)

// EvaluationError reports a formula that could not be computed.
type EvaluationError struct {
	Expression string
	// Code is set when the failure is a component without a value.
	Code   string
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Expression, e.Reason)
}

// Evaluate computes expression using the basic grammar: + - * / ( ) and
// decimal literals. Identifiers are component codes looked up in values as
// whole tokens; a missing or NaN value fails the evaluation while zero is a
// regular value.
func Evaluate(expression string, values map[string]float64) (float64, error) {
	return evaluate(expression, values, false)
}

// EvaluateExtended additionally admits min, max, round, if(cond, a, b),
// comparisons and the logical operators && || !.
func EvaluateExtended(expression string, values map[string]float64) (float64, error) {
	return evaluate(expression, values, true)
}

func evaluate(expression string, values map[string]float64, extended bool) (float64, error) {
	root, _, err := parse(expression, extended)
	if err != nil {
		return 0, &EvaluationError{Expression: expression, Reason: err.Error()}
	}
	result, err := root.eval(values)
	if err != nil {
		evalErr := &EvaluationError{Expression: expression, Reason: err.Error()}
		var missing *missingValueError
		if errors.As(err, &missing) {
			evalErr.Code = missing.code
		}
		return 0, evalErr
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, &EvaluationError{Expression: expression, Reason: "result is not a finite number"}
	}
	return result, nil
}

// References returns the distinct identifiers an expression reads, in order
// of first appearance. Function names are not included.
func References(expression string, extended bool) ([]string, error) {
	_, idents, err := parse(expression, extended)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(idents))
	refs := make([]string, 0, len(idents))
	for _, ident := range idents {
		if _, ok := seen[ident]; ok {
			continue
		}
		seen[ident] = struct{}{}
		refs = append(refs, ident)
	}
	return refs, nil
}
