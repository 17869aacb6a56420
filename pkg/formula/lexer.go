package formula

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenOperator
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind  tokenKind
	text  string
	value float64
	pos   int
}

// lex splits an expression into tokens. Operators outside the basic set are
// only recognised in extended mode.
func lex(expression string, extended bool) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expression) {
		ch := expression[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case isDigit(ch) || ch == '.':
			start := i
			seenDot := false
			for i < len(expression) && (isDigit(expression[i]) || expression[i] == '.') {
				if expression[i] == '.' {
					if seenDot {
						return nil, fmt.Errorf("malformed number at position %d", start)
					}
					seenDot = true
				}
				i++
			}
			text := expression[start:i]
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed number %q at position %d", text, start)
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, value: value, pos: start})
		case isIdentStart(ch):
			start := i
			for i < len(expression) && isIdentPart(expression[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: expression[start:i], pos: start})
		case ch == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/':
			tokens = append(tokens, token{kind: tokenOperator, text: string(ch), pos: i})
			i++
		case extended && ch == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++
		case extended && (ch == '<' || ch == '>' || ch == '=' || ch == '!' || ch == '&' || ch == '|'):
			op, width := readComparison(expression[i:])
			if op == "" {
				return nil, fmt.Errorf("unexpected %q at position %d", ch, i)
			}
			tokens = append(tokens, token{kind: tokenOperator, text: op, pos: i})
			i += width
		default:
			return nil, fmt.Errorf("unexpected %q at position %d", ch, i)
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(expression)})
	return tokens, nil
}

func readComparison(s string) (string, int) {
	if len(s) >= 2 {
		switch s[:2] {
		case "<=", ">=", "==", "!=", "&&", "||":
			return s[:2], 2
		}
	}
	switch s[0] {
	case '<', '>', '!':
		return s[:1], 1
	}
	return "", 0
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || ch == '_'
}

func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }
