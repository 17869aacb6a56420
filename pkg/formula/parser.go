package formula

import (
	"fmt"
	"math"
)

// node is a parsed expression tree element.
type node interface {
	eval(values map[string]float64) (float64, error)
}

type numberNode float64

type identNode string

type unaryNode struct {
	op string
	x  node
}

type binaryNode struct {
	op          string
	left, right node
}

type callNode struct {
	name string
	args []node
}

var functionArity = map[string][2]int{
	"min":   {1, -1},
	"max":   {1, -1},
	"round": {1, 2},
	"if":    {3, 3},
}

type parser struct {
	tokens   []token
	pos      int
	extended bool
	idents   []string
}

// parse builds an expression tree and returns every identifier referenced
// outside function names, in order of appearance.
func parse(expression string, extended bool) (node, []string, error) {
	tokens, err := lex(expression, extended)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{tokens: tokens, extended: extended}
	root, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}
	return root, p.idents, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) acceptOperator(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokenOperator {
		return "", false
	}
	for _, op := range ops {
		if tok.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseExpr() (node, error) {
	if !p.extended {
		return p.parseAdditive()
	}
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOperator("||")
		if !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOperator("&&")
		if !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOperator("<", "<=", ">", ">=", "==", "!=")
	if !ok {
		return left, nil
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOperator("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOperator("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	ops := []string{"-", "+"}
	if p.extended {
		ops = append(ops, "!")
	}
	if op, ok := p.acceptOperator(ops...); ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		return numberNode(tok.value), nil
	case tokenIdent:
		if p.peek().kind == tokenLParen {
			return p.parseCall(tok)
		}
		p.idents = append(p.idents, tok.text)
		return identNode(tok.text), nil
	case tokenLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, fmt.Errorf("expected ')' at position %d", closing.pos)
		}
		return inner, nil
	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	arity, known := functionArity[name.text]
	if !p.extended || !known {
		return nil, fmt.Errorf("unknown function %q at position %d", name.text, name.pos)
	}
	p.next() // (
	var args []node
	if p.peek().kind != tokenRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokenRParen {
		return nil, fmt.Errorf("expected ')' at position %d", closing.pos)
	}
	if len(args) < arity[0] || (arity[1] >= 0 && len(args) > arity[1]) {
		return nil, fmt.Errorf("function %s called with %d arguments", name.text, len(args))
	}
	return callNode{name: name.text, args: args}, nil
}

func (n numberNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

func (n identNode) eval(values map[string]float64) (float64, error) {
	v, ok := values[string(n)]
	if !ok || math.IsNaN(v) {
		return 0, &missingValueError{code: string(n)}
	}
	return v, nil
}

func (n unaryNode) eval(values map[string]float64) (float64, error) {
	x, err := n.x.eval(values)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "-":
		return -x, nil
	case "!":
		return boolValue(x == 0), nil
	default:
		return x, nil
	}
}

func (n binaryNode) eval(values map[string]float64) (float64, error) {
	left, err := n.left.eval(values)
	if err != nil {
		return 0, err
	}
	// && and || short-circuit like the conditional they usually guard.
	switch n.op {
	case "&&":
		if left == 0 {
			return 0, nil
		}
	case "||":
		if left != 0 {
			return 1, nil
		}
	}
	right, err := n.right.eval(values)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		return left / right, nil
	case "<":
		return boolValue(left < right), nil
	case "<=":
		return boolValue(left <= right), nil
	case ">":
		return boolValue(left > right), nil
	case ">=":
		return boolValue(left >= right), nil
	case "==":
		return boolValue(left == right), nil
	case "!=":
		return boolValue(left != right), nil
	case "&&", "||":
		return boolValue(right != 0), nil
	}
	return 0, fmt.Errorf("unsupported operator %q", n.op)
}

func (n callNode) eval(values map[string]float64) (float64, error) {
	if n.name == "if" {
		cond, err := n.args[0].eval(values)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return n.args[1].eval(values)
		}
		return n.args[2].eval(values)
	}
	args := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(values)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch n.name {
	case "min":
		result := args[0]
		for _, v := range args[1:] {
			result = math.Min(result, v)
		}
		return result, nil
	case "max":
		result := args[0]
		for _, v := range args[1:] {
			result = math.Max(result, v)
		}
		return result, nil
	case "round":
		digits := 0.0
		if len(args) == 2 {
			digits = math.Trunc(args[1])
		}
		scale := math.Pow(10, digits)
		return math.Floor(args[0]*scale+0.5) / scale, nil
	}
	return 0, fmt.Errorf("unknown function %q", n.name)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type missingValueError struct {
	code string
}

func (e *missingValueError) Error() string {
	return fmt.Sprintf("no value for component %s", e.code)
}
