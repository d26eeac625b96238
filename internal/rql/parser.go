package rql

import (
	"fmt"
	"strings"
)

// MaxDepth bounds operator nesting so a hostile query cannot exhaust the stack.
const MaxDepth = 32

// Parse turns a query string into an operator tree. Top-level terms
// separated by ',' or '&' are combined with and; '|' binds looser than '&'.
func Parse(query string) (*Node, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseSequence(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t.kind)
	}
	return n, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	t := p.next()
	if t.kind != k {
		return t, p.errorf(t, "expected %s, found %s", k, t.kind)
	}
	return t, nil
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s at %d", ErrInvalidQuery, fmt.Sprintf(format, args...), t.pos)
}

// parseSequence handles a comma separated list of or-expressions, used at
// the top level and inside bare parenthesized groups.
func (p *parser) parseSequence(depth int) (*Node, error) {
	first, err := p.parseOr(depth)
	if err != nil {
		return nil, err
	}
	terms := []*Node{first}
	for p.peek().kind == tokComma {
		p.next()
		n, err := p.parseOr(depth)
		if err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	return combine(OpAnd, terms), nil
}

func (p *parser) parseOr(depth int) (*Node, error) {
	first, err := p.parseAnd(depth)
	if err != nil {
		return nil, err
	}
	terms := []*Node{first}
	for p.peek().kind == tokPipe {
		p.next()
		n, err := p.parseAnd(depth)
		if err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	return combine(OpOr, terms), nil
}

func (p *parser) parseAnd(depth int) (*Node, error) {
	first, err := p.parseTerm(depth)
	if err != nil {
		return nil, err
	}
	terms := []*Node{first}
	for p.peek().kind == tokAmp {
		p.next()
		n, err := p.parseTerm(depth)
		if err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	return combine(OpAnd, terms), nil
}

func (p *parser) parseTerm(depth int) (*Node, error) {
	if depth >= MaxDepth {
		return nil, p.errorf(p.peek(), "query nested deeper than %d", MaxDepth)
	}
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		n, err := p.parseSequence(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return n, nil
	case tokWord:
		return p.parseCall(depth)
	}
	return nil, p.errorf(t, "unexpected %s", t.kind)
}

func (p *parser) parseCall(depth int) (*Node, error) {
	name := p.next()
	op := Op(strings.ToLower(name.text))
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}

	switch op {
	case OpAnd, OpOr:
		var children []*Node
		for {
			c, err := p.parseOr(depth + 1)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &Node{Op: op, Children: children}, nil

	case OpNot:
		c, err := p.parseOr(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &Node{Op: OpNot, Children: []*Node{c}}, nil

	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpILike:
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &Node{Op: op, Field: field, Values: []Value{v}}, nil

	case OpIn, OpOut:
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		values, err := p.parseValueList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &Node{Op: op, Field: field, Values: values}, nil
	}
	return nil, p.errorf(name, "unsupported operator %q", name.text)
}

func (p *parser) parseField() (string, error) {
	t, err := p.expect(tokWord)
	if err != nil {
		return "", err
	}
	return t.text, nil
}

// parseValueList accepts either "(a,b,c)" or a bare run "a,b,c" up to the
// closing parenthesis of the enclosing call.
func (p *parser) parseValueList() ([]Value, error) {
	grouped := false
	if p.peek().kind == tokLParen {
		p.next()
		grouped = true
	}
	var values []Value
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if grouped {
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (p *parser) parseValue() (Value, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return Value{Text: t.text, Quoted: true}, nil
	case tokWord:
		if p.peek().kind == tokLParen {
			return p.parseLiteralCall(t)
		}
		return Value{Text: t.text}, nil
	}
	return Value{}, p.errorf(t, "expected value, found %s", t.kind)
}

func (p *parser) parseLiteralCall(name token) (Value, error) {
	p.next()
	if _, err := p.expect(tokRParen); err != nil {
		return Value{}, err
	}
	switch strings.ToLower(name.text) {
	case "null":
		return Value{Kind: LiteralNull}, nil
	case "true":
		return Value{Text: "true", Kind: LiteralTrue}, nil
	case "false":
		return Value{Text: "false", Kind: LiteralFalse}, nil
	}
	return Value{}, p.errorf(name, "unknown literal %s()", name.text)
}

func combine(op Op, terms []*Node) *Node {
	if len(terms) == 1 {
		return terms[0]
	}
	return &Node{Op: op, Children: terms}
}
