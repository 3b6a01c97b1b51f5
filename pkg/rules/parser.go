package rules

import (
	"fmt"
	"strings"

	"github.com/lattice-health/physioreason/pkg/model"
)

// Parse compiles a `when` expression string into an AST. It rejects any
// input outside the fixed grammar rather than guessing intent.
func Parse(expr string) (Expr, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("rules: unexpected trailing token %q", p.peek().text)
	}
	return e, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

// parseOr := parseAnd (OR parseAnd)*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orExpr{left: left, right: right}
	}
	return left, nil
}

// parseAnd := parseUnary (AND parseUnary)*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andExpr{left: left, right: right}
	}
	return left, nil
}

// parseUnary := NOT parseUnary | parseAtom
func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokNot {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{x: x}, nil
	}
	return p.parseAtom()
}

// parseAtom := "(" parseOr ")" | literal | ctx.<flag> | <node_id>.up | <node_id>.down
func (p *parser) parseAtom() (Expr, error) {
	tok := p.peek()
	switch tok.kind {
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("rules: expected closing paren, got %q", p.peek().text)
		}
		p.advance()
		return inner, nil
	case tokIdent:
		p.advance()
		return parseIdentAtom(tok.text)
	default:
		return nil, fmt.Errorf("rules: expected atom, got %q", tok.text)
	}
}

func parseIdentAtom(text string) (Expr, error) {
	switch strings.ToLower(text) {
	case "true":
		return &literalExpr{value: true}, nil
	case "false":
		return &literalExpr{value: false}, nil
	}

	if strings.HasPrefix(text, "ctx.") {
		flag := strings.TrimPrefix(text, "ctx.")
		if flag == "" {
			return nil, fmt.Errorf("rules: %q is missing a context flag name", text)
		}
		return &ctxAtom{flag: flag}, nil
	}

	if strings.HasSuffix(text, ".up") {
		nodeID := strings.TrimSuffix(text, ".up")
		if nodeID == "" {
			return nil, fmt.Errorf("rules: %q is missing a node id", text)
		}
		return &nodeDirAtom{nodeID: nodeID, dir: model.DirUp}, nil
	}
	if strings.HasSuffix(text, ".down") {
		nodeID := strings.TrimSuffix(text, ".down")
		if nodeID == "" {
			return nil, fmt.Errorf("rules: %q is missing a node id", text)
		}
		return &nodeDirAtom{nodeID: nodeID, dir: model.DirDown}, nil
	}

	return nil, fmt.Errorf("rules: %q is not a valid atom (expected ctx.<flag>, <node_id>.up, <node_id>.down, or a literal)", text)
}
