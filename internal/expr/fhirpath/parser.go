package fhirpath

import (
	"encoding/json"

	"github.com/roach88/fhirflat/internal/expr"
)

type node interface{}

type literalNode struct {
	value any
}

// emptyNode is the {} literal.
type emptyNode struct{}

type thisNode struct{}

type indexVarNode struct{}

type variableNode struct {
	name string
}

// memberNode navigates to a child field. A nil target means the input
// collection of the current evaluation context.
type memberNode struct {
	target node
	name   string
}

// functionNode invokes a function on target (nil means the input collection).
type functionNode struct {
	target node
	name   string
	args   []node
}

type indexerNode struct {
	target node
	index  node
}

type unaryNode struct {
	op      tokenType
	operand node
}

type binaryNode struct {
	op    string
	left  node
	right node
}

type parserState struct {
	tokens []token
	pos    int
}

func parse(input string) (node, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	state := parserState{tokens: tokens}
	if state.current().typ == tokenEOF {
		return nil, expr.InvalidExpression("expression is empty")
	}

	root, err := state.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := state.current(); tok.typ != tokenEOF {
		return nil, expr.InvalidExpression("unexpected token at position %d", tok.pos)
	}

	return root, nil
}

// binary precedence levels, lowest first.
var precedence = [][]string{
	{"implies"},
	{"or", "xor"},
	{"and"},
	{"in", "contains"},
	{"=", "!="},
	{"<", "<=", ">", ">="},
	{"|"},
	{"+", "-", "&"},
	{"*", "/", "div", "mod"},
}

func (p *parserState) parseExpression() (node, error) {
	return p.parseLevel(0)
}

func (p *parserState) parseLevel(level int) (node, error) {
	if level >= len(precedence) {
		return p.parseUnary()
	}

	left, err := p.parseLevel(level + 1)
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.operatorAt(precedence[level])
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseLevel(level + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

// operatorAt reports whether the current token is one of ops. Keyword
// operators are unquoted identifiers.
func (p *parserState) operatorAt(ops []string) (string, bool) {
	tok := p.current()
	var op string
	switch tok.typ {
	case tokenIdentifier:
		if tok.quoted {
			return "", false
		}
		op = tok.literal
	case tokenEqual:
		op = "="
	case tokenNotEqual:
		op = "!="
	case tokenLess:
		op = "<"
	case tokenLessEqual:
		op = "<="
	case tokenGreater:
		op = ">"
	case tokenGreaterEqual:
		op = ">="
	case tokenPipe:
		op = "|"
	case tokenPlus:
		op = "+"
	case tokenMinus:
		op = "-"
	case tokenAmp:
		op = "&"
	case tokenStar:
		op = "*"
	case tokenSlash:
		op = "/"
	default:
		return "", false
	}
	for _, candidate := range ops {
		if candidate == op {
			return op, true
		}
	}
	return "", false
}

func (p *parserState) parseUnary() (node, error) {
	switch p.current().typ {
	case tokenMinus, tokenPlus:
		op := p.advance().typ
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parseInvocation()
}

// parseInvocation parses a term followed by any number of .member,
// .function(...) and [index] suffixes.
func (p *parserState) parseInvocation() (node, error) {
	current, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		switch p.current().typ {
		case tokenDot:
			p.advance()
			tok := p.current()
			if tok.typ != tokenIdentifier {
				return nil, expr.InvalidExpression("expected identifier after '.' at position %d", tok.pos)
			}
			p.advance()
			if p.current().typ == tokenLParen {
				args, err := p.parseArguments()
				if err != nil {
					return nil, err
				}
				current = functionNode{target: current, name: tok.literal, args: args}
				continue
			}
			current = memberNode{target: current, name: tok.literal}
		case tokenLBracket:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if p.current().typ != tokenRBracket {
				return nil, expr.InvalidExpression("missing closing ']' at position %d", p.current().pos)
			}
			p.advance()
			current = indexerNode{target: current, index: index}
		default:
			return current, nil
		}
	}
}

func (p *parserState) parseTerm() (node, error) {
	tok := p.current()
	switch tok.typ {
	case tokenIdentifier:
		p.advance()
		if p.current().typ == tokenLParen {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			return functionNode{name: tok.literal, args: args}, nil
		}
		return memberNode{name: tok.literal}, nil
	case tokenNumber:
		p.advance()
		return literalNode{value: json.Number(tok.literal)}, nil
	case tokenString:
		p.advance()
		return literalNode{value: tok.literal}, nil
	case tokenTrue:
		p.advance()
		return literalNode{value: true}, nil
	case tokenFalse:
		p.advance()
		return literalNode{value: false}, nil
	case tokenVariable:
		p.advance()
		return variableNode{name: tok.literal}, nil
	case tokenThis:
		p.advance()
		return thisNode{}, nil
	case tokenIndex:
		p.advance()
		return indexVarNode{}, nil
	case tokenLBrace:
		p.advance()
		if p.current().typ != tokenRBrace {
			return nil, expr.InvalidExpression("expected '}' at position %d", p.current().pos)
		}
		p.advance()
		return emptyNode{}, nil
	case tokenLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.current().typ != tokenRParen {
			return nil, expr.InvalidExpression("missing closing ')' at position %d", p.current().pos)
		}
		p.advance()
		return inner, nil
	default:
		return nil, expr.InvalidExpression("unexpected token at position %d", tok.pos)
	}
}

func (p *parserState) parseArguments() ([]node, error) {
	// current token is '('
	p.advance()
	var args []node
	if p.current().typ == tokenRParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		switch p.current().typ {
		case tokenComma:
			p.advance()
		case tokenRParen:
			p.advance()
			return args, nil
		default:
			return nil, expr.InvalidExpression("expected ',' or ')' at position %d", p.current().pos)
		}
	}
}

func (p *parserState) current() token {
	if p.pos >= len(p.tokens) {
		return token{typ: tokenEOF, pos: len(p.tokens)}
	}
	return p.tokens[p.pos]
}

func (p *parserState) advance() token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}
