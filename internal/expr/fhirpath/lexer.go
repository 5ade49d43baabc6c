package fhirpath

import (
	"strings"
	"unicode"

	"github.com/roach88/fhirflat/internal/expr"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdentifier
	tokenNumber
	tokenString
	tokenTrue
	tokenFalse
	tokenVariable
	tokenThis
	tokenIndex
	tokenDot
	tokenComma
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenLBrace
	tokenRBrace
	tokenEqual
	tokenNotEqual
	tokenLess
	tokenLessEqual
	tokenGreater
	tokenGreaterEqual
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenAmp
	tokenPipe
)

type token struct {
	typ     tokenType
	literal string
	pos     int

	// quoted marks a backtick-delimited identifier, which is never a keyword.
	quoted bool
}

func lex(input string) ([]token, error) {
	tokens := make([]token, 0, len(input)/2)
	pos := 0

	for pos < len(input) {
		r := rune(input[pos])
		if unicode.IsSpace(r) {
			pos++
			continue
		}

		if isIdentifierStart(r) {
			start := pos
			pos++
			for pos < len(input) && isIdentifierPart(rune(input[pos])) {
				pos++
			}
			literal := input[start:pos]
			switch literal {
			case "true":
				tokens = append(tokens, token{typ: tokenTrue, pos: start})
			case "false":
				tokens = append(tokens, token{typ: tokenFalse, pos: start})
			default:
				tokens = append(tokens, token{typ: tokenIdentifier, literal: literal, pos: start})
			}
			continue
		}

		if input[pos] >= '0' && input[pos] <= '9' {
			start := pos
			for pos < len(input) && input[pos] >= '0' && input[pos] <= '9' {
				pos++
			}
			// A dot only belongs to the number when digits follow it;
			// otherwise it is an invocation (1.toString()).
			if pos+1 < len(input) && input[pos] == '.' && input[pos+1] >= '0' && input[pos+1] <= '9' {
				pos++
				for pos < len(input) && input[pos] >= '0' && input[pos] <= '9' {
					pos++
				}
			}
			tokens = append(tokens, token{typ: tokenNumber, literal: input[start:pos], pos: start})
			continue
		}

		switch input[pos] {
		case '\'':
			literal, next, err := lexQuoted(input, pos, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenString, literal: literal, pos: pos})
			pos = next
			continue
		case '`':
			literal, next, err := lexQuoted(input, pos, '`')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenIdentifier, literal: literal, pos: pos, quoted: true})
			pos = next
			continue
		case '%':
			start := pos
			pos++
			if pos < len(input) && (input[pos] == '`' || input[pos] == '\'') {
				literal, next, err := lexQuoted(input, pos, input[pos])
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, token{typ: tokenVariable, literal: literal, pos: start})
				pos = next
				continue
			}
			nameStart := pos
			for pos < len(input) && isIdentifierPart(rune(input[pos])) {
				pos++
			}
			if pos == nameStart {
				return nil, expr.InvalidExpression("missing variable name at position %d", start)
			}
			tokens = append(tokens, token{typ: tokenVariable, literal: input[nameStart:pos], pos: start})
			continue
		case '$':
			start := pos
			pos++
			for pos < len(input) && isIdentifierPart(rune(input[pos])) {
				pos++
			}
			switch input[start:pos] {
			case "$this":
				tokens = append(tokens, token{typ: tokenThis, pos: start})
			case "$index":
				tokens = append(tokens, token{typ: tokenIndex, pos: start})
			default:
				return nil, expr.InvalidExpression("unknown special variable %q at position %d", input[start:pos], start)
			}
			continue
		case '=':
			tokens = append(tokens, token{typ: tokenEqual, pos: pos})
		case '!':
			if pos+1 < len(input) && input[pos+1] == '=' {
				tokens = append(tokens, token{typ: tokenNotEqual, pos: pos})
				pos += 2
				continue
			}
			return nil, expr.InvalidExpression("unexpected '!' at position %d", pos)
		case '<':
			if pos+1 < len(input) && input[pos+1] == '=' {
				tokens = append(tokens, token{typ: tokenLessEqual, pos: pos})
				pos += 2
				continue
			}
			tokens = append(tokens, token{typ: tokenLess, pos: pos})
		case '>':
			if pos+1 < len(input) && input[pos+1] == '=' {
				tokens = append(tokens, token{typ: tokenGreaterEqual, pos: pos})
				pos += 2
				continue
			}
			tokens = append(tokens, token{typ: tokenGreater, pos: pos})
		case '.':
			tokens = append(tokens, token{typ: tokenDot, pos: pos})
		case ',':
			tokens = append(tokens, token{typ: tokenComma, pos: pos})
		case '(':
			tokens = append(tokens, token{typ: tokenLParen, pos: pos})
		case ')':
			tokens = append(tokens, token{typ: tokenRParen, pos: pos})
		case '[':
			tokens = append(tokens, token{typ: tokenLBracket, pos: pos})
		case ']':
			tokens = append(tokens, token{typ: tokenRBracket, pos: pos})
		case '{':
			tokens = append(tokens, token{typ: tokenLBrace, pos: pos})
		case '}':
			tokens = append(tokens, token{typ: tokenRBrace, pos: pos})
		case '+':
			tokens = append(tokens, token{typ: tokenPlus, pos: pos})
		case '-':
			tokens = append(tokens, token{typ: tokenMinus, pos: pos})
		case '*':
			tokens = append(tokens, token{typ: tokenStar, pos: pos})
		case '/':
			tokens = append(tokens, token{typ: tokenSlash, pos: pos})
		case '&':
			tokens = append(tokens, token{typ: tokenAmp, pos: pos})
		case '|':
			tokens = append(tokens, token{typ: tokenPipe, pos: pos})
		default:
			return nil, expr.InvalidExpression("unexpected character %q at position %d", input[pos], pos)
		}
		pos++
	}

	tokens = append(tokens, token{typ: tokenEOF, pos: len(input)})
	return tokens, nil
}

func isIdentifierStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentifierPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// lexQuoted reads a quoted string or delimited identifier starting at the
// opening quote and returns the unescaped text and the position after the
// closing quote.
func lexQuoted(input string, start int, quote byte) (string, int, error) {
	var b strings.Builder

	for pos := start + 1; pos < len(input); pos++ {
		ch := input[pos]
		if ch == quote {
			return b.String(), pos + 1, nil
		}

		if ch == '\\' {
			pos++
			if pos >= len(input) {
				return "", 0, expr.InvalidExpression("unterminated escape sequence at position %d", start)
			}
			switch input[pos] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'f':
				b.WriteByte('\f')
			default:
				b.WriteByte(input[pos])
			}
			continue
		}

		b.WriteByte(ch)
	}

	return "", 0, expr.InvalidExpression("unterminated string at position %d", start)
}
