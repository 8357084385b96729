// Copyright (C) 2025 ScyllaDB

package cqltype

import (
	"strings"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenError
	tokenIdentifier
	tokenQuotedIdentifier
	tokenString
	tokenNumber
	tokenLess
	tokenGreater
	tokenComma
	tokenDot
)

type token struct {
	kind tokenKind
	// text is the raw token as it appears in the input.
	text string
	// value is the unquoted token value.
	value string
	pos   int
	err   string
}

type lexer struct {
	input string
	pos   int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *lexer) lex() token {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}

	start := l.pos
	if start >= len(l.input) {
		return token{kind: tokenEOF, pos: start}
	}

	single := func(kind tokenKind) token {
		l.pos++
		return token{kind: kind, text: l.input[start:l.pos], value: l.input[start:l.pos], pos: start}
	}

	c := l.input[start]
	switch {
	case c == '<':
		return single(tokenLess)
	case c == '>':
		return single(tokenGreater)
	case c == ',':
		return single(tokenComma)
	case c == '.':
		return single(tokenDot)
	case c == '"':
		return l.lexQuoted('"', tokenQuotedIdentifier)
	case c == '\'':
		return l.lexQuoted('\'', tokenString)
	case isDigit(c):
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenNumber, text: l.input[start:l.pos], value: l.input[start:l.pos], pos: start}
	case isLetter(c):
		for l.pos < len(l.input) && (isLetter(l.input[l.pos]) || isDigit(l.input[l.pos])) {
			l.pos++
		}
		return token{kind: tokenIdentifier, text: l.input[start:l.pos], value: l.input[start:l.pos], pos: start}
	default:
		l.pos++
		return token{kind: tokenError, text: l.input[start:l.pos], pos: start, err: "unexpected character"}
	}
}

// lexQuoted reads a quoted token where the quote character is escaped by doubling it.
func (l *lexer) lexQuoted(quote byte, kind tokenKind) token {
	start := l.pos
	l.pos++

	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == quote {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == quote {
				sb.WriteByte(quote)
				l.pos += 2
				continue
			}
			l.pos++
			if sb.Len() == 0 {
				return token{kind: tokenError, text: l.input[start:l.pos], pos: start, err: "empty quoted name"}
			}
			return token{kind: kind, text: l.input[start:l.pos], value: sb.String(), pos: start}
		}
		sb.WriteByte(c)
		l.pos++
	}

	return token{kind: tokenError, text: l.input[start:], pos: start, err: "unterminated quoted name"}
}
