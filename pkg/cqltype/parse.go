// Copyright (C) 2025 ScyllaDB

package cqltype

import (
	"fmt"
	"strconv"
	"strings"
)

var primitiveTypes = map[string]struct{}{
	"ascii":     {},
	"bigint":    {},
	"blob":      {},
	"boolean":   {},
	"counter":   {},
	"date":      {},
	"decimal":   {},
	"double":    {},
	"duration":  {},
	"empty":     {},
	"float":     {},
	"inet":      {},
	"int":       {},
	"smallint":  {},
	"text":      {},
	"time":      {},
	"timestamp": {},
	"timeuuid":  {},
	"tinyint":   {},
	"uuid":      {},
	"varchar":   {},
	"varint":    {},
}

const (
	keywordFrozen = "frozen"
	keywordList   = "list"
	keywordSet    = "set"
	keywordMap    = "map"
	keywordTuple  = "tuple"
	keywordVector = "vector"
)

func isParameterized(name string) bool {
	switch name {
	case keywordFrozen, keywordList, keywordSet, keywordMap, keywordTuple, keywordVector:
		return true
	default:
		return false
	}
}

// IsPrimitive reports whether name is a native CQL type.
func IsPrimitive(name string) bool {
	_, ok := primitiveTypes[strings.ToLower(name)]
	return ok
}

func isReserved(name string) bool {
	return IsPrimitive(name) || isParameterized(name)
}

// ParseError describes why a type string couldn't be parsed.
type ParseError struct {
	// Input is the complete type string.
	Input string
	// Pos is the byte offset of Offending within Input.
	Pos int
	// Offending is the part of the input the parser rejected. It is empty
	// when the input ended prematurely.
	Offending string
	Reason    string
}

func (e *ParseError) Error() string {
	near := strconv.Quote(e.Offending)
	if len(e.Offending) == 0 {
		near = "end of input"
	}
	return fmt.Sprintf("can't parse type %q at position %d near %s: %s", e.Input, e.Pos, near, e.Reason)
}

// Parse parses a CQL type string. Whitespace between tokens is ignored and
// frozen<...> wrappers are removed. Nesting depth is not limited.
func Parse(s string) (*Type, error) {
	p := &parser{lexer: lexer{input: s}}

	t, err := p.parseType()
	if err != nil {
		return nil, err
	}

	tok := p.next()
	if tok.kind != tokenEOF {
		return nil, p.errorf(tok.pos, s[tok.pos:], "unexpected trailing input")
	}

	return t, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) *Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	lexer

	peeked *token
}

func (p *parser) next() token {
	if p.peeked != nil {
		tok := *p.peeked
		p.peeked = nil
		return tok
	}
	return p.lex()
}

func (p *parser) peek() token {
	if p.peeked == nil {
		tok := p.lex()
		p.peeked = &tok
	}
	return *p.peeked
}

func (p *parser) errorf(pos int, offending string, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Input:     p.input,
		Pos:       pos,
		Offending: offending,
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (p *parser) unexpected(tok token, expected string) *ParseError {
	if tok.kind == tokenEOF {
		return p.errorf(tok.pos, "", "expected %s", expected)
	}
	return p.errorf(tok.pos, tok.text, "expected %s", expected)
}

func (p *parser) expect(kind tokenKind, expected string) (token, error) {
	tok := p.next()
	if tok.kind == tokenError {
		return tok, p.errorf(tok.pos, tok.text, "%s", tok.err)
	}
	if tok.kind != kind {
		return tok, p.unexpected(tok, expected)
	}
	return tok, nil
}

func (p *parser) parseType() (*Type, error) {
	tok := p.next()
	switch tok.kind {
	case tokenError:
		return nil, p.errorf(tok.pos, tok.text, "%s", tok.err)

	case tokenString:
		return Custom(tok.value), nil

	case tokenQuotedIdentifier:
		return p.parseUserDefined(tok.value, tok)

	case tokenIdentifier:
		name := strings.ToLower(tok.value)

		if p.peek().kind == tokenLess {
			return p.parseParameterized(name, tok)
		}

		if p.peek().kind == tokenDot {
			return p.parseUserDefined(name, tok)
		}

		if IsPrimitive(name) {
			return Primitive(name), nil
		}

		if isParameterized(name) {
			return nil, p.errorf(tok.pos, tok.text, "type %q requires type parameters", name)
		}

		return UserDefined("", name), nil

	default:
		return nil, p.unexpected(tok, "type")
	}
}

// parseUserDefined handles both "name" and "keyspace.name" references.
func (p *parser) parseUserDefined(name string, start token) (*Type, error) {
	if p.peek().kind != tokenDot {
		return UserDefined("", name), nil
	}
	p.next()

	tok := p.next()
	switch tok.kind {
	case tokenIdentifier:
		t := UserDefined(name, strings.ToLower(tok.value))
		t.Qualified = true
		return t, nil
	case tokenQuotedIdentifier:
		t := UserDefined(name, tok.value)
		t.Qualified = true
		return t, nil
	case tokenError:
		return nil, p.errorf(tok.pos, tok.text, "%s", tok.err)
	default:
		return nil, p.unexpected(tok, fmt.Sprintf("type name after keyspace %q", start.value))
	}
}

func (p *parser) parseParameterized(name string, start token) (*Type, error) {
	if !isParameterized(name) {
		return nil, p.errorf(start.pos, start.text, "type %q doesn't take type parameters", name)
	}

	// Consume '<'.
	p.next()

	if name == keywordVector {
		return p.parseVectorArgs(start)
	}

	args, end, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	offending := p.input[start.pos:end]

	switch name {
	case keywordFrozen:
		if len(args) != 1 {
			return nil, p.errorf(start.pos, offending, "frozen takes exactly 1 type parameter, got %d", len(args))
		}
		return args[0], nil

	case keywordList:
		if len(args) != 1 {
			return nil, p.errorf(start.pos, offending, "list takes exactly 1 type parameter, got %d", len(args))
		}
		return List(args[0]), nil

	case keywordSet:
		if len(args) != 1 {
			return nil, p.errorf(start.pos, offending, "set takes exactly 1 type parameter, got %d", len(args))
		}
		return Set(args[0]), nil

	case keywordMap:
		if len(args) != 2 {
			return nil, p.errorf(start.pos, offending, "map takes exactly 2 type parameters, got %d", len(args))
		}
		return Map(args[0], args[1]), nil

	case keywordTuple:
		return Tuple(args...), nil

	default:
		return nil, p.errorf(start.pos, offending, "unsupported parameterized type %q", name)
	}
}

// parseArgs parses "type (',' type)* '>'" and returns the offset just past '>'.
func (p *parser) parseArgs() ([]*Type, int, error) {
	var args []*Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, 0, err
		}
		args = append(args, t)

		tok := p.next()
		switch tok.kind {
		case tokenComma:
			continue
		case tokenGreater:
			return args, tok.pos + 1, nil
		case tokenError:
			return nil, 0, p.errorf(tok.pos, tok.text, "%s", tok.err)
		default:
			return nil, 0, p.unexpected(tok, `"," or ">"`)
		}
	}
}

func (p *parser) parseVectorArgs(start token) (*Type, error) {
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}

	_, err = p.expect(tokenComma, `"," followed by vector dimension`)
	if err != nil {
		return nil, err
	}

	dimTok, err := p.expect(tokenNumber, "vector dimension")
	if err != nil {
		return nil, err
	}

	endTok, err := p.expect(tokenGreater, `">"`)
	if err != nil {
		return nil, err
	}

	dim, err := strconv.Atoi(dimTok.value)
	if err != nil || dim <= 0 {
		return nil, p.errorf(start.pos, p.input[start.pos:endTok.pos+1], "vector dimension must be a positive integer, got %q", dimTok.value)
	}

	return Vector(elem, dim), nil
}
