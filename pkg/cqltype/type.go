// Copyright (C) 2025 ScyllaDB

// Package cqltype models CQL column types and parses their textual form as
// stored in system_schema (e.g. "map<frozen<list<varchar>>, varchar>").
package cqltype

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies the shape of a Type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindList
	KindSet
	KindMap
	KindTuple
	KindUserDefined
	KindVector
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	case KindTuple:
		return "tuple"
	case KindUserDefined:
		return "udt"
	case KindVector:
		return "vector"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Field is a single named field of a user defined type.
type Field struct {
	Name string `json:"name"`
	Type *Type  `json:"type"`
}

// Type is a parsed CQL type. Frozen is never represented; it is a storage
// modifier that doesn't change the shape of a type.
//
// Values returned by Parse and by the schema builder are shared between
// readers and must not be modified.
type Type struct {
	Kind Kind `json:"kind"`

	// Name holds the primitive name, the user defined type name or the custom class name.
	Name string `json:"name,omitempty"`

	// Keyspace of a user defined type. It is either given explicitly in the
	// type string (Qualified is then set) or filled in during schema resolution.
	Keyspace  string `json:"keyspace,omitempty"`
	Qualified bool   `json:"qualified,omitempty"`

	// Elements holds the element type of a list, set or vector, the key and
	// value types of a map and the component types of a tuple.
	Elements []*Type `json:"elements,omitempty"`

	// Dimension is the fixed length of a vector.
	Dimension int `json:"dimension,omitempty"`

	// Fields of a resolved user defined type, in declaration order.
	Fields []Field `json:"fields,omitempty"`
}

func Primitive(name string) *Type {
	return &Type{Kind: KindPrimitive, Name: strings.ToLower(name)}
}

func List(elem *Type) *Type {
	return &Type{Kind: KindList, Elements: []*Type{elem}}
}

func Set(elem *Type) *Type {
	return &Type{Kind: KindSet, Elements: []*Type{elem}}
}

func Map(key, value *Type) *Type {
	return &Type{Kind: KindMap, Elements: []*Type{key, value}}
}

func Tuple(elems ...*Type) *Type {
	return &Type{Kind: KindTuple, Elements: elems}
}

func Vector(elem *Type, dimension int) *Type {
	return &Type{Kind: KindVector, Elements: []*Type{elem}, Dimension: dimension}
}

func Custom(class string) *Type {
	return &Type{Kind: KindCustom, Name: class}
}

// UserDefined returns a reference to a user defined type. Fields may be
// empty for a reference that wasn't resolved against its keyspace yet.
func UserDefined(keyspace, name string, fields ...Field) *Type {
	return &Type{Kind: KindUserDefined, Keyspace: keyspace, Name: name, Fields: fields}
}

// IsCollection reports whether t is a list, set or map.
func (t *Type) IsCollection() bool {
	switch t.Kind {
	case KindList, KindSet, KindMap:
		return true
	default:
		return false
	}
}

// Elem returns the element type of a list, set or vector.
func (t *Type) Elem() *Type {
	switch t.Kind {
	case KindList, KindSet, KindVector:
		return t.Elements[0]
	default:
		return nil
	}
}

// Key returns the key type of a map.
func (t *Type) Key() *Type {
	if t.Kind != KindMap {
		return nil
	}
	return t.Elements[0]
}

// Value returns the value type of a map.
func (t *Type) Value() *Type {
	if t.Kind != KindMap {
		return nil
	}
	return t.Elements[1]
}

// String renders the canonical form of t: frozen is dropped, keywords are
// lower case and arguments are separated by ", ".
func (t *Type) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *Type) write(sb *strings.Builder) {
	if t == nil {
		sb.WriteString("<nil>")
		return
	}

	switch t.Kind {
	case KindPrimitive:
		sb.WriteString(t.Name)

	case KindList, KindSet, KindMap, KindTuple:
		sb.WriteString(t.Kind.String())
		writeArgs(sb, t.Elements)

	case KindVector:
		sb.WriteString("vector<")
		t.Elements[0].write(sb)
		sb.WriteString(", ")
		sb.WriteString(strconv.Itoa(t.Dimension))
		sb.WriteByte('>')

	case KindUserDefined:
		if t.Qualified && len(t.Keyspace) != 0 {
			sb.WriteString(quoteIdentifier(t.Keyspace))
			sb.WriteByte('.')
		}
		sb.WriteString(quoteIdentifier(t.Name))

	case KindCustom:
		sb.WriteByte('\'')
		sb.WriteString(strings.ReplaceAll(t.Name, "'", "''"))
		sb.WriteByte('\'')

	default:
		sb.WriteString(t.Kind.String())
	}
}

func writeArgs(sb *strings.Builder, args []*Type) {
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		a.write(sb)
	}
	sb.WriteByte('>')
}

var unquotedIdentifierRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func quoteIdentifier(name string) string {
	if unquotedIdentifierRe.MatchString(name) && !isReserved(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Equal reports whether t and other describe the same type.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}

	if t.Kind != other.Kind ||
		t.Name != other.Name ||
		t.Keyspace != other.Keyspace ||
		t.Qualified != other.Qualified ||
		t.Dimension != other.Dimension ||
		len(t.Elements) != len(other.Elements) ||
		len(t.Fields) != len(other.Fields) {
		return false
	}

	for i := range t.Elements {
		if !t.Elements[i].Equal(other.Elements[i]) {
			return false
		}
	}

	for i := range t.Fields {
		if t.Fields[i].Name != other.Fields[i].Name || !t.Fields[i].Type.Equal(other.Fields[i].Type) {
			return false
		}
	}

	return true
}

// maxResolveDepth bounds user defined type expansion. CQL forbids recursive
// types, the limit only protects against inconsistent system tables.
const maxResolveDepth = 64

// ResolveFunc looks up the definition of a user defined type. The returned
// type must be of KindUserDefined and carry its fields.
type ResolveFunc func(keyspace, name string) (*Type, bool)

// Resolve returns a copy of t where every user defined type reference is
// replaced by its definition. References without a keyspace qualifier are
// looked up in keyspace. Unknown references are kept as they are.
func (t *Type) Resolve(keyspace string, lookup ResolveFunc) *Type {
	return t.resolve(keyspace, lookup, 0)
}

func (t *Type) resolve(keyspace string, lookup ResolveFunc, depth int) *Type {
	if t == nil || depth > maxResolveDepth {
		return t
	}

	switch t.Kind {
	case KindPrimitive, KindCustom:
		return t

	case KindUserDefined:
		ks := t.Keyspace
		if len(ks) == 0 {
			ks = keyspace
		}
		def, ok := lookup(ks, t.Name)
		if !ok {
			return t
		}
		resolved := &Type{
			Kind:      KindUserDefined,
			Name:      t.Name,
			Keyspace:  ks,
			Qualified: t.Qualified,
			Fields:    make([]Field, 0, len(def.Fields)),
		}
		for _, f := range def.Fields {
			resolved.Fields = append(resolved.Fields, Field{
				Name: f.Name,
				Type: f.Type.resolve(ks, lookup, depth+1),
			})
		}
		return resolved

	default:
		resolved := *t
		resolved.Elements = make([]*Type, 0, len(t.Elements))
		for _, e := range t.Elements {
			resolved.Elements = append(resolved.Elements, e.resolve(keyspace, lookup, depth+1))
		}
		return &resolved
	}
}

// Walk calls fn for t and every type nested in it, depth first. Fields of
// resolved user defined types are visited too.
func (t *Type) Walk(fn func(*Type)) {
	if t == nil {
		return
	}
	fn(t)
	for _, e := range t.Elements {
		e.Walk(fn)
	}
	for _, f := range t.Fields {
		f.Type.Walk(fn)
	}
}
