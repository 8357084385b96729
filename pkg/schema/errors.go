// Copyright (C) 2025 ScyllaDB

package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrOrphan       = errors.New("parent object doesn't exist")
	ErrDuplicate    = errors.New("duplicate definition")
)

// DecodeError reports a single system_schema row that couldn't be decoded
// or attached to the schema tree.
type DecodeError struct {
	// Object is the kind of the record, e.g. "table" or "column".
	Object   string
	Keyspace string
	Table    string
	Name     string
	// Field is the offending row field, if known.
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Keyspace, e.Table, e.Name} {
		if len(p) != 0 {
			parts = append(parts, p)
		}
	}

	var sb strings.Builder
	sb.WriteString("can't decode ")
	sb.WriteString(e.Object)
	if len(parts) != 0 {
		fmt.Fprintf(&sb, " %q", strings.Join(parts, "."))
	}
	if len(e.Field) != 0 {
		fmt.Fprintf(&sb, " field %q", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
