// Copyright (C) 2017 ScyllaDB

package uuid

import (
	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// Nil is the zero UUID. A null uuid column unmarshals into Nil.
var Nil UUID

// UUID wraps gocql.UUID so that it can be scanned from uuid and timeuuid columns
// and compared by value.
type UUID struct {
	uuid gocql.UUID
}

// Parse creates a new UUID from string.
func Parse(s string) (UUID, error) {
	var u UUID
	err := u.UnmarshalText([]byte(s))
	return u, err
}

// MustParse creates a new UUID from string and panics if s is not an UUID.
func MustParse(s string) UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

func (u UUID) IsNil() bool {
	return u == Nil
}

// MarshalCQL implements gocql.Marshaler.
func (u UUID) MarshalCQL(info gocql.TypeInfo) ([]byte, error) {
	if u == Nil {
		return nil, nil
	}

	switch info.Type() {
	case gocql.TypeUUID, gocql.TypeTimeUUID:
		return u.uuid[:], nil
	default:
		return nil, errors.Errorf("unsupported type %q", info.Type())
	}
}

// UnmarshalCQL implements gocql.Unmarshaler.
func (u *UUID) UnmarshalCQL(info gocql.TypeInfo, data []byte) error {
	if info.Type() != gocql.TypeUUID && info.Type() != gocql.TypeTimeUUID {
		return errors.Errorf("unsupported type %q", info.Type())
	}

	if len(data) == 0 {
		*u = Nil
		return nil
	}

	if len(data) != 16 {
		return errors.Errorf("uuid must be exactly 16 bytes long, got %d", len(data))
	}

	copy(u.uuid[:], data)
	return nil
}

func (u UUID) MarshalText() ([]byte, error) {
	return u.uuid.MarshalText()
}

func (u *UUID) UnmarshalText(text []byte) error {
	return u.uuid.UnmarshalText(text)
}

// String returns the canonical xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form.
func (u UUID) String() string {
	return u.uuid.String()
}
