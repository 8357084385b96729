// Copyright (C) 2025 ScyllaDB

package cqlsource

import (
	"errors"
	"fmt"
)

var ErrUnsupportedVersion = errors.New("unsupported release version")

// QueryError reports a failed read of a system table.
type QueryError struct {
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("can't query %s: %v", e.Table, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
