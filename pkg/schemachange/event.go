// Copyright (C) 2025 ScyllaDB

package schemachange

import (
	"fmt"
	"strings"
)

type Change string

const (
	ChangeCreated Change = "CREATED"
	ChangeUpdated Change = "UPDATED"
	ChangeDropped Change = "DROPPED"
)

type Target string

const (
	TargetKeyspace  Target = "KEYSPACE"
	TargetTable     Target = "TABLE"
	TargetType      Target = "TYPE"
	TargetFunction  Target = "FUNCTION"
	TargetAggregate Target = "AGGREGATE"
	// TargetVersion is reported when the cluster schema version moved without a
	// more specific notification, e.g. after a reconnect or from polling.
	TargetVersion Target = "VERSION"
)

// Event notifies that the cluster schema changed.
type Event struct {
	Change    Change
	Target    Target
	Keyspace  string
	Name      string
	Arguments []string
}

// NewVersionEvent returns an event asking for a full refresh.
func NewVersionEvent() Event {
	return Event{
		Change: ChangeUpdated,
		Target: TargetVersion,
	}
}

func (e Event) String() string {
	var sb strings.Builder
	sb.WriteString(string(e.Change))
	sb.WriteByte(' ')
	sb.WriteString(string(e.Target))

	switch {
	case len(e.Keyspace) != 0 && len(e.Name) != 0:
		fmt.Fprintf(&sb, " %s.%s", e.Keyspace, e.Name)
	case len(e.Keyspace) != 0:
		fmt.Fprintf(&sb, " %s", e.Keyspace)
	}

	if e.Target == TargetFunction || e.Target == TargetAggregate {
		fmt.Fprintf(&sb, "(%s)", strings.Join(e.Arguments, ", "))
	}

	return sb.String()
}

func parseChange(s string) (Change, error) {
	switch c := Change(s); c {
	case ChangeCreated, ChangeUpdated, ChangeDropped:
		return c, nil
	default:
		return "", fmt.Errorf("unknown schema change %q", s)
	}
}
