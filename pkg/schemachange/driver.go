// Copyright (C) 2025 ScyllaDB

package schemachange

import (
	"github.com/gocql/gocql/events"
)

// FromDriverEvent converts a driver event. It returns false for events that
// don't affect the schema. A recreated control connection may have missed
// notifications, so it is converted into a full refresh request.
func FromDriverEvent(ev events.Event) (Event, bool) {
	var (
		res Event
		err error
	)

	switch e := ev.(type) {
	case *events.SchemaChangeKeyspaceEvent:
		res = Event{Target: TargetKeyspace, Keyspace: e.Keyspace}
		res.Change, err = parseChange(e.Change)
	case *events.SchemaChangeTableEvent:
		res = Event{Target: TargetTable, Keyspace: e.Keyspace, Name: e.Table}
		res.Change, err = parseChange(e.Change)
	case *events.SchemaChangeTypeEvent:
		res = Event{Target: TargetType, Keyspace: e.Keyspace, Name: e.TypeName}
		res.Change, err = parseChange(e.Change)
	case *events.SchemaChangeFunctionEvent:
		res = Event{Target: TargetFunction, Keyspace: e.Keyspace, Name: e.Function, Arguments: e.Arguments}
		res.Change, err = parseChange(e.Change)
	case *events.SchemaChangeAggregateEvent:
		res = Event{Target: TargetAggregate, Keyspace: e.Keyspace, Name: e.Aggregate, Arguments: e.Arguments}
		res.Change, err = parseChange(e.Change)
	case *events.ControlConnectionRecreatedEvent:
		return NewVersionEvent(), true
	default:
		return Event{}, false
	}

	if err != nil {
		// The schema changed in some way we can't name.
		res.Change = ChangeUpdated
	}

	return res, true
}
