// Copyright (C) 2025 ScyllaDB

package schemachange

import (
	"testing"

	"github.com/gocql/gocql/events"
	"github.com/google/go-cmp/cmp"
)

func TestFromDriverEvent(t *testing.T) {
	tt := []struct {
		name       string
		event      events.Event
		expected   Event
		expectedOK bool
	}{
		{
			name:  "keyspace",
			event: &events.SchemaChangeKeyspaceEvent{Change: "CREATED", Keyspace: "ks"},
			expected: Event{
				Change:   ChangeCreated,
				Target:   TargetKeyspace,
				Keyspace: "ks",
			},
			expectedOK: true,
		},
		{
			name:  "table",
			event: &events.SchemaChangeTableEvent{Change: "UPDATED", Keyspace: "ks", Table: "t"},
			expected: Event{
				Change:   ChangeUpdated,
				Target:   TargetTable,
				Keyspace: "ks",
				Name:     "t",
			},
			expectedOK: true,
		},
		{
			name:  "type",
			event: &events.SchemaChangeTypeEvent{Change: "DROPPED", Keyspace: "ks", TypeName: "address"},
			expected: Event{
				Change:   ChangeDropped,
				Target:   TargetType,
				Keyspace: "ks",
				Name:     "address",
			},
			expectedOK: true,
		},
		{
			name:  "function",
			event: &events.SchemaChangeFunctionEvent{Change: "CREATED", Keyspace: "ks", Function: "f", Arguments: []string{"int"}},
			expected: Event{
				Change:    ChangeCreated,
				Target:    TargetFunction,
				Keyspace:  "ks",
				Name:      "f",
				Arguments: []string{"int"},
			},
			expectedOK: true,
		},
		{
			name:  "aggregate",
			event: &events.SchemaChangeAggregateEvent{Change: "DROPPED", Keyspace: "ks", Aggregate: "a", Arguments: []string{"int"}},
			expected: Event{
				Change:    ChangeDropped,
				Target:    TargetAggregate,
				Keyspace:  "ks",
				Name:      "a",
				Arguments: []string{"int"},
			},
			expectedOK: true,
		},
		{
			name:  "unknown change is treated as an update",
			event: &events.SchemaChangeTableEvent{Change: "ALTERED", Keyspace: "ks", Table: "t"},
			expected: Event{
				Change:   ChangeUpdated,
				Target:   TargetTable,
				Keyspace: "ks",
				Name:     "t",
			},
			expectedOK: true,
		},
		{
			name:       "recreated control connection requests a full refresh",
			event:      &events.ControlConnectionRecreatedEvent{},
			expected:   NewVersionEvent(),
			expectedOK: true,
		},
		{
			name:       "status change is ignored",
			event:      &events.StatusChangeEvent{},
			expectedOK: false,
		},
		{
			name:       "topology change is ignored",
			event:      &events.TopologyChangeEvent{},
			expectedOK: false,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FromDriverEvent(tc.event)
			if ok != tc.expectedOK {
				t.Fatalf("expected ok %v, got %v", tc.expectedOK, ok)
			}
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("expected and got events differ:\n%s", diff)
			}
		})
	}
}
