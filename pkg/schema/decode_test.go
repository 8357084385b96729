// Copyright (C) 2025 ScyllaDB

package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/scylladb/cql-schema-metadata/pkg/cqltype"
)

func newString(s string) *string {
	return &s
}

func TestDecodeColumn(t *testing.T) {
	tt := []struct {
		name           string
		row            Row
		expected       *ColumnMetadata
		expectedField  string
		expectedErrIs  error
		expectParseErr bool
	}{
		{
			name: "absent comment and index name stay absent",
			row: Row{
				"keyspace_name":    "ks",
				"table_name":       "users",
				"column_name":      "emails",
				"type":             "frozen<list<varchar>>",
				"kind":             "regular",
				"position":         -1,
				"clustering_order": "none",
			},
			expected: &ColumnMetadata{
				Keyspace:        "ks",
				Table:           "users",
				Name:            "emails",
				Type:            cqltype.List(cqltype.Primitive("varchar")),
				RawType:         "frozen<list<varchar>>",
				Kind:            ColumnRegular,
				Position:        -1,
				ClusteringOrder: OrderNone,
			},
		},
		{
			name: "nil pointers are treated as null",
			row: Row{
				"keyspace_name":    newString("ks"),
				"table_name":       newString("users"),
				"column_name":      newString("id"),
				"type":             newString("uuid"),
				"kind":             newString("partition_key"),
				"position":         func() *int { p := 0; return &p }(),
				"clustering_order": (*string)(nil),
				"comment":          (*string)(nil),
				"index_name":       (*string)(nil),
			},
			expected: &ColumnMetadata{
				Keyspace:        "ks",
				Table:           "users",
				Name:            "id",
				Type:            cqltype.Primitive("uuid"),
				RawType:         "uuid",
				Kind:            ColumnPartitionKey,
				Position:        0,
				ClusteringOrder: OrderNone,
			},
		},
		{
			name: "stored comment and index name are kept",
			row: Row{
				"keyspace_name":    "ks",
				"table_name":       "users",
				"column_name":      "ts",
				"type":             "timestamp",
				"kind":             "clustering",
				"position":         int32(1),
				"clustering_order": "DESC",
				"comment":          "creation time",
				"index_name":       "users_ts_idx",
			},
			expected: &ColumnMetadata{
				Keyspace:        "ks",
				Table:           "users",
				Name:            "ts",
				Type:            cqltype.Primitive("timestamp"),
				RawType:         "timestamp",
				Kind:            ColumnClusteringKey,
				Position:        1,
				ClusteringOrder: OrderDESC,
				Comment:         newString("creation time"),
				IndexName:       newString("users_ts_idx"),
			},
		},
		{
			name: "missing column name",
			row: Row{
				"keyspace_name": "ks",
				"table_name":    "users",
				"type":          "int",
				"kind":          "regular",
			},
			expectedField: "column_name",
			expectedErrIs: ErrMissingField,
		},
		{
			name: "wrong value type",
			row: Row{
				"keyspace_name": "ks",
				"table_name":    "users",
				"column_name":   "c",
				"type":          "int",
				"kind":          42,
			},
			expectedField: "kind",
		},
		{
			name: "unknown kind",
			row: Row{
				"keyspace_name": "ks",
				"table_name":    "users",
				"column_name":   "c",
				"type":          "int",
				"kind":          "virtual",
			},
			expectedField: "kind",
		},
		{
			name: "key column without position",
			row: Row{
				"keyspace_name": "ks",
				"table_name":    "users",
				"column_name":   "c",
				"type":          "int",
				"kind":          "clustering",
			},
			expectedField: "position",
		},
		{
			name: "unparseable type keeps the column",
			row: Row{
				"keyspace_name": "ks",
				"table_name":    "users",
				"column_name":   "broken",
				"type":          "map<int>",
				"kind":          "regular",
				"position":      -1,
			},
			expected: &ColumnMetadata{
				Keyspace:        "ks",
				Table:           "users",
				Name:            "broken",
				RawType:         "map<int>",
				Kind:            ColumnRegular,
				Position:        -1,
				ClusteringOrder: OrderNone,
			},
			expectedField:  "type",
			expectParseErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeColumn(tc.row)

			if diff := cmp.Diff(tc.expected, got); len(diff) != 0 {
				t.Errorf("expected and got columns differ:\n%s", diff)
			}

			if len(tc.expectedField) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected *DecodeError, got %T: %v", err, err)
			}
			if decodeErr.Field != tc.expectedField {
				t.Errorf("expected field %q, got %q", tc.expectedField, decodeErr.Field)
			}
			if tc.expectedErrIs != nil && !errors.Is(err, tc.expectedErrIs) {
				t.Errorf("expected error to be %v, got %v", tc.expectedErrIs, err)
			}

			var parseErr *cqltype.ParseError
			if errors.As(err, &parseErr) != tc.expectParseErr {
				t.Errorf("expected parse error %v, got %v", tc.expectParseErr, err)
			}
		})
	}
}

func TestDecodeColumnsPartialFailure(t *testing.T) {
	rows := []Row{
		{"keyspace_name": "ks", "table_name": "t", "column_name": "a", "type": "int", "kind": "partition_key", "position": 0},
		{"keyspace_name": "ks", "table_name": "t", "column_name": "b", "type": "list<int, int>", "kind": "regular", "position": -1},
		{"keyspace_name": "ks", "table_name": "t", "type": "int", "kind": "regular", "position": -1},
		{"keyspace_name": "ks", "table_name": "t", "column_name": "d", "type": "map<text, frozen<set<int>>>", "kind": "regular", "position": -1},
	}

	columns, errs := DecodeColumns(rows)

	var names []string
	for _, c := range columns {
		names = append(names, c.Name)
	}
	expectedNames := []string{"a", "b", "d"}
	if diff := cmp.Diff(expectedNames, names); len(diff) != 0 {
		t.Errorf("expected and got columns differ:\n%s", diff)
	}

	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}

	if columns[1].Type != nil {
		t.Errorf("expected unparseable column to have no type, got %q", columns[1].Type)
	}
	if got := columns[2].Type.String(); got != "map<text, set<int>>" {
		t.Errorf("expected sibling column type %q, got %q", "map<text, set<int>>", got)
	}
}

func TestDecodeTable(t *testing.T) {
	tt := []struct {
		name     string
		row      Row
		expected *TableMetadata
	}{
		{
			name: "empty comment is absent",
			row: Row{
				"keyspace_name": "ks",
				"table_name":    "t",
				"comment":       "",
			},
			expected: &TableMetadata{
				Keyspace: "ks",
				Name:     "t",
				Indexes:  map[string]*IndexMetadata{},
			},
		},
		{
			name: "null comment is absent",
			row: Row{
				"keyspace_name": "ks",
				"table_name":    "t",
				"comment":       (*string)(nil),
			},
			expected: &TableMetadata{
				Keyspace: "ks",
				Name:     "t",
				Indexes:  map[string]*IndexMetadata{},
			},
		},
		{
			name: "options are flattened",
			row: Row{
				"keyspace_name":    "ks",
				"table_name":       "t",
				"comment":          "users by id",
				"flags":            []string{"compound"},
				"gc_grace_seconds": 864000,
				"compaction": map[string]string{
					"class": "SizeTieredCompactionStrategy",
				},
				"speculative_retry": (*string)(nil),
			},
			expected: &TableMetadata{
				Keyspace: "ks",
				Name:     "t",
				Comment:  newString("users by id"),
				Flags:    []string{"compound"},
				Indexes:  map[string]*IndexMetadata{},
				Options: map[string]string{
					"gc_grace_seconds": "864000",
					"compaction.class": "SizeTieredCompactionStrategy",
				},
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeTable(tc.row)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.expected, got); len(diff) != 0 {
				t.Errorf("expected and got tables differ:\n%s", diff)
			}
		})
	}
}

func TestDecodeUserType(t *testing.T) {
	got, err := DecodeUserType(Row{
		"keyspace_name": "ks",
		"type_name":     "address",
		"field_names":   []string{"street", "phones"},
		"field_types":   []string{"text", "frozen<set<frozen<phone>>>"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := cqltype.UserDefined("ks", "address",
		cqltype.Field{Name: "street", Type: cqltype.Primitive("text")},
		cqltype.Field{Name: "phones", Type: cqltype.Set(cqltype.UserDefined("", "phone"))},
	)
	if diff := cmp.Diff(expected, got); len(diff) != 0 {
		t.Errorf("expected and got types differ:\n%s", diff)
	}

	_, err = DecodeUserType(Row{
		"keyspace_name": "ks",
		"type_name":     "broken",
		"field_names":   []string{"a", "b"},
		"field_types":   []string{"int"},
	})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Field != "field_types" {
		t.Errorf("expected field_types decode error, got %v", err)
	}
}

func TestKeyspaceReplicationStrategy(t *testing.T) {
	tt := []struct {
		name        string
		replication map[string]string
		expected    ReplicationStrategy
		expectedErr bool
	}{
		{
			name: "simple strategy",
			replication: map[string]string{
				"class":              "org.apache.cassandra.locator.SimpleStrategy",
				"replication_factor": "3",
			},
			expected: ReplicationStrategy{
				Class:             "org.apache.cassandra.locator.SimpleStrategy",
				ReplicationFactor: 3,
			},
		},
		{
			name: "network topology strategy",
			replication: map[string]string{
				"class": "org.apache.cassandra.locator.NetworkTopologyStrategy",
				"dc1":   "3",
				"dc2":   "2",
			},
			expected: ReplicationStrategy{
				Class: "org.apache.cassandra.locator.NetworkTopologyStrategy",
				DatacenterFactors: map[string]int{
					"dc1": 3,
					"dc2": 2,
				},
			},
		},
		{
			name: "non numeric factor",
			replication: map[string]string{
				"class":              "SimpleStrategy",
				"replication_factor": "three",
			},
			expectedErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ks := &KeyspaceMetadata{Name: "ks", Replication: tc.replication}
			got, err := ks.ReplicationStrategy()
			if tc.expectedErr {
				if err == nil {
					t.Fatalf("expected an error, got %#v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.expected, got); len(diff) != 0 {
				t.Errorf("expected and got strategies differ:\n%s", diff)
			}
		})
	}

	short := ReplicationStrategy{Class: "org.apache.cassandra.locator.SimpleStrategy"}.ShortClass()
	if short != "SimpleStrategy" {
		t.Errorf("expected %q, got %q", "SimpleStrategy", short)
	}
}
