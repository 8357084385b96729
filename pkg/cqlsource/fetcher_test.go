// Copyright (C) 2025 ScyllaDB

package cqlsource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/utils/pointer"
)

func TestSelectStatement(t *testing.T) {
	tt := []struct {
		name          string
		filtered      bool
		expectedNames []string
		expectWhere   bool
	}{
		{
			name:          "all keyspaces",
			filtered:      false,
			expectedNames: nil,
			expectWhere:   false,
		},
		{
			name:          "selected keyspaces",
			filtered:      true,
			expectedNames: []string{"keyspace_name"},
			expectWhere:   true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			stmt, names := selectStatement(keyspacesTable, []string{"keyspace_name", "replication"}, tc.filtered)

			if !strings.HasPrefix(stmt, "SELECT keyspace_name,replication FROM system_schema.keyspaces") {
				t.Errorf("unexpected statement %q", stmt)
			}
			if got := strings.Contains(stmt, "WHERE keyspace_name IN ?"); got != tc.expectWhere {
				t.Errorf("expected WHERE clause %v, got statement %q", tc.expectWhere, stmt)
			}
			if !cmp.Equal(names, tc.expectedNames) {
				t.Errorf("expected and got names differ:\n%s", cmp.Diff(tc.expectedNames, names))
			}
		})
	}
}

func TestNewFetcherDeduplicatesKeyspaces(t *testing.T) {
	f, err := NewFetcher(nil, FetcherOptions{
		Keyspaces:        []string{"ks", "ks", "other"},
		ExcludeKeyspaces: []string{"system"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(f.include) != 2 {
		t.Errorf("expected 2 keyspaces, got %v", f.include)
	}
	if !f.exclude.Match("system") {
		t.Errorf("expected system to be excluded")
	}
	if f.exclude.Match("system_schema") {
		t.Errorf("expected an exact name to match only itself")
	}
}

func TestNewFetcherRejectsInvalidPatterns(t *testing.T) {
	_, err := NewFetcher(nil, FetcherOptions{
		ExcludeKeyspaces: []string{"system["},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid pattern")
	}
}

func TestValidateKeyspacePatterns(t *testing.T) {
	tt := []struct {
		name           string
		patterns       []string
		expectedFields []string
	}{
		{
			name:           "exact names and globs are valid",
			patterns:       []string{"ks", "system*", "audit_?", "{a,b}_ks"},
			expectedFields: nil,
		},
		{
			name:           "empty and malformed patterns",
			patterns:       []string{"ks", "", "system["},
			expectedFields: []string{"excludeKeyspaces[1]", "excludeKeyspaces[2]"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateKeyspacePatterns(tc.patterns, field.NewPath("excludeKeyspaces"))

			var got []string
			for _, err := range errs {
				got = append(got, err.Field)
			}
			if !cmp.Equal(got, tc.expectedFields) {
				t.Errorf("expected and got fields differ:\n%s", cmp.Diff(tc.expectedFields, got))
			}
		})
	}
}

func TestToRowsKeepsNulls(t *testing.T) {
	res := []columnRow{
		{
			KeyspaceName:    "ks",
			TableName:       "t",
			ColumnName:      "key",
			ClusteringOrder: pointer.String("none"),
			Kind:            pointer.String("partition_key"),
			Position:        pointer.Int(0),
			Type:            pointer.String("int"),
		},
		{
			KeyspaceName: "ks",
			TableName:    "t",
			ColumnName:   "value",
			Kind:         pointer.String("regular"),
			Position:     pointer.Int(-1),
			Type:         pointer.String("text"),
		},
	}

	rows := toRows[columnRow](res, nil)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	order, ok := rows[1]["clustering_order"].(*string)
	if !ok {
		t.Fatalf("expected *string, got %T", rows[1]["clustering_order"])
	}
	if order != nil {
		t.Errorf("expected null clustering order to stay nil, got %q", *order)
	}
}

func TestToRowsExcludesKeyspaces(t *testing.T) {
	res := []keyspaceRow{
		{KeyspaceName: "ks", DurableWrites: pointer.Bool(true)},
		{KeyspaceName: "system", DurableWrites: pointer.Bool(true)},
		{KeyspaceName: "system_schema"},
		{KeyspaceName: "audit"},
		{KeyspaceName: "audit_log"},
	}

	exclude, err := newKeyspaceMatcher([]string{"system*", "audit"})
	if err != nil {
		t.Fatal(err)
	}
	rows := toRows[keyspaceRow](res, exclude)

	var got []string
	for _, r := range rows {
		got = append(got, r["keyspace_name"].(string))
	}
	expected := []string{"ks", "audit_log"}
	if !cmp.Equal(got, expected) {
		t.Errorf("expected and got keyspaces differ:\n%s", cmp.Diff(expected, got))
	}
}

func TestScannedRowsBuildSnapshot(t *testing.T) {
	replication := map[string]string{
		"class":              "org.apache.cassandra.locator.SimpleStrategy",
		"replication_factor": "3",
	}

	rows := schema.Rows{
		Keyspaces: toRows[keyspaceRow]([]keyspaceRow{
			{KeyspaceName: "ks", DurableWrites: pointer.Bool(false), Replication: replication},
		}, nil),
		Tables: toRows[tableRow]([]tableRow{
			{
				KeyspaceName: "ks",
				TableName:    "users",
				Flags:        []string{"compound"},
				tableOptions: tableOptions{
					Comment:        pointer.String("all users"),
					GcGraceSeconds: pointer.Int(864000),
				},
			},
		}, nil),
		Columns: toRows[columnRow]([]columnRow{
			{KeyspaceName: "ks", TableName: "users", ColumnName: "id", Kind: pointer.String("partition_key"), Position: pointer.Int(0), Type: pointer.String("uuid"), ClusteringOrder: pointer.String("none")},
			{KeyspaceName: "ks", TableName: "users", ColumnName: "name", Kind: pointer.String("regular"), Position: pointer.Int(-1), Type: pointer.String("text")},
		}, nil),
	}

	snap := schema.Build(rows)
	if err := snap.Err(); err != nil {
		t.Fatalf("unexpected decode errors: %v", err)
	}

	ks := snap.Keyspace("ks")
	if ks == nil {
		t.Fatalf("expected keyspace ks")
	}
	if ks.DurableWrites {
		t.Errorf("expected durable writes to be false")
	}

	table := snap.Table("ks", "users")
	if table == nil {
		t.Fatalf("expected table ks.users")
	}
	if table.Comment == nil || *table.Comment != "all users" {
		t.Errorf("expected comment %q, got %v", "all users", table.Comment)
	}
	if got := table.Options["gc_grace_seconds"]; got != "864000" {
		t.Errorf("expected gc_grace_seconds 864000, got %q", got)
	}
	if _, ok := table.Options["crc_check_chance"]; ok {
		t.Errorf("expected null option to be absent")
	}
	if n := len(table.PartitionKey()); n != 1 {
		t.Errorf("expected 1 partition key column, got %d", n)
	}
}

func TestFirstError(t *testing.T) {
	failure := &QueryError{Table: tablesTable, Err: errors.New("timeout")}
	cancelled := &QueryError{Table: keyspacesTable, Err: fmt.Errorf("read aborted: %w", context.Canceled)}
	plain := errors.New("plain")

	tt := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "not an aggregate",
			err:      plain,
			expected: plain,
		},
		{
			name:     "cause wins over earlier cancellation",
			err:      apimachineryutilerrors.NewAggregate([]error{cancelled, failure}),
			expected: failure,
		},
		{
			name:     "only cancellations",
			err:      apimachineryutilerrors.NewAggregate([]error{cancelled}),
			expected: cancelled,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := firstError(tc.err)
			if got != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestQueryError(t *testing.T) {
	err := error(&QueryError{Table: localTable, Err: fmt.Errorf("%w %q", ErrUnsupportedVersion, "2.1.0")})

	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected error to wrap %v", ErrUnsupportedVersion)
	}

	expected := `can't query system.local: unsupported release version "2.1.0"`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
