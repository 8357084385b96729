// Copyright (C) 2025 ScyllaDB

package cqlschema

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"github.com/scylladb/cql-schema-metadata/pkg/schema"
)

func newTestSnapshot() *schema.Snapshot {
	return schema.Build(schema.Rows{
		Keyspaces: []schema.Row{
			{
				"keyspace_name":  "ks",
				"durable_writes": true,
				"replication": map[string]string{
					"class":              "org.apache.cassandra.locator.SimpleStrategy",
					"replication_factor": "1",
				},
			},
		},
		Tables: []schema.Row{
			{"keyspace_name": "ks", "table_name": "users", "comment": "all users"},
		},
		Columns: []schema.Row{
			{"keyspace_name": "ks", "table_name": "users", "column_name": "id", "kind": "partition_key", "position": 0, "type": "uuid", "clustering_order": "none"},
			{"keyspace_name": "ks", "table_name": "users", "column_name": "emails", "kind": "regular", "position": -1, "type": "frozen<set<text>>", "clustering_order": "none"},
		},
	}).WithVersion(3)
}

func TestPrintSnapshotJSON(t *testing.T) {
	out := &bytes.Buffer{}
	err := printSnapshot(out, newTestSnapshot(), outputJSON)
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		Version   uint64 `json:"version"`
		Keyspaces map[string]struct {
			Tables map[string]struct {
				Comment *string `json:"comment"`
				Columns []struct {
					Name    string `json:"name"`
					RawType string `json:"rawType"`
					Type    struct {
						Kind string `json:"kind"`
					} `json:"type"`
				} `json:"columns"`
			} `json:"tables"`
		} `json:"keyspaces"`
	}
	err = json.Unmarshal(out.Bytes(), &got)
	if err != nil {
		t.Fatalf("can't decode output %q: %v", out.String(), err)
	}

	if got.Version != 3 {
		t.Errorf("expected version 3, got %d", got.Version)
	}

	users, ok := got.Keyspaces["ks"].Tables["users"]
	if !ok {
		t.Fatalf("expected table ks.users in %q", out.String())
	}
	if users.Comment == nil || *users.Comment != "all users" {
		t.Errorf("expected comment %q, got %v", "all users", users.Comment)
	}
	if len(users.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(users.Columns))
	}
	emails := users.Columns[1]
	if emails.Name != "emails" || emails.Type.Kind != "set" {
		t.Errorf("expected emails column of kind set, got %+v", emails)
	}
}

func TestPrintSnapshotYAML(t *testing.T) {
	out := &bytes.Buffer{}
	err := printSnapshot(out, newTestSnapshot(), outputYAML)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []string{"version: 3\n", "keyspaces:\n", "  ks:\n", "rawType: frozen<set<text>>\n"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, out.String())
		}
	}
}

func TestPrintSnapshotUnsupportedOutput(t *testing.T) {
	err := printSnapshot(&bytes.Buffer{}, newTestSnapshot(), "xml")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestDumpOptionsValidate(t *testing.T) {
	tt := []struct {
		name        string
		modify      func(o *DumpOptions)
		expectedErr string
	}{
		{
			name:        "defaults",
			modify:      func(o *DumpOptions) {},
			expectedErr: "",
		},
		{
			name: "unsupported output",
			modify: func(o *DumpOptions) {
				o.Output = "xml"
			},
			expectedErr: `unsupported output format "xml"`,
		},
		{
			name: "retry bounds",
			modify: func(o *DumpOptions) {
				o.RetryInitialInterval = 2 * o.RetryMaxInterval
			},
			expectedErr: "options.retryMaxInterval",
		},
		{
			name: "zero retry max uses the default",
			modify: func(o *DumpOptions) {
				o.RetryInitialInterval = 5 * time.Second
				o.RetryMaxInterval = 0
			},
			expectedErr: "",
		},
		{
			name: "exclude patterns",
			modify: func(o *DumpOptions) {
				o.ExcludeKeyspaces = []string{"system*", "audit["}
			},
			expectedErr: "excludeKeyspaces[1]",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			o := NewDumpOptions(genericclioptions.IOStreams{})
			tc.modify(o)

			err := o.Validate()
			if len(tc.expectedErr) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if err == nil || !strings.Contains(err.Error(), tc.expectedErr) {
				t.Errorf("expected error containing %q, got %v", tc.expectedErr, err)
			}
		})
	}
}
