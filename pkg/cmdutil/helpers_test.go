// Copyright (C) 2025 ScyllaDB

package cmdutil

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestNormalizeNameForEnvVar(t *testing.T) {
	tt := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "dashes become underscores",
			input:    EnvVarPrefix + "refresh-debounce",
			expected: "CQL_SCHEMA_REFRESH_DEBOUNCE",
		},
		{
			name:     "single word",
			input:    "hosts",
			expected: "HOSTS",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeNameForEnvVar(tc.input)
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestReadFlagsFromEnv(t *testing.T) {
	t.Setenv("CQL_SCHEMA_REFRESH_DEBOUNCE", "3s")
	t.Setenv("CQL_SCHEMA_PORT", "19042")
	t.Setenv("CQL_SCHEMA_KEYSPACE", "not-used")

	var (
		debounce time.Duration
		port     int
		keyspace string
	)
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().DurationVar(&debounce, "refresh-debounce", time.Second, "")
	cmd.Flags().IntVar(&port, "port", 9042, "")
	cmd.Flags().StringVar(&keyspace, "keyspace", "", "")

	err := cmd.Flags().Parse([]string{"--keyspace=from-flag"})
	if err != nil {
		t.Fatal(err)
	}

	err = ReadFlagsFromEnv(EnvVarPrefix, cmd)
	if err != nil {
		t.Fatal(err)
	}

	if debounce != 3*time.Second {
		t.Errorf("expected debounce %v, got %v", 3*time.Second, debounce)
	}
	if port != 19042 {
		t.Errorf("expected port %d, got %d", 19042, port)
	}
	if keyspace != "from-flag" {
		t.Errorf("expected flag to take precedence, got %q", keyspace)
	}
}

func TestReadFlagsFromEnvInvalidValue(t *testing.T) {
	t.Setenv("CQL_SCHEMA_PORT", "many")

	var port int
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&port, "port", 9042, "")

	err := ReadFlagsFromEnv(EnvVarPrefix, cmd)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "CQL_SCHEMA_PORT") {
		t.Errorf("expected error to name the env var, got %q", err)
	}
}

func TestUsageError(t *testing.T) {
	root := &cobra.Command{Use: "cql-schema"}
	sub := &cobra.Command{Use: "dump"}
	root.AddCommand(sub)

	err := UsageError(sub, "unexpected argument %q", "foo")
	expected := "unexpected argument \"foo\"\nSee 'cql-schema dump -h' for help and examples."
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
