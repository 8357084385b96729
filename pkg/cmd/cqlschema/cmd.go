// Copyright (C) 2025 ScyllaDB

package cqlschema

import (
	"fmt"

	versioncmd "github.com/scylladb/cql-schema-metadata/pkg/cmd/version"
	"github.com/scylladb/cql-schema-metadata/pkg/cmdutil"
	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"k8s.io/klog/v2"
	"k8s.io/kubectl/pkg/util/templates"
)

func NewSchemaCommand(streams genericclioptions.IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cql-schema",
		Short: "Reads and follows the schema of a CQL cluster.",
		Long: templates.LongDesc(`
		cql-schema reads keyspace, table, column, index, user type and view metadata
		from the system_schema keyspace and keeps it up to date.

		Every flag can also be set with a CQL_SCHEMA_ prefixed environment variable,
		for example CQL_SCHEMA_HOSTS, or with a YAML file passed in --config.
		`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...interface{}) {
				klog.V(2).Infof(format, v...)
			}))
			if err != nil {
				return fmt.Errorf("can't set maxproc: %w", err)
			}

			err = cmdutil.ReadFlagsFromEnv(cmdutil.EnvVarPrefix, cmd)
			if err != nil {
				return fmt.Errorf("can't read flags from env: %w", err)
			}

			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(versioncmd.NewCmd(streams))
	cmd.AddCommand(NewDumpCmd(streams))
	cmd.AddCommand(NewWatchCmd(streams))
	cmd.AddCommand(NewParseTypeCmd(streams))

	cmdutil.InstallKlog(cmd)

	return cmd
}
