// Copyright (C) 2025 ScyllaDB

package cqlschema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/scylladb/cql-schema-metadata/pkg/cmdutil"
	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/schemacache"
	"github.com/scylladb/cql-schema-metadata/pkg/schemarefresh"
	"github.com/scylladb/cql-schema-metadata/pkg/signals"
	"github.com/spf13/cobra"
	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"k8s.io/kubectl/pkg/util/templates"
	"sigs.k8s.io/yaml"
)

const (
	outputYAML = "yaml"
	outputJSON = "json"
)

type DumpOptions struct {
	SessionOptions

	Output string
}

func NewDumpOptions(streams genericclioptions.IOStreams) *DumpOptions {
	return &DumpOptions{
		SessionOptions: NewSessionOptions(),
		Output:         outputYAML,
	}
}

func NewDumpCmd(streams genericclioptions.IOStreams) *cobra.Command {
	o := NewDumpOptions(streams)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Prints the cluster schema.",
		Long: templates.LongDesc(`
		dump connects to the cluster, reads the schema once and prints it.
		`),
		Example: templates.Examples(`
		# Print the schema of a local node as YAML
		cql-schema dump

		# Print a single keyspace as JSON
		cql-schema dump --hosts=10.0.0.1 --keyspaces=ks -o json
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := o.Validate()
			if err != nil {
				return err
			}

			err = o.Complete()
			if err != nil {
				return err
			}

			err = o.Run(streams, cmd)
			if err != nil {
				return err
			}

			return nil
		},

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	o.AddFlags(cmd)

	return cmd
}

func (o *DumpOptions) AddFlags(cmd *cobra.Command) {
	o.SessionOptions.AddFlags(cmd)

	cmd.Flags().StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: yaml|json.")
}

func (o *DumpOptions) Validate() error {
	var errs []error

	errs = append(errs, o.SessionOptions.Validate())

	switch o.Output {
	case outputYAML, outputJSON:
	default:
		errs = append(errs, fmt.Errorf("unsupported output format %q", o.Output))
	}

	return apimachineryutilerrors.NewAggregate(errs)
}

func (o *DumpOptions) Complete() error {
	return o.SessionOptions.Complete()
}

func (o *DumpOptions) Run(streams genericclioptions.IOStreams, cmd *cobra.Command) error {
	cmdutil.LogCommandStarting(cmd)

	ctx, cancel := signals.Context(context.Background())
	defer cancel()

	cqlSession, err := o.connect()
	if err != nil {
		return err
	}
	defer cqlSession.Close()

	fetcher, err := o.newFetcher(cqlSession)
	if err != nil {
		return err
	}

	s, err := o.newSession(ctx, fetcher, nil, schemarefresh.LoggingObserver{})
	if err != nil {
		return err
	}
	defer s.Close()

	if s.State() != schemacache.StateReady {
		// The initial refresh failed; one more attempt reports why.
		err = s.RefreshNow(ctx)
		if err != nil {
			return fmt.Errorf("can't read schema: %w", err)
		}
	}

	snap := s.GetSchema()
	if err := snap.Err(); err != nil {
		klog.Warningf("Schema was read with errors:\n%v", err)
	}

	return printSnapshot(streams.Out, snap, o.Output)
}

type snapshotDump struct {
	Version     uint64                              `json:"version"`
	Fingerprint string                              `json:"fingerprint"`
	Keyspaces   map[string]*schema.KeyspaceMetadata `json:"keyspaces"`
	Errors      []string                            `json:"errors,omitempty"`
}

func newSnapshotDump(snap *schema.Snapshot) *snapshotDump {
	d := &snapshotDump{
		Version:     snap.Version(),
		Fingerprint: snap.Fingerprint(),
		Keyspaces:   snap.Keyspaces(),
	}
	for _, err := range snap.Errors() {
		d.Errors = append(d.Errors, err.Error())
	}
	return d
}

func printSnapshot(w io.Writer, snap *schema.Snapshot, output string) error {
	var data []byte
	var err error

	switch output {
	case outputJSON:
		data, err = json.MarshalIndent(newSnapshotDump(snap), "", "  ")
		data = append(data, '\n')
	case outputYAML:
		data, err = yaml.Marshal(newSnapshotDump(snap))
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
	if err != nil {
		return fmt.Errorf("can't encode schema as %s: %w", output, err)
	}

	_, err = w.Write(data)
	return err
}
