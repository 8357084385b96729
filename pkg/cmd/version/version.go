// Copyright (C) 2024 ScyllaDB

package version

import (
	"fmt"

	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"github.com/scylladb/cql-schema-metadata/pkg/version"
	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/kubectl/pkg/util/templates"
)

type Options struct {
	Short bool
}

func NewOptions(streams genericclioptions.IOStreams) *Options {
	return &Options{
		Short: false,
	}
}

func NewCmd(streams genericclioptions.IOStreams) *cobra.Command {
	o := NewOptions(streams)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Long: templates.LongDesc(`
		version prints the program version together with the commit and toolchain it was built with.
		`),
		Example: templates.Examples(`
		# Print the program version
		cql-schema version

		# Print only the release version
		cql-schema version --short
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
		ValidArgs: []string{},

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.Flags().BoolVarP(&o.Short, "short", "", o.Short, "Print only the release version.")

	return cmd
}

func (o *Options) Validate() error {
	var errs []error

	return utilerrors.NewAggregate(errs)
}

func (o *Options) Complete() error {
	return nil
}

func (o *Options) Run(originalStreams genericclioptions.IOStreams, cmd *cobra.Command) error {
	info := version.Get()
	if o.Short {
		_, err := fmt.Fprintln(originalStreams.Out, info.GitVersion)
		return err
	}

	_, err := fmt.Fprintf(originalStreams.Out, "%s: %s\n", cmd.Root().Name(), info)
	return err
}
