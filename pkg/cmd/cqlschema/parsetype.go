// Copyright (C) 2025 ScyllaDB

package cqlschema

import (
	"fmt"
	"io"
	"strings"

	"github.com/scylladb/cql-schema-metadata/pkg/cmdutil"
	"github.com/scylladb/cql-schema-metadata/pkg/cqltype"
	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"github.com/spf13/cobra"
	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/kubectl/pkg/util/templates"
)

type ParseTypeOptions struct {
	Tree bool

	types []string
}

func NewParseTypeOptions(streams genericclioptions.IOStreams) *ParseTypeOptions {
	return &ParseTypeOptions{
		Tree: false,
	}
}

func NewParseTypeCmd(streams genericclioptions.IOStreams) *cobra.Command {
	o := NewParseTypeOptions(streams)

	cmd := &cobra.Command{
		Use:   "parse-type TYPE...",
		Short: "Parses CQL type strings.",
		Long: templates.LongDesc(`
		parse-type parses CQL types as stored in system_schema and prints their
		canonical form. Frozen wrappers are dropped.
		`),
		Example: templates.Examples(`
		# Print the canonical form of a type
		cql-schema parse-type 'map<frozen<list<varchar>>, varchar>'

		# Print the structure of a type
		cql-schema parse-type --tree 'tuple<int, frozen<set<text>>>'
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := o.Validate(args)
			if err != nil {
				return err
			}

			err = o.Complete(args)
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

	cmd.Flags().BoolVarP(&o.Tree, "tree", "", o.Tree, "Print the type structure instead of the canonical form.")

	return cmd
}

func (o *ParseTypeOptions) Validate(args []string) error {
	var errs []error

	for i, arg := range args {
		if len(strings.TrimSpace(arg)) == 0 {
			errs = append(errs, fmt.Errorf("argument %d is empty", i))
		}
	}

	return apimachineryutilerrors.NewAggregate(errs)
}

func (o *ParseTypeOptions) Complete(args []string) error {
	o.types = args
	return nil
}

func (o *ParseTypeOptions) Run(streams genericclioptions.IOStreams, cmd *cobra.Command) error {
	cmdutil.LogCommandStarting(cmd)

	var errs []error
	for _, s := range o.types {
		t, err := cqltype.Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if o.Tree {
			writeTypeTree(streams.Out, t, "", 0)
			continue
		}
		_, _ = fmt.Fprintln(streams.Out, t.String())
	}

	return apimachineryutilerrors.NewAggregate(errs)
}

func typeLabel(t *cqltype.Type) string {
	switch t.Kind {
	case cqltype.KindPrimitive:
		return t.Name
	case cqltype.KindUserDefined:
		if len(t.Keyspace) != 0 {
			return fmt.Sprintf("%s %s.%s", t.Kind, t.Keyspace, t.Name)
		}
		return fmt.Sprintf("%s %s", t.Kind, t.Name)
	case cqltype.KindCustom:
		return fmt.Sprintf("%s %s", t.Kind, t.Name)
	case cqltype.KindVector:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Dimension)
	default:
		return t.Kind.String()
	}
}

func writeTypeTree(w io.Writer, t *cqltype.Type, prefix string, depth int) {
	_, _ = fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), prefix, typeLabel(t))

	switch t.Kind {
	case cqltype.KindMap:
		writeTypeTree(w, t.Key(), "key: ", depth+1)
		writeTypeTree(w, t.Value(), "value: ", depth+1)
	default:
		for _, e := range t.Elements {
			writeTypeTree(w, e, "", depth+1)
		}
	}

	for _, f := range t.Fields {
		writeTypeTree(w, f.Type, f.Name+": ", depth+1)
	}
}
