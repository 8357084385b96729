// Copyright (C) 2025 ScyllaDB

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/scylladb/cql-schema-metadata/pkg/cmd/cqlschema"
	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(flag.CommandLine)
	err := flag.Set("logtostderr", "true")
	if err != nil {
		panic(err)
	}
	defer klog.Flush()

	command := cqlschema.NewSchemaCommand(genericclioptions.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})
	err = command.Execute()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		klog.Flush()
		os.Exit(1)
	}
}
