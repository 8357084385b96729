// Copyright (C) 2025 ScyllaDB

package cqlschema

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scylladb/cql-schema-metadata/pkg/cmdutil"
	"github.com/scylladb/cql-schema-metadata/pkg/cqlsource"
	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"github.com/scylladb/cql-schema-metadata/pkg/schemarefresh"
	"github.com/scylladb/cql-schema-metadata/pkg/signals"
	"github.com/spf13/cobra"
	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/klog/v2"
	"k8s.io/kubectl/pkg/util/templates"
)

type WatchOptions struct {
	SessionOptions

	PollInterval   time.Duration
	MetricsAddress string
	MetricsPort    uint16
}

func NewWatchOptions(streams genericclioptions.IOStreams) *WatchOptions {
	return &WatchOptions{
		SessionOptions: NewSessionOptions(),
		PollInterval:   10 * time.Second,
		MetricsAddress: "",
		MetricsPort:    0,
	}
}

func NewWatchCmd(streams genericclioptions.IOStreams) *cobra.Command {
	o := NewWatchOptions(streams)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follows schema changes of a cluster.",
		Long: templates.LongDesc(`
		watch keeps the cluster schema up to date and logs every refresh until it
		receives a shutdown signal. Schema changes are detected by polling the schema
		version of the coordinator node.
		`),
		Example: templates.Examples(`
		# Follow schema changes and expose metrics on port 9180
		cql-schema watch --hosts=10.0.0.1 --metrics-port=9180
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

func (o *WatchOptions) AddFlags(cmd *cobra.Command) {
	o.SessionOptions.AddFlags(cmd)

	cmd.PersistentFlags().DurationVarP(&o.PollInterval, "poll-interval", "", o.PollInterval, "How often to check the schema version.")
	cmd.PersistentFlags().StringVarP(&o.MetricsAddress, "metrics-address", "", o.MetricsAddress, "Listen address for the metrics server.")
	cmd.PersistentFlags().Uint16VarP(&o.MetricsPort, "metrics-port", "", o.MetricsPort, "Port for the metrics server. Zero disables it.")
}

func (o *WatchOptions) Validate() error {
	var errs []error

	errs = append(errs, o.SessionOptions.Validate())

	if o.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %v", o.PollInterval))
	}

	return apimachineryutilerrors.NewAggregate(errs)
}

func (o *WatchOptions) Complete() error {
	return o.SessionOptions.Complete()
}

func (o *WatchOptions) Run(streams genericclioptions.IOStreams, cmd *cobra.Command) error {
	cmdutil.LogCommandStarting(cmd)
	cliflag.PrintFlags(cmd.Flags())

	ctx, cancel := signals.Context(context.Background())
	defer cancel()

	return o.Execute(ctx)
}

func (o *WatchOptions) Execute(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cqlSession, err := o.connect()
	if err != nil {
		return err
	}
	defer cqlSession.Close()

	observer := schemarefresh.MultiObserver{
		schemarefresh.LoggingObserver{},
		schemarefresh.NewPrometheusObserver(registry),
	}
	watcher := cqlsource.NewVersionWatcher(cqlSession, o.PollInterval)

	fetcher, err := o.newFetcher(cqlSession)
	if err != nil {
		return err
	}

	s, err := o.newSession(ctx, fetcher, watcher, observer)
	if err != nil {
		return err
	}
	defer s.Close()

	metricsErrCh := make(chan error, 1)
	if o.MetricsPort != 0 {
		go func() {
			metricsErrCh <- o.serveMetrics(ctx, registry)
		}()
	}

	klog.InfoS("Watching schema changes", "Keyspaces", s.GetSchema().Count(), "Version", s.GetSchema().Version())

	select {
	case <-ctx.Done():
	case err := <-metricsErrCh:
		return fmt.Errorf("can't serve metrics: %w", err)
	}

	if o.MetricsPort != 0 {
		err = <-metricsErrCh
		if err != nil {
			return fmt.Errorf("can't serve metrics: %w", err)
		}
	}

	return nil
}

func (o *WatchOptions) serveMetrics(ctx context.Context, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    net.JoinHostPort(o.MetricsAddress, strconv.Itoa(int(o.MetricsPort))),
		Handler: mux,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("can't create tcp listener on address %q: %w", server.Addr, err)
	}

	klog.InfoS("Starting metrics server", "Address", listener.Addr().String())
	defer klog.InfoS("Metrics server shut down")

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()
		shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCtxCancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			klog.ErrorS(err, "Can't shut down the metrics server")
		}
	}()

	err = server.Serve(listener)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
