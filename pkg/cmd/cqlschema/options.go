// Copyright (C) 2025 ScyllaDB

package cqlschema

import (
	"context"
	"fmt"
	"time"

	"github.com/scylladb/cql-schema-metadata/pkg/cqlsource"
	"github.com/scylladb/cql-schema-metadata/pkg/genericclioptions"
	"github.com/scylladb/cql-schema-metadata/pkg/schemachange"
	"github.com/scylladb/cql-schema-metadata/pkg/schemarefresh"
	"github.com/scylladb/cql-schema-metadata/pkg/session"
	"github.com/scylladb/gocqlx/v2"
	"github.com/spf13/cobra"
	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// SessionOptions are the connection and refresh settings shared by commands
// that open a schema session.
type SessionOptions struct {
	genericclioptions.ClientConfig

	Keyspaces        []string
	ExcludeKeyspaces []string

	RefreshDebounce      time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RefreshTimeout       time.Duration
	MaxRefreshRate       float64
}

func NewSessionOptions() SessionOptions {
	defaults := session.DefaultOptions()
	return SessionOptions{
		ClientConfig:         genericclioptions.NewClientConfig(),
		ExcludeKeyspaces:     []string{},
		RefreshDebounce:      defaults.RefreshDebounce,
		RetryInitialInterval: defaults.RetryInitialInterval,
		RetryMaxInterval:     defaults.RetryMaxInterval,
		RefreshTimeout:       defaults.RefreshTimeout,
		MaxRefreshRate:       defaults.MaxRefreshRate,
	}
}

func (o *SessionOptions) AddFlags(cmd *cobra.Command) {
	o.ClientConfig.AddFlags(cmd)

	cmd.PersistentFlags().StringSliceVarP(&o.Keyspaces, "keyspaces", "", o.Keyspaces, "Keyspaces to read. All keyspaces are read when empty.")
	cmd.PersistentFlags().StringSliceVarP(&o.ExcludeKeyspaces, "exclude-keyspaces", "", o.ExcludeKeyspaces, "Keyspaces to leave out. Glob patterns like 'system*' are supported.")
	cmd.PersistentFlags().DurationVarP(&o.RefreshDebounce, "refresh-debounce", "", o.RefreshDebounce, "How long to wait for more schema changes before refreshing.")
	cmd.PersistentFlags().DurationVarP(&o.RetryInitialInterval, "retry-initial-interval", "", o.RetryInitialInterval, "Delay before the first retry of a failed refresh.")
	cmd.PersistentFlags().DurationVarP(&o.RetryMaxInterval, "retry-max-interval", "", o.RetryMaxInterval, "Maximum delay between retries of a failed refresh.")
	cmd.PersistentFlags().DurationVarP(&o.RefreshTimeout, "refresh-timeout", "", o.RefreshTimeout, "Timeout for reading the schema tables. Zero means no timeout.")
	cmd.PersistentFlags().Float64VarP(&o.MaxRefreshRate, "max-refresh-rate", "", o.MaxRefreshRate, "Maximum number of refreshes per second. Zero means no limit.")
}

func (o *SessionOptions) sessionOptions() session.Options {
	opts := session.DefaultOptions().ConfigureSchemaMetadata(true)
	opts.RefreshDebounce = o.RefreshDebounce
	opts.RetryInitialInterval = o.RetryInitialInterval
	opts.RetryMaxInterval = o.RetryMaxInterval
	opts.RefreshTimeout = o.RefreshTimeout
	opts.MaxRefreshRate = o.MaxRefreshRate
	return opts
}

func (o *SessionOptions) Validate() error {
	var errs []error

	errs = append(errs, o.ClientConfig.Validate())

	opts := o.sessionOptions()
	errs = append(errs, session.ValidateOptions(&opts, field.NewPath("options")).ToAggregate())
	errs = append(errs, cqlsource.ValidateKeyspacePatterns(o.ExcludeKeyspaces, field.NewPath("excludeKeyspaces")).ToAggregate())

	return apimachineryutilerrors.NewAggregate(errs)
}

func (o *SessionOptions) Complete() error {
	err := o.ClientConfig.Complete()
	if err != nil {
		return err
	}

	// The config file may have changed the refresh settings and filters.
	opts := o.sessionOptions()
	var allErrs field.ErrorList
	allErrs = append(allErrs, session.ValidateOptions(&opts, field.NewPath("options"))...)
	allErrs = append(allErrs, cqlsource.ValidateKeyspacePatterns(o.ExcludeKeyspaces, field.NewPath("excludeKeyspaces"))...)
	return allErrs.ToAggregate()
}

func (o *SessionOptions) connect() (gocqlx.Session, error) {
	s, err := gocqlx.WrapSession(o.ClusterConfig.CreateSession())
	if err != nil {
		return gocqlx.Session{}, fmt.Errorf("can't connect to %v: %w", o.Hosts, err)
	}
	return s, nil
}

func (o *SessionOptions) newFetcher(q cqlsource.Querier) (*cqlsource.Fetcher, error) {
	f, err := cqlsource.NewFetcher(q, cqlsource.FetcherOptions{
		Keyspaces:        o.Keyspaces,
		ExcludeKeyspaces: o.ExcludeKeyspaces,
	})
	if err != nil {
		return nil, fmt.Errorf("can't create schema fetcher: %w", err)
	}
	return f, nil
}

func (o *SessionOptions) newSession(ctx context.Context, fetcher schemarefresh.Fetcher, source schemachange.Source, observer schemarefresh.Observer) (*session.Session, error) {
	s, err := session.New(ctx, o.sessionOptions(), fetcher, source, observer)
	if err != nil {
		return nil, fmt.Errorf("can't create schema session: %w", err)
	}
	return s, nil
}
