// Copyright (C) 2025 ScyllaDB

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/schemacache"
	"github.com/scylladb/cql-schema-metadata/pkg/schemachange"
	"github.com/scylladb/cql-schema-metadata/pkg/schemarefresh"
	"github.com/scylladb/cql-schema-metadata/pkg/util/fsm"
	"github.com/scylladb/cql-schema-metadata/pkg/util/retry"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"
)

var errStreamEnded = errors.New("schema change stream ended")

// Session owns the schema snapshot of one cluster connection.
type Session struct {
	options    Options
	cache      *schemacache.Cache
	controller *schemarefresh.Controller

	cancel    context.CancelFunc
	closeOnce sync.Once
	pumpDone  chan struct{}
}

// New validates the configuration and starts keeping the schema up to date.
// A failed initial refresh is reported to the observer and retried in the
// background; GetSchema returns an empty snapshot until the first success.
// Background work ends when ctx is cancelled or the session is closed.
func New(ctx context.Context, options Options, fetcher schemarefresh.Fetcher, source schemachange.Source, observer schemarefresh.Observer) (*Session, error) {
	var allErrs field.ErrorList
	allErrs = append(allErrs, ValidateOptions(&options, field.NewPath("options"))...)
	if options.SchemaMetadata {
		if fetcher == nil {
			allErrs = append(allErrs, field.Required(field.NewPath("fetcher"), "schema metadata requires a fetcher"))
		}
	} else if source != nil {
		allErrs = append(allErrs, field.Forbidden(field.NewPath("source"), "schema change source can't be used when schema metadata is disabled"))
	}
	if err := newConfigError(allErrs); err != nil {
		return nil, err
	}

	options = options.withDefaults()

	s := &Session{
		options:  options,
		cache:    schemacache.New(options.SchemaMetadata),
		pumpDone: make(chan struct{}),
	}

	if !options.SchemaMetadata {
		klog.V(2).InfoS("Schema metadata is disabled")
		close(s.pumpDone)
		return s, nil
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.controller = schemarefresh.New(s.cache, fetcher, observer, options.refreshOptions())
	go s.controller.Run(ctx)

	err := s.controller.RefreshNow(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.Close()
			return nil, fmt.Errorf("can't start session: %w", ctx.Err())
		}
		klog.ErrorS(err, "Initial schema refresh failed, will retry in the background")
	}

	if source == nil {
		close(s.pumpDone)
		return s, nil
	}

	go func() {
		defer close(s.pumpDone)
		s.pumpEvents(ctx, source)
	}()

	return s, nil
}

// pumpEvents forwards change events to the controller. When the stream ends
// it resubscribes with backoff and requests a full refresh, since events may
// have been missed in between.
func (s *Session) pumpEvents(ctx context.Context, source schemachange.Source) {
	b := retry.NewExponential(s.options.RetryInitialInterval, s.options.RetryMaxInterval)
	subscribed := false

	err := retry.WithNotify(ctx, func() error {
		ch, err := source.Subscribe(ctx)
		if err != nil {
			if errors.Is(err, schemachange.ErrSourceClosed) {
				return retry.Permanent(err)
			}
			return fmt.Errorf("can't subscribe to schema changes: %w", err)
		}

		if subscribed {
			s.controller.OnSchemaChangeEvent(schemachange.NewVersionEvent())
		}
		subscribed = true

		received := false
		for ev := range ch {
			received = true
			s.controller.OnSchemaChangeEvent(ev)
		}
		if received {
			b.Reset()
		}

		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return errStreamEnded
	}, b, func(err error, d time.Duration) {
		klog.V(2).InfoS("Resubscribing to schema changes", "Reason", err, "After", d)
	})
	if err != nil && ctx.Err() == nil {
		klog.ErrorS(err, "Stopped receiving schema changes")
	}
}

// GetSchema returns the current schema snapshot. It never blocks.
func (s *Session) GetSchema() *schema.Snapshot {
	return s.cache.Current()
}

func (s *Session) State() fsm.State {
	return s.cache.State()
}

func (s *Session) Options() Options {
	return s.options
}

// RefreshNow forces a refresh and waits for it to finish.
func (s *Session) RefreshNow(ctx context.Context) error {
	if s.controller == nil {
		return schemacache.ErrDisabled
	}
	return s.controller.RefreshNow(ctx)
}

// Close stops refreshing without waiting for a refresh in flight.
// The last published snapshot stays readable.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.controller != nil {
			s.controller.Stop()
			return
		}
		s.cache.Close()
	})
}

// Done is closed once the session stopped all of its background work.
func (s *Session) Done() <-chan struct{} {
	if s.controller == nil {
		return s.pumpDone
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-s.pumpDone
		<-s.controller.Done()
	}()
	return done
}
