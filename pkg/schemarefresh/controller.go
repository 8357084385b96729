// Copyright (C) 2025 ScyllaDB

package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/schemacache"
	"github.com/scylladb/cql-schema-metadata/pkg/schemachange"
	"github.com/scylladb/cql-schema-metadata/pkg/util/hash"
	"github.com/scylladb/cql-schema-metadata/pkg/util/retry"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

var (
	ErrStopped   = errors.New("schema refresh controller is stopped")
	ErrDiscarded = errors.New("refreshed schema snapshot was discarded")
)

// Fetcher reads the raw schema rows from the cluster.
type Fetcher interface {
	FetchSchemaRows(ctx context.Context) (schema.Rows, error)
}

type Options struct {
	// Debounce is how long the controller waits for more change events before refreshing.
	Debounce time.Duration
	// RetryInitialInterval and RetryMaxInterval bound the delay before retrying a failed refresh.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// RefreshTimeout limits a single fetch. Zero means no limit.
	RefreshTimeout time.Duration
	// MaxRefreshRate limits refresh passes per second. Zero means no limit.
	MaxRefreshRate float64
}

func DefaultOptions() Options {
	return Options{
		Debounce:             time.Second,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RefreshTimeout:       30 * time.Second,
		MaxRefreshRate:       1,
	}
}

// Controller keeps a schema cache up to date.
// Refresh passes are serialized; triggers that arrive while a pass runs
// coalesce into a single follow-up pass.
type Controller struct {
	cache    *schemacache.Cache
	fetcher  Fetcher
	observer Observer
	options  Options

	limiter   *rate.Limiter
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}

	lock          sync.Mutex
	backoff       retry.Backoff
	debounceTimer *time.Timer
	retryTimer    *time.Timer
	broadcaster   *errorBroadcaster
	cancel        context.CancelFunc
	started       bool
	stopped       bool
}

func New(cache *schemacache.Cache, fetcher Fetcher, observer Observer, options Options) *Controller {
	if observer == nil {
		observer = NopObserver{}
	}

	limit := rate.Inf
	if options.MaxRefreshRate > 0 {
		limit = rate.Limit(options.MaxRefreshRate)
	}

	return &Controller{
		cache:     cache,
		fetcher:   fetcher,
		observer:  observer,
		options:   options,
		limiter:   rate.NewLimiter(limit, 1),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		backoff:   retry.NewExponential(options.RetryInitialInterval, options.RetryMaxInterval),
	}
}

// Run processes refresh triggers until ctx is cancelled or the controller is stopped.
func (c *Controller) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.lock.Lock()
	if c.stopped || c.started {
		c.lock.Unlock()
		return
	}
	c.started = true
	c.cancel = cancel
	c.lock.Unlock()

	defer close(c.doneCh)
	defer c.Stop()

	klog.V(2).InfoS("Starting schema refresh controller")
	defer klog.V(2).InfoS("Shutting down schema refresh controller")

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.triggerCh:
		}

		err := c.limiter.Wait(ctx)
		if err != nil {
			return
		}

		c.lock.Lock()
		if c.stopped {
			c.lock.Unlock()
			return
		}

		// Everything requested so far is served by this pass.
		select {
		case <-c.triggerCh:
		default:
		}
		if c.debounceTimer != nil {
			c.debounceTimer.Stop()
		}
		curBroadcaster := c.broadcaster
		c.broadcaster = nil
		c.lock.Unlock()

		err = c.refresh(ctx)
		if curBroadcaster != nil {
			curBroadcaster.broadcast(err)
		}
	}
}

// Done is closed once Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.doneCh
}

func (c *Controller) trigger() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
		// A pass is already pending.
	}
}

// OnSchemaChangeEvent schedules a debounced refresh. A pending retry is
// replaced by the refresh the event schedules.
func (c *Controller) OnSchemaChangeEvent(ev schemachange.Event) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.stopped {
		return
	}

	klog.V(4).InfoS("Received schema change event", "Event", ev)

	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}

	if c.options.Debounce <= 0 {
		c.trigger()
		return
	}

	if c.debounceTimer == nil {
		c.debounceTimer = time.AfterFunc(c.options.Debounce, c.trigger)
		return
	}
	c.debounceTimer.Reset(c.options.Debounce)
}

// RefreshNow requests an immediate refresh and waits for the result of the
// first pass that starts after the call.
func (c *Controller) RefreshNow(ctx context.Context) error {
	c.lock.Lock()
	if c.stopped {
		c.lock.Unlock()
		return ErrStopped
	}
	if c.broadcaster == nil {
		c.broadcaster = newErrorBroadcaster()
	}
	ch := c.broadcaster.newListener()
	c.trigger()
	c.lock.Unlock()

	select {
	case err := <-ch:
		return err
	case <-c.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) refresh(ctx context.Context) error {
	token, err := c.cache.BeginRefresh()
	if err != nil {
		return err
	}

	c.observer.RefreshStarted()
	start := time.Now()

	fetchCtx := ctx
	if c.options.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.options.RefreshTimeout)
		defer cancel()
	}

	rows, err := c.fetcher.FetchSchemaRows(fetchCtx)
	if err != nil {
		c.cache.AbortRefresh(token, err)

		if ctx.Err() != nil {
			// Torn down mid-refresh.
			c.observer.RefreshDiscarded(time.Since(start))
			return ErrStopped
		}

		c.observer.RefreshFailed(err, time.Since(start))
		c.scheduleRetry()
		return fmt.Errorf("can't fetch schema rows: %w", err)
	}

	snap := schema.Build(rows)
	if errs := snap.Errors(); len(errs) != 0 {
		c.observer.DecodeErrors(errs)
	}

	unchanged := snap.Fingerprint() == c.cache.Current().Fingerprint()

	if !c.cache.Publish(token, snap) {
		c.observer.RefreshDiscarded(time.Since(start))
		return ErrDiscarded
	}

	c.resetRetry()

	if unchanged {
		klog.V(4).InfoS("Schema is unchanged", "Version", token, "Fingerprint", hash.Short(snap.Fingerprint()))
	}

	c.observer.RefreshSucceeded(c.cache.Current(), time.Since(start))

	return nil
}

func (c *Controller) scheduleRetry() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.stopped {
		return
	}

	d := c.backoff.NextBackOff()
	if d == retry.Stop {
		return
	}

	klog.V(2).InfoS("Scheduling schema refresh retry", "After", d)

	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(d, c.trigger)
}

func (c *Controller) resetRetry() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.backoff.Reset()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
}

// Disable publishes the disabled snapshot and stops the controller for good.
func (c *Controller) Disable() {
	c.cache.Disable()
	c.Stop()
}

// Stop tears the controller down without waiting for a refresh in flight.
// The cache is closed so a late result is discarded.
func (c *Controller) Stop() {
	c.lock.Lock()
	if c.stopped {
		c.lock.Unlock()
		return
	}
	c.stopped = true
	close(c.stopCh)

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}

	curBroadcaster := c.broadcaster
	c.broadcaster = nil
	started := c.started
	c.lock.Unlock()

	c.cache.Close()

	if curBroadcaster != nil {
		curBroadcaster.broadcast(ErrStopped)
	}

	if !started {
		close(c.doneCh)
	}
}
