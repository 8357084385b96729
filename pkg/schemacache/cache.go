// Copyright (C) 2025 ScyllaDB

package schemacache

import (
	"errors"
	"sync"

	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/util/fsm"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

const (
	StateUninitialized fsm.State = "Uninitialized"
	StateLoading       fsm.State = "Loading"
	StateReady         fsm.State = "Ready"
)

var transitions = fsm.Transitions{
	StateUninitialized: {StateLoading, StateReady},
	// Loading -> Loading happens when a refresh is reserved while an older one is still running.
	StateLoading: {StateLoading, StateReady, StateUninitialized},
	StateReady:   {StateLoading, StateReady},
}

var (
	ErrDisabled = errors.New("schema metadata is disabled")
	ErrClosed   = errors.New("schema cache is closed")
)

// Cache holds the snapshot readers currently see.
// Readers never block: Current is a single atomic load. Writers reserve a
// version with BeginRefresh and publish with it; a publish only wins if its
// version is newer than the published one.
type Cache struct {
	current *atomic.Pointer[schema.Snapshot]

	lock      sync.Mutex
	state     *fsm.StateMachine
	reserved  uint64
	published uint64
	ready     bool
	disabled  bool
	closed    bool
}

// New returns a cache. A disabled cache is Ready from the start and serves the
// disabled snapshot; an enabled one serves an empty snapshot until the first publish.
func New(enabled bool) *Cache {
	c := &Cache{
		current: atomic.NewPointer(schema.NewEmptySnapshot()),
		state: fsm.New(StateUninitialized, transitions, func(from, to fsm.State) error {
			klog.V(4).InfoS("Schema cache state changed", "From", from, "To", to)
			return nil
		}),
	}

	if !enabled {
		c.Disable()
	}

	return c
}

// Current returns the published snapshot. It never returns nil.
func (c *Cache) Current() *schema.Snapshot {
	return c.current.Load()
}

func (c *Cache) State() fsm.State {
	return c.state.Current()
}

// Version returns the version of the published snapshot.
func (c *Cache) Version() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.published
}

func (c *Cache) Disabled() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.disabled
}

func (c *Cache) transition(to fsm.State) {
	err := c.state.Transition(to)
	if err != nil {
		// Every caller holds the lock and checks the state first.
		panic(err)
	}
}

// BeginRefresh reserves a version for a refresh pass and moves the cache to Loading.
func (c *Cache) BeginRefresh() (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return 0, ErrClosed
	}
	if c.disabled {
		return 0, ErrDisabled
	}

	c.reserved++
	c.transition(StateLoading)

	return c.reserved, nil
}

// Publish makes snap current if token is newer than the published version.
// It reports whether snap was published. Publishing is a no-op once the
// cache is closed or disabled.
func (c *Cache) Publish(token uint64, snap *schema.Snapshot) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed || c.disabled {
		klog.V(4).InfoS("Discarding schema snapshot", "Version", token, "Closed", c.closed, "Disabled", c.disabled)
		return false
	}

	if token <= c.published || token > c.reserved {
		klog.V(4).InfoS("Discarding stale schema snapshot", "Version", token, "Published", c.published)
		return false
	}

	c.current.Store(snap.WithVersion(token))
	c.published = token
	c.ready = true

	if token == c.reserved {
		c.transition(StateReady)
	}

	return true
}

// AbortRefresh ends the refresh reserved with token without touching the
// published snapshot.
func (c *Cache) AbortRefresh(token uint64, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	klog.V(2).InfoS("Schema refresh aborted", "Version", token, "Error", err)

	if c.closed || c.disabled || token != c.reserved || c.state.Current() != StateLoading {
		return
	}

	if c.ready {
		c.transition(StateReady)
	} else {
		c.transition(StateUninitialized)
	}
}

// Disable publishes the disabled snapshot with a version newer than any
// reserved one, so no refresh in flight can replace it.
func (c *Cache) Disable() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.disabled {
		return c.published
	}

	c.disabled = true
	c.reserved++
	c.published = c.reserved
	c.ready = true
	c.current.Store(schema.NewDisabledSnapshot().WithVersion(c.published))
	c.transition(StateReady)

	return c.published
}

// Close makes every later publish a no-op. The current snapshot stays readable.
func (c *Cache) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.closed = true
}
