// Copyright (C) 2025 ScyllaDB

package schemarefresh

import (
	"time"

	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/util/hash"
	"k8s.io/klog/v2"
)

// Observer is told about every refresh pass. Calls come from the refresh
// worker and must not block. Every RefreshStarted is followed by exactly one of
// RefreshSucceeded, RefreshFailed or RefreshDiscarded.
type Observer interface {
	RefreshStarted()
	RefreshSucceeded(snap *schema.Snapshot, duration time.Duration)
	RefreshFailed(err error, duration time.Duration)
	// RefreshDiscarded is called when a pass ends without publishing because the
	// controller was stopped or the cache no longer accepts snapshots.
	RefreshDiscarded(duration time.Duration)
	DecodeErrors(errs []error)
}

type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) RefreshStarted()                                         {}
func (NopObserver) RefreshSucceeded(snap *schema.Snapshot, d time.Duration) {}
func (NopObserver) RefreshFailed(err error, d time.Duration)                {}
func (NopObserver) RefreshDiscarded(d time.Duration)                        {}
func (NopObserver) DecodeErrors(errs []error)                               {}

// LoggingObserver reports refreshes through klog.
type LoggingObserver struct{}

var _ Observer = LoggingObserver{}

func (LoggingObserver) RefreshStarted() {
	klog.V(4).InfoS("Refreshing schema metadata")
}

func (LoggingObserver) RefreshSucceeded(snap *schema.Snapshot, d time.Duration) {
	klog.V(2).InfoS("Refreshed schema metadata",
		"Version", snap.Version(),
		"Keyspaces", snap.Count(),
		"Fingerprint", hash.Short(snap.Fingerprint()),
		"Duration", d,
	)
}

func (LoggingObserver) RefreshFailed(err error, d time.Duration) {
	klog.ErrorS(err, "Can't refresh schema metadata", "Duration", d)
}

func (LoggingObserver) RefreshDiscarded(d time.Duration) {
	klog.V(2).InfoS("Discarded schema refresh result", "Duration", d)
}

func (LoggingObserver) DecodeErrors(errs []error) {
	for _, err := range errs {
		klog.InfoS("Skipping malformed schema metadata", "Error", err)
	}
}

// MultiObserver fans every call out to all of its observers in order.
type MultiObserver []Observer

var _ Observer = MultiObserver{}

func (m MultiObserver) RefreshStarted() {
	for _, o := range m {
		o.RefreshStarted()
	}
}

func (m MultiObserver) RefreshSucceeded(snap *schema.Snapshot, d time.Duration) {
	for _, o := range m {
		o.RefreshSucceeded(snap, d)
	}
}

func (m MultiObserver) RefreshFailed(err error, d time.Duration) {
	for _, o := range m {
		o.RefreshFailed(err, d)
	}
}

func (m MultiObserver) RefreshDiscarded(d time.Duration) {
	for _, o := range m {
		o.RefreshDiscarded(d)
	}
}

func (m MultiObserver) DecodeErrors(errs []error) {
	for _, o := range m {
		o.DecodeErrors(errs)
	}
}
