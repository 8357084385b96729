// Copyright (C) 2025 ScyllaDB

package cqlsource

import (
	"context"
	"errors"
	"time"

	"github.com/scylladb/cql-schema-metadata/pkg/schemachange"
	"github.com/scylladb/gocqlx/v2/qb"
	"go.uber.org/atomic"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// VersionWatcher is a schemachange.Source that polls the schema version of the
// coordinator node and emits a version event whenever it changes.
type VersionWatcher struct {
	interval    time.Duration
	readVersion func(ctx context.Context) (string, error)
	lastVersion *atomic.String
}

var _ schemachange.Source = &VersionWatcher{}

func NewVersionWatcher(session Querier, interval time.Duration) *VersionWatcher {
	stmt, names := qb.Select(localTable).Columns("schema_version").Where(qb.Eq("key")).ToCql()

	return newVersionWatcher(interval, func(ctx context.Context) (string, error) {
		var local localRow
		err := session.Query(stmt, names).WithContext(ctx).BindMap(qb.M{"key": "local"}).GetRelease(&local)
		if err != nil {
			return "", &QueryError{Table: localTable, Err: err}
		}
		if local.SchemaVersion.IsNil() {
			return "", &QueryError{Table: localTable, Err: errors.New("schema_version is null")}
		}
		return local.SchemaVersion.String(), nil
	})
}

func newVersionWatcher(interval time.Duration, readVersion func(ctx context.Context) (string, error)) *VersionWatcher {
	return &VersionWatcher{
		interval:    interval,
		readVersion: readVersion,
		lastVersion: atomic.NewString(""),
	}
}

// Subscribe starts polling. The first observed version only establishes the
// baseline, unless a previous subscription already saw a different one.
func (w *VersionWatcher) Subscribe(ctx context.Context) (<-chan schemachange.Event, error) {
	ch := make(chan schemachange.Event, 1)

	go func() {
		defer close(ch)

		wait.UntilWithContext(ctx, func(ctx context.Context) {
			w.poll(ctx, ch)
		}, w.interval)
	}()

	return ch, nil
}

func (w *VersionWatcher) poll(ctx context.Context, ch chan<- schemachange.Event) {
	version, err := w.readVersion(ctx)
	if err != nil {
		if ctx.Err() == nil {
			klog.V(2).InfoS("Can't read schema version", "Error", err)
		}
		return
	}

	previous := w.lastVersion.Swap(version)
	if previous == "" || previous == version {
		return
	}

	klog.V(4).InfoS("Schema version changed", "Previous", previous, "Current", version)

	select {
	case ch <- schemachange.NewVersionEvent():
	default:
		// A pending event already covers this change.
	}
}

// Version returns the last observed schema version.
func (w *VersionWatcher) Version() string {
	return w.lastVersion.Load()
}
