// Copyright (C) 2025 ScyllaDB

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/schemacache"
	"github.com/scylladb/cql-schema-metadata/pkg/schemachange"
	"github.com/scylladb/cql-schema-metadata/pkg/schemarefresh"
	"go.uber.org/atomic"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/apimachinery/pkg/util/wait"
)

type fetcherFunc func(ctx context.Context) (schema.Rows, error)

func (f fetcherFunc) FetchSchemaRows(ctx context.Context) (schema.Rows, error) {
	return f(ctx)
}

func newRows(keyspaces ...string) schema.Rows {
	rows := schema.Rows{}
	for _, ks := range keyspaces {
		rows.Keyspaces = append(rows.Keyspaces, schema.Row{
			"keyspace_name":  ks,
			"durable_writes": true,
			"replication": map[string]string{
				"class": "org.apache.cassandra.locator.NetworkTopologyStrategy",
				"dc1":   "3",
			},
		})
	}
	return rows
}

// keyspacesFetcher serves whatever keyspaces were set last.
type keyspacesFetcher struct {
	lock      sync.Mutex
	keyspaces []string
}

func newKeyspacesFetcher(keyspaces ...string) *keyspacesFetcher {
	return &keyspacesFetcher{
		keyspaces: keyspaces,
	}
}

func (f *keyspacesFetcher) set(keyspaces ...string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.keyspaces = keyspaces
}

func (f *keyspacesFetcher) FetchSchemaRows(ctx context.Context) (schema.Rows, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return newRows(f.keyspaces...), nil
}

func testOptions() Options {
	o := DefaultOptions()
	o.RefreshDebounce = 0
	o.RetryInitialInterval = 5 * time.Millisecond
	o.RetryMaxInterval = 10 * time.Millisecond
	o.MaxRefreshRate = 0
	return o
}

func newTestSession(t *testing.T, options Options, fetcher schemarefresh.Fetcher, source schemachange.Source) *Session {
	t.Helper()

	s, err := New(context.Background(), options, fetcher, source, nil)
	if err != nil {
		t.Fatalf("can't create session: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		select {
		case <-s.Done():
		case <-time.After(wait.ForeverTestTimeout):
			t.Errorf("session didn't stop in time")
		}
	})

	return s
}

func waitForKeyspaces(t *testing.T, s *Session, expected ...string) {
	t.Helper()

	var got []string
	err := wait.PollUntilContextTimeout(context.Background(), 5*time.Millisecond, wait.ForeverTestTimeout, true, func(context.Context) (bool, error) {
		got = s.GetSchema().KeyspaceNames()
		return cmp.Equal(got, expected), nil
	})
	if err != nil {
		t.Fatalf("expected keyspaces %v, got %v", expected, got)
	}
}

func TestValidateOptions(t *testing.T) {
	tt := []struct {
		name           string
		options        func() Options
		expectedFields []string
	}{
		{
			name:           "defaults are valid",
			options:        DefaultOptions,
			expectedFields: nil,
		},
		{
			name: "disabled with zero tuning is valid",
			options: func() Options {
				return Options{}
			},
			expectedFields: nil,
		},
		{
			name: "disabled with default tuning is valid",
			options: func() Options {
				return DefaultOptions().ConfigureSchemaMetadata(false)
			},
			expectedFields: nil,
		},
		{
			name: "negative durations",
			options: func() Options {
				o := DefaultOptions()
				o.RefreshDebounce = -time.Second
				o.RefreshTimeout = -time.Second
				return o
			},
			expectedFields: []string{"options.refreshDebounce", "options.refreshTimeout"},
		},
		{
			name: "negative rate",
			options: func() Options {
				o := DefaultOptions()
				o.MaxRefreshRate = -1
				return o
			},
			expectedFields: []string{"options.maxRefreshRate"},
		},
		{
			name: "retry max lower than initial",
			options: func() Options {
				o := DefaultOptions()
				o.RetryInitialInterval = time.Minute
				o.RetryMaxInterval = time.Second
				return o
			},
			expectedFields: []string{"options.retryMaxInterval"},
		},
		{
			name: "zero retry max falls back to the default",
			options: func() Options {
				o := DefaultOptions()
				o.RetryInitialInterval = 5 * time.Second
				o.RetryMaxInterval = 0
				return o
			},
			expectedFields: nil,
		},
		{
			name: "default retry initial above retry max",
			options: func() Options {
				o := DefaultOptions()
				o.RetryInitialInterval = 0
				o.RetryMaxInterval = 500 * time.Millisecond
				return o
			},
			expectedFields: []string{"options.retryMaxInterval"},
		},
		{
			name: "refresh tuning with metadata disabled",
			options: func() Options {
				o := DefaultOptions().ConfigureSchemaMetadata(false)
				o.RefreshDebounce = 5 * time.Second
				o.MaxRefreshRate = 10
				return o
			},
			expectedFields: []string{"options.refreshDebounce", "options.maxRefreshRate"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			o := tc.options()
			errs := ValidateOptions(&o, field.NewPath("options"))

			var got []string
			for _, err := range errs {
				got = append(got, err.Field)
			}
			if !cmp.Equal(got, tc.expectedFields) {
				t.Errorf("expected and got fields differ:\n%s", cmp.Diff(tc.expectedFields, got))
			}

			err := o.Validate()
			if (err != nil) != (len(tc.expectedFields) != 0) {
				t.Errorf("unexpected Validate result: %v", err)
			}
		})
	}
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	tt := []struct {
		name          string
		options       Options
		fetcher       fetcherFunc
		source        schemachange.Source
		expectedField string
	}{
		{
			name:          "disabled with a change source",
			options:       DefaultOptions().ConfigureSchemaMetadata(false),
			source:        schemachange.NewChannelSource(1),
			expectedField: "source",
		},
		{
			name:          "enabled without a fetcher",
			options:       DefaultOptions(),
			expectedField: "fetcher",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var fetcher schemarefresh.Fetcher
			if tc.fetcher != nil {
				fetcher = tc.fetcher
			}

			s, err := New(context.Background(), tc.options, fetcher, tc.source, nil)
			if s != nil {
				t.Errorf("expected no session")
			}

			var configErr *ConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
			if len(configErr.Errs) != 1 || configErr.Errs[0].Field != tc.expectedField {
				t.Errorf("expected a single error for %q, got %v", tc.expectedField, configErr.Errs)
			}
		})
	}
}

func TestNewDefaultsZeroRetryIntervals(t *testing.T) {
	o := testOptions()
	o.RetryInitialInterval = 5 * time.Second
	o.RetryMaxInterval = 0

	s := newTestSession(t, o, newKeyspacesFetcher("ks"), nil)

	got := s.Options()
	if got.RetryInitialInterval != 5*time.Second {
		t.Errorf("expected retry initial interval %v, got %v", 5*time.Second, got.RetryInitialInterval)
	}
	if got.RetryMaxInterval != DefaultOptions().RetryMaxInterval {
		t.Errorf("expected retry max interval %v, got %v", DefaultOptions().RetryMaxInterval, got.RetryMaxInterval)
	}
}

func TestDisabledSession(t *testing.T) {
	fetcher := newKeyspacesFetcher("ks")

	disabled := newTestSession(t, DefaultOptions().ConfigureSchemaMetadata(false), nil, nil)
	enabled := newTestSession(t, testOptions(), fetcher, nil)

	snap := disabled.GetSchema()
	if !snap.Disabled() {
		t.Errorf("expected disabled snapshot")
	}
	if n := snap.Count(); n != 0 {
		t.Errorf("expected zero keyspaces, got %d", n)
	}
	if snap.Equal(enabled.GetSchema()) {
		t.Errorf("expected disabled snapshot to differ from an enabled one")
	}
	if snap.Equal(schema.NewEmptySnapshot()) {
		t.Errorf("expected disabled snapshot to differ from an empty one")
	}

	if err := disabled.RefreshNow(context.Background()); !errors.Is(err, schemacache.ErrDisabled) {
		t.Errorf("expected %v, got %v", schemacache.ErrDisabled, err)
	}
}

func TestSessionInitialRefresh(t *testing.T) {
	fetcher := newKeyspacesFetcher("ks", "other")

	s := newTestSession(t, testOptions(), fetcher, nil)

	// The initial refresh finishes before New returns.
	got := s.GetSchema().KeyspaceNames()
	expected := []string{"ks", "other"}
	if !cmp.Equal(got, expected) {
		t.Errorf("expected and got keyspaces differ:\n%s", cmp.Diff(expected, got))
	}
	if s.State() != schemacache.StateReady {
		t.Errorf("expected state %v, got %v", schemacache.StateReady, s.State())
	}
}

func TestSessionInitialRefreshFailureIsNotFatal(t *testing.T) {
	calls := atomic.NewInt64(0)
	fetcher := fetcherFunc(func(ctx context.Context) (schema.Rows, error) {
		if calls.Inc() == 1 {
			return schema.Rows{}, errors.New("no hosts available")
		}
		return newRows("ks"), nil
	})

	s := newTestSession(t, testOptions(), fetcher, nil)

	waitForKeyspaces(t, s, "ks")
	if n := calls.Load(); n < 2 {
		t.Errorf("expected at least 2 fetches, got %d", n)
	}
}

func TestSessionFollowsChangeEvents(t *testing.T) {
	fetcher := newKeyspacesFetcher("ks")
	source := schemachange.NewChannelSource(4)
	t.Cleanup(source.Close)

	s := newTestSession(t, testOptions(), fetcher, source)
	waitForKeyspaces(t, s, "ks")

	fetcher.set("ks", "new_ks")

	// The pump subscribes in the background.
	err := wait.PollUntilContextTimeout(context.Background(), 5*time.Millisecond, wait.ForeverTestTimeout, true, func(context.Context) (bool, error) {
		source.Publish(schemachange.Event{
			Change:   schemachange.ChangeCreated,
			Target:   schemachange.TargetKeyspace,
			Keyspace: "new_ks",
		})
		return cmp.Equal(s.GetSchema().KeyspaceNames(), []string{"ks", "new_ks"}), nil
	})
	if err != nil {
		t.Fatalf("expected new keyspace to appear, got %v", s.GetSchema().KeyspaceNames())
	}
}

// flakySource ends its first stream right away.
type flakySource struct {
	subscriptions *atomic.Int64
}

func (f *flakySource) Subscribe(ctx context.Context) (<-chan schemachange.Event, error) {
	ch := make(chan schemachange.Event)
	if f.subscriptions.Inc() == 1 {
		close(ch)
		return ch, nil
	}

	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestSessionResubscribesAndRefreshes(t *testing.T) {
	calls := atomic.NewInt64(0)
	fetcher := fetcherFunc(func(ctx context.Context) (schema.Rows, error) {
		if calls.Inc() == 1 {
			return newRows("ks"), nil
		}
		return newRows("ks", "missed"), nil
	})
	source := &flakySource{subscriptions: atomic.NewInt64(0)}

	s := newTestSession(t, testOptions(), fetcher, source)

	waitForKeyspaces(t, s, "ks", "missed")

	if n := source.subscriptions.Load(); n < 2 {
		t.Errorf("expected at least 2 subscriptions, got %d", n)
	}
}

func TestCloseDoesNotWaitForRefresh(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	calls := atomic.NewInt64(0)
	fetcher := fetcherFunc(func(ctx context.Context) (schema.Rows, error) {
		if calls.Inc() == 1 {
			return newRows("ks"), nil
		}
		// Ignores cancellation on purpose.
		<-release
		return newRows("late"), nil
	})

	s, err := New(context.Background(), testOptions(), fetcher, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	refreshErr := make(chan error, 1)
	go func() {
		refreshErr <- s.RefreshNow(context.Background())
	}()

	err = wait.PollUntilContextTimeout(context.Background(), 5*time.Millisecond, wait.ForeverTestTimeout, true, func(context.Context) (bool, error) {
		return calls.Load() == 2, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		s.Close()
	}()
	select {
	case <-closed:
	case <-time.After(wait.ForeverTestTimeout):
		t.Fatalf("Close blocked on a refresh in flight")
	}

	select {
	case err := <-refreshErr:
		if err == nil {
			t.Errorf("expected the pending refresh to fail after Close")
		}
	case <-time.After(wait.ForeverTestTimeout):
		t.Fatalf("pending refresh wasn't released")
	}

	got := s.GetSchema().KeyspaceNames()
	expected := []string{"ks"}
	if !cmp.Equal(got, expected) {
		t.Errorf("expected and got keyspaces differ:\n%s", cmp.Diff(expected, got))
	}
}
