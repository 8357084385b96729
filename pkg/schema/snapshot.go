// Copyright (C) 2025 ScyllaDB

package schema

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	outilerrors "github.com/scylladb/cql-schema-metadata/pkg/util/errors"
	"github.com/scylladb/cql-schema-metadata/pkg/util/hash"
	"github.com/scylladb/cql-schema-metadata/pkg/util/lazy"
	"k8s.io/klog/v2"
)

const maxReportedErrors = 20

// Snapshot is an immutable view of the cluster schema at one point in time.
type Snapshot struct {
	keyspaces map[string]*KeyspaceMetadata
	disabled  bool
	version   uint64
	errs      []error

	fingerprint *lazy.Value[string]
}

func newSnapshot(keyspaces map[string]*KeyspaceMetadata, disabled bool, errs []error) *Snapshot {
	s := &Snapshot{
		keyspaces: keyspaces,
		disabled:  disabled,
		errs:      errs,
	}
	s.fingerprint = lazy.New(s.computeFingerprint)
	return s
}

// NewEmptySnapshot returns a snapshot of a cluster without any keyspaces.
func NewEmptySnapshot() *Snapshot {
	return newSnapshot(map[string]*KeyspaceMetadata{}, false, nil)
}

// NewDisabledSnapshot returns the snapshot served when schema metadata
// collection is turned off. It has no keyspaces and reports Disabled.
func NewDisabledSnapshot() *Snapshot {
	return newSnapshot(map[string]*KeyspaceMetadata{}, true, nil)
}

// Keyspaces returns a copy of the keyspace mapping. The metadata it points to
// is shared and must not be modified.
func (s *Snapshot) Keyspaces() map[string]*KeyspaceMetadata {
	res := make(map[string]*KeyspaceMetadata, len(s.keyspaces))
	for name, ks := range s.keyspaces {
		res[name] = ks
	}
	return res
}

func (s *Snapshot) Keyspace(name string) *KeyspaceMetadata {
	return s.keyspaces[name]
}

// KeyspaceNames returns sorted keyspace names.
func (s *Snapshot) KeyspaceNames() []string {
	names := make([]string, 0, len(s.keyspaces))
	for name := range s.keyspaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Snapshot) Table(keyspace, table string) *TableMetadata {
	ks := s.keyspaces[keyspace]
	if ks == nil {
		return nil
	}
	return ks.Tables[table]
}

// Count returns the number of keyspaces.
func (s *Snapshot) Count() int {
	return len(s.keyspaces)
}

func (s *Snapshot) Disabled() bool {
	return s.disabled
}

// Version is the cache version the snapshot was published with. It is zero
// for snapshots that were never published.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// WithVersion returns a copy of the snapshot carrying version. The metadata
// tree is shared.
func (s *Snapshot) WithVersion(version uint64) *Snapshot {
	c := *s
	c.version = version
	return &c
}

// Errors returns the problems found while building the snapshot.
func (s *Snapshot) Errors() []error {
	return s.errs
}

// Err aggregates Errors into a single error, or returns nil.
func (s *Snapshot) Err() error {
	return outilerrors.NewLimitedAggregate(s.errs, "\n", maxReportedErrors)
}

// Fingerprint is a structural hash of the schema content. Snapshots with
// equal content have equal fingerprints regardless of their versions.
func (s *Snapshot) Fingerprint() string {
	return s.fingerprint.Get()
}

func (s *Snapshot) computeFingerprint() string {
	h, err := hash.HashObjects(s.disabled, s.keyspaces)
	if err != nil {
		klog.ErrorS(err, "Can't compute schema fingerprint")
		return ""
	}
	return h
}

// Equal reports whether both snapshots describe the same schema. Versions
// and build errors are not compared.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.disabled == other.disabled && cmp.Equal(s.keyspaces, other.keyspaces)
}
