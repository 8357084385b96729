// Copyright (C) 2025 ScyllaDB

package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/scylladb/cql-schema-metadata/pkg/cqltype"
)

type ColumnKind string

const (
	ColumnPartitionKey  ColumnKind = "partition_key"
	ColumnClusteringKey ColumnKind = "clustering"
	ColumnRegular       ColumnKind = "regular"
	ColumnStatic        ColumnKind = "static"
	ColumnCompactValue  ColumnKind = "compact_value"
)

func (k ColumnKind) isKey() bool {
	return k == ColumnPartitionKey || k == ColumnClusteringKey
}

type ClusteringOrder string

const (
	OrderNone ClusteringOrder = "none"
	OrderASC  ClusteringOrder = "asc"
	OrderDESC ClusteringOrder = "desc"
)

// All metadata records are shared by every reader of a snapshot and must be
// treated as read-only.

type ColumnMetadata struct {
	Keyspace string `json:"keyspace"`
	Table    string `json:"table"`
	Name     string `json:"name"`

	// Type is nil when RawType couldn't be parsed.
	Type    *cqltype.Type `json:"type"`
	RawType string        `json:"rawType"`

	Kind ColumnKind `json:"kind"`
	// Position is the component index within the partition key or the
	// clustering key and -1 for other columns.
	Position        int             `json:"position"`
	ClusteringOrder ClusteringOrder `json:"clusteringOrder"`

	Comment   *string `json:"comment"`
	IndexName *string `json:"indexName"`
}

type IndexMetadata struct {
	Keyspace string            `json:"keyspace"`
	Table    string            `json:"table"`
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Options  map[string]string `json:"options,omitempty"`
	// Target is the raw "target" option, e.g. "keys(m)" or "\"MyColumn\"".
	Target string `json:"target"`
}

type TableMetadata struct {
	Keyspace string `json:"keyspace"`
	Name     string `json:"name"`

	Comment *string `json:"comment"`

	// Columns are ordered as declared: partition key components, clustering
	// components, then the remaining columns.
	Columns []*ColumnMetadata `json:"columns"`

	Indexes map[string]*IndexMetadata `json:"indexes,omitempty"`

	// Options holds the remaining table properties rendered as strings.
	// Map valued properties are flattened to "property.key".
	Options map[string]string `json:"options,omitempty"`
	Flags   []string          `json:"flags,omitempty"`
}

func (t *TableMetadata) Column(name string) *ColumnMetadata {
	return findColumn(t.Columns, name)
}

func (t *TableMetadata) PartitionKey() []*ColumnMetadata {
	return filterColumns(t.Columns, ColumnPartitionKey)
}

func (t *TableMetadata) ClusteringColumns() []*ColumnMetadata {
	return filterColumns(t.Columns, ColumnClusteringKey)
}

type ViewMetadata struct {
	Keyspace          string            `json:"keyspace"`
	Name              string            `json:"name"`
	BaseTable         string            `json:"baseTable"`
	WhereClause       string            `json:"whereClause"`
	IncludeAllColumns bool              `json:"includeAllColumns"`
	Comment           *string           `json:"comment"`
	Columns           []*ColumnMetadata `json:"columns"`
	Options           map[string]string `json:"options,omitempty"`
}

func (v *ViewMetadata) Column(name string) *ColumnMetadata {
	return findColumn(v.Columns, name)
}

type KeyspaceMetadata struct {
	Name          string `json:"name"`
	DurableWrites bool   `json:"durableWrites"`

	// Replication is passed through as stored.
	Replication map[string]string `json:"replication"`

	Tables map[string]*TableMetadata `json:"tables"`
	Views  map[string]*ViewMetadata  `json:"views,omitempty"`

	// UserTypes maps a user defined type name to its resolved definition.
	UserTypes map[string]*cqltype.Type `json:"userTypes,omitempty"`
}

func (k *KeyspaceMetadata) Table(name string) *TableMetadata {
	return k.Tables[name]
}

// TableNames returns sorted table names.
func (k *KeyspaceMetadata) TableNames() []string {
	names := make([]string, 0, len(k.Tables))
	for name := range k.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type ReplicationStrategy struct {
	Class             string         `mapstructure:"class"`
	ReplicationFactor int            `mapstructure:"replication_factor"`
	DatacenterFactors map[string]int `mapstructure:",remain"`
}

// ShortClass strips the Java package from the strategy class name.
func (rs ReplicationStrategy) ShortClass() string {
	return rs.Class[strings.LastIndex(rs.Class, ".")+1:]
}

// ReplicationStrategy decodes Replication into its typed form. Every option
// other than class and replication_factor is treated as a datacenter factor.
func (k *KeyspaceMetadata) ReplicationStrategy() (ReplicationStrategy, error) {
	var rs ReplicationStrategy

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rs,
	})
	if err != nil {
		return rs, fmt.Errorf("can't create replication decoder: %w", err)
	}

	err = decoder.Decode(k.Replication)
	if err != nil {
		return rs, fmt.Errorf("can't decode replication of keyspace %q: %w", k.Name, err)
	}

	return rs, nil
}

func findColumn(columns []*ColumnMetadata, name string) *ColumnMetadata {
	for _, c := range columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func filterColumns(columns []*ColumnMetadata, kind ColumnKind) []*ColumnMetadata {
	var res []*ColumnMetadata
	for _, c := range columns {
		if c.Kind == kind {
			res = append(res, c)
		}
	}
	return res
}
