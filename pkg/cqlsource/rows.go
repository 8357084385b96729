// Copyright (C) 2025 ScyllaDB

package cqlsource

import (
	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/util/uuid"
)

const (
	keyspacesTable = "system_schema.keyspaces"
	tablesTable    = "system_schema.tables"
	columnsTable   = "system_schema.columns"
	indexesTable   = "system_schema.indexes"
	typesTable     = "system_schema.types"
	viewsTable     = "system_schema.views"
	localTable     = "system.local"
)

// Nullable columns are scanned into pointers so that nulls stay distinguishable from zero values.

type keyspaceRow struct {
	KeyspaceName  string            `db:"keyspace_name"`
	DurableWrites *bool             `db:"durable_writes"`
	Replication   map[string]string `db:"replication"`
}

func (r *keyspaceRow) toRow() schema.Row {
	return schema.Row{
		"keyspace_name":  r.KeyspaceName,
		"durable_writes": r.DurableWrites,
		"replication":    r.Replication,
	}
}

// tableOptions are the options present in every supported release.
type tableOptions struct {
	BloomFilterFpChance     *float64          `db:"bloom_filter_fp_chance"`
	Caching                 map[string]string `db:"caching"`
	Comment                 *string           `db:"comment"`
	Compaction              map[string]string `db:"compaction"`
	Compression             map[string]string `db:"compression"`
	CrcCheckChance          *float64          `db:"crc_check_chance"`
	DefaultTimeToLive       *int              `db:"default_time_to_live"`
	GcGraceSeconds          *int              `db:"gc_grace_seconds"`
	MaxIndexInterval        *int              `db:"max_index_interval"`
	MemtableFlushPeriodInMs *int              `db:"memtable_flush_period_in_ms"`
	MinIndexInterval        *int              `db:"min_index_interval"`
	SpeculativeRetry        *string           `db:"speculative_retry"`
}

var tableOptionColumns = []string{
	"bloom_filter_fp_chance",
	"caching",
	"comment",
	"compaction",
	"compression",
	"crc_check_chance",
	"default_time_to_live",
	"gc_grace_seconds",
	"max_index_interval",
	"memtable_flush_period_in_ms",
	"min_index_interval",
	"speculative_retry",
}

func (o *tableOptions) addTo(row schema.Row) schema.Row {
	row["bloom_filter_fp_chance"] = o.BloomFilterFpChance
	row["caching"] = o.Caching
	row["comment"] = o.Comment
	row["compaction"] = o.Compaction
	row["compression"] = o.Compression
	row["crc_check_chance"] = o.CrcCheckChance
	row["default_time_to_live"] = o.DefaultTimeToLive
	row["gc_grace_seconds"] = o.GcGraceSeconds
	row["max_index_interval"] = o.MaxIndexInterval
	row["memtable_flush_period_in_ms"] = o.MemtableFlushPeriodInMs
	row["min_index_interval"] = o.MinIndexInterval
	row["speculative_retry"] = o.SpeculativeRetry
	return row
}

type tableRow struct {
	KeyspaceName string   `db:"keyspace_name"`
	TableName    string   `db:"table_name"`
	Flags        []string `db:"flags"`
	tableOptions
}

func (r *tableRow) toRow() schema.Row {
	return r.tableOptions.addTo(schema.Row{
		"keyspace_name": r.KeyspaceName,
		"table_name":    r.TableName,
		"flags":         r.Flags,
	})
}

type viewRow struct {
	KeyspaceName      string  `db:"keyspace_name"`
	ViewName          string  `db:"view_name"`
	BaseTableName     *string `db:"base_table_name"`
	WhereClause       *string `db:"where_clause"`
	IncludeAllColumns *bool   `db:"include_all_columns"`
	tableOptions
}

func (r *viewRow) toRow() schema.Row {
	return r.tableOptions.addTo(schema.Row{
		"keyspace_name":       r.KeyspaceName,
		"view_name":           r.ViewName,
		"base_table_name":     r.BaseTableName,
		"where_clause":        r.WhereClause,
		"include_all_columns": r.IncludeAllColumns,
	})
}

type columnRow struct {
	KeyspaceName    string  `db:"keyspace_name"`
	TableName       string  `db:"table_name"`
	ColumnName      string  `db:"column_name"`
	ClusteringOrder *string `db:"clustering_order"`
	Kind            *string `db:"kind"`
	Position        *int    `db:"position"`
	Type            *string `db:"type"`
}

func (r *columnRow) toRow() schema.Row {
	return schema.Row{
		"keyspace_name":    r.KeyspaceName,
		"table_name":       r.TableName,
		"column_name":      r.ColumnName,
		"clustering_order": r.ClusteringOrder,
		"kind":             r.Kind,
		"position":         r.Position,
		"type":             r.Type,
	}
}

type indexRow struct {
	KeyspaceName string            `db:"keyspace_name"`
	TableName    string            `db:"table_name"`
	IndexName    string            `db:"index_name"`
	Kind         *string           `db:"kind"`
	Options      map[string]string `db:"options"`
}

func (r *indexRow) toRow() schema.Row {
	return schema.Row{
		"keyspace_name": r.KeyspaceName,
		"table_name":    r.TableName,
		"index_name":    r.IndexName,
		"kind":          r.Kind,
		"options":       r.Options,
	}
}

type typeRow struct {
	KeyspaceName string   `db:"keyspace_name"`
	TypeName     string   `db:"type_name"`
	FieldNames   []string `db:"field_names"`
	FieldTypes   []string `db:"field_types"`
}

func (r *typeRow) toRow() schema.Row {
	return schema.Row{
		"keyspace_name": r.KeyspaceName,
		"type_name":     r.TypeName,
		"field_names":   r.FieldNames,
		"field_types":   r.FieldTypes,
	}
}

type localRow struct {
	ReleaseVersion *string   `db:"release_version"`
	SchemaVersion  uuid.UUID `db:"schema_version"`
}
