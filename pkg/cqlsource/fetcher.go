// Copyright (C) 2025 ScyllaDB

package cqlsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/semver"
	"github.com/scylladb/cql-schema-metadata/pkg/util/parallel"
	"github.com/scylladb/go-set/strset"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
)

// Querier builds queries. gocqlx.Session satisfies it.
type Querier interface {
	Query(stmt string, names []string) *gocqlx.Queryx
}

var _ Querier = gocqlx.Session{}

type FetcherOptions struct {
	// Keyspaces limits fetching to the named keyspaces. Empty means all keyspaces.
	Keyspaces []string
	// ExcludeKeyspaces are glob patterns of keyspaces dropped from the result.
	ExcludeKeyspaces []string
}

// Fetcher reads schema rows from the system_schema keyspace.
type Fetcher struct {
	session Querier
	include []string
	exclude keyspaceMatcher
}

func NewFetcher(session Querier, options FetcherOptions) (*Fetcher, error) {
	exclude, err := newKeyspaceMatcher(options.ExcludeKeyspaces)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		session: session,
		include: strset.New(options.Keyspaces...).List(),
		exclude: exclude,
	}, nil
}

func selectStatement(table string, columns []string, filtered bool) (string, []string) {
	b := qb.Select(table).Columns(columns...)
	if filtered {
		b = b.Where(qb.In("keyspace_name"))
	}
	return b.ToCql()
}

func (f *Fetcher) query(ctx context.Context, table string, columns []string) *gocqlx.Queryx {
	q := f.session.Query(selectStatement(table, columns, len(f.include) != 0)).WithContext(ctx)
	if len(f.include) != 0 {
		q = q.BindMap(qb.M{"keyspace_name": f.include})
	}
	return q
}

type scannedRow[T any] interface {
	*T
	toRow() schema.Row
}

// selectRows runs a select over table and converts the scanned rows.
func selectRows[T any, PT scannedRow[T]](ctx context.Context, f *Fetcher, table string, columns []string) ([]schema.Row, error) {
	var res []T
	err := f.query(ctx, table, columns).SelectRelease(&res)
	if err != nil {
		return nil, &QueryError{Table: table, Err: err}
	}

	return toRows[T, PT](res, f.exclude), nil
}

func toRows[T any, PT scannedRow[T]](res []T, exclude keyspaceMatcher) []schema.Row {
	rows := make([]schema.Row, 0, len(res))
	for i := range res {
		row := PT(&res[i]).toRow()
		if ks, ok := row["keyspace_name"].(string); ok && exclude.Match(ks) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func (f *Fetcher) checkReleaseVersion(ctx context.Context) error {
	var local localRow
	stmt, names := qb.Select(localTable).Columns("release_version", "schema_version").Where(qb.Eq("key")).ToCql()
	err := f.session.Query(stmt, names).WithContext(ctx).BindMap(qb.M{"key": "local"}).GetRelease(&local)
	if err != nil {
		return &QueryError{Table: localTable, Err: err}
	}

	if local.ReleaseVersion == nil {
		klog.V(2).InfoS("Node doesn't report a release version, assuming system_schema is available")
		return nil
	}

	rv := semver.NewReleaseVersion(*local.ReleaseVersion)
	if !rv.SupportFeatureUnsafe(semver.ReleaseVersionWithSchemaKeyspace) {
		return &QueryError{
			Table: localTable,
			Err:   fmt.Errorf("%w %q: system_schema requires %s or newer", ErrUnsupportedVersion, *local.ReleaseVersion, semver.ReleaseVersionWithSchemaKeyspace),
		}
	}

	return nil
}

// FetchSchemaRows reads all schema tables. It fails as a whole if any read fails.
func (f *Fetcher) FetchSchemaRows(ctx context.Context) (schema.Rows, error) {
	err := f.checkReleaseVersion(ctx)
	if err != nil {
		return schema.Rows{}, err
	}

	var rows schema.Rows
	reads := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			rows.Keyspaces, err = selectRows[keyspaceRow](ctx, f, keyspacesTable, []string{"keyspace_name", "durable_writes", "replication"})
			return err
		},
		func(ctx context.Context) (err error) {
			rows.Tables, err = selectRows[tableRow](ctx, f, tablesTable, append([]string{"keyspace_name", "table_name", "flags"}, tableOptionColumns...))
			return err
		},
		func(ctx context.Context) (err error) {
			rows.Columns, err = selectRows[columnRow](ctx, f, columnsTable, []string{"keyspace_name", "table_name", "column_name", "clustering_order", "kind", "position", "type"})
			return err
		},
		func(ctx context.Context) (err error) {
			rows.Indexes, err = selectRows[indexRow](ctx, f, indexesTable, []string{"keyspace_name", "table_name", "index_name", "kind", "options"})
			return err
		},
		func(ctx context.Context) (err error) {
			rows.Types, err = selectRows[typeRow](ctx, f, typesTable, []string{"keyspace_name", "type_name", "field_names", "field_types"})
			return err
		},
		func(ctx context.Context) (err error) {
			rows.Views, err = selectRows[viewRow](ctx, f, viewsTable, append([]string{"keyspace_name", "view_name", "base_table_name", "where_clause", "include_all_columns"}, tableOptionColumns...))
			return err
		},
	}

	err = parallel.ForEach(ctx, len(reads), func(ctx context.Context, i int) error {
		return reads[i](ctx)
	})
	if err != nil {
		return schema.Rows{}, firstError(err)
	}

	klog.V(4).InfoS("Fetched schema rows",
		"Keyspaces", len(rows.Keyspaces),
		"Tables", len(rows.Tables),
		"Columns", len(rows.Columns),
		"Indexes", len(rows.Indexes),
		"Types", len(rows.Types),
		"Views", len(rows.Views),
	)

	return rows, nil
}

// firstError picks the *QueryError that caused an aggregate failure. Reads
// cancelled because of a sibling failure are skipped.
func firstError(err error) error {
	var agg apimachineryutilerrors.Aggregate
	if !errors.As(err, &agg) {
		return err
	}

	var cancelled error
	for _, e := range agg.Errors() {
		var qErr *QueryError
		if !errors.As(e, &qErr) {
			continue
		}
		if errors.Is(qErr, context.Canceled) {
			if cancelled == nil {
				cancelled = qErr
			}
			continue
		}
		return qErr
	}

	if cancelled != nil {
		return cancelled
	}
	return err
}
