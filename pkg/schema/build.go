// Copyright (C) 2025 ScyllaDB

package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/scylladb/cql-schema-metadata/pkg/cqltype"
	"github.com/scylladb/go-set/strset"
)

type builder struct {
	keyspaces map[string]*KeyspaceMetadata
	errs      []error

	// columnNames tracks column names per table or view to detect duplicates.
	columnNames map[string]*strset.Set
}

// Build joins flat system_schema rows into a snapshot. It never fails: rows
// that can't be decoded or attached to a parent are left out and reported by
// Snapshot.Errors. The result only depends on the content of rows, not on
// their order.
func Build(rows Rows) *Snapshot {
	b := &builder{
		keyspaces:   map[string]*KeyspaceMetadata{},
		columnNames: map[string]*strset.Set{},
	}

	b.addKeyspaces(rows.Keyspaces)
	b.addUserTypes(rows.Types)
	b.addTables(rows.Tables)
	b.addViews(rows.Views)
	b.addColumns(rows.Columns)
	b.addIndexes(rows.Indexes)
	b.orderColumns()

	sort.SliceStable(b.errs, func(i, j int) bool {
		return b.errs[i].Error() < b.errs[j].Error()
	})

	return newSnapshot(b.keyspaces, false, b.errs)
}

func (b *builder) report(err error) {
	b.errs = append(b.errs, err)
}

func orphan(object, keyspace, table, name, parent string) error {
	return &DecodeError{
		Object:   object,
		Keyspace: keyspace,
		Table:    table,
		Name:     name,
		Err:      fmt.Errorf("%w: %s", ErrOrphan, parent),
	}
}

func duplicate(object, keyspace, table, name string) error {
	return &DecodeError{
		Object:   object,
		Keyspace: keyspace,
		Table:    table,
		Name:     name,
		Err:      ErrDuplicate,
	}
}

func (b *builder) addKeyspaces(rows []Row) {
	for _, row := range rows {
		ks, err := DecodeKeyspace(row)
		if err != nil {
			b.report(err)
			continue
		}

		if _, exists := b.keyspaces[ks.Name]; exists {
			b.report(duplicate("keyspace", ks.Name, "", ""))
			continue
		}

		b.keyspaces[ks.Name] = ks
	}
}

func (b *builder) lookupUserType(keyspace, name string) (*cqltype.Type, bool) {
	ks, ok := b.keyspaces[keyspace]
	if !ok {
		return nil, false
	}
	t, ok := ks.UserTypes[name]
	return t, ok
}

func (b *builder) addUserTypes(rows []Row) {
	definitions := map[string]map[string]*cqltype.Type{}

	for _, row := range rows {
		t, err := DecodeUserType(row)
		if err != nil {
			b.report(err)
			continue
		}

		if _, ok := b.keyspaces[t.Keyspace]; !ok {
			b.report(orphan("type", t.Keyspace, "", t.Name, fmt.Sprintf("keyspace %q", t.Keyspace)))
			continue
		}

		if definitions[t.Keyspace] == nil {
			definitions[t.Keyspace] = map[string]*cqltype.Type{}
		}
		if _, exists := definitions[t.Keyspace][t.Name]; exists {
			b.report(duplicate("type", t.Keyspace, "", t.Name))
			continue
		}
		definitions[t.Keyspace][t.Name] = t
	}

	lookup := func(keyspace, name string) (*cqltype.Type, bool) {
		t, ok := definitions[keyspace][name]
		return t, ok
	}

	for keyspace, types := range definitions {
		for name, t := range types {
			b.keyspaces[keyspace].UserTypes[name] = t.Resolve(keyspace, lookup)
		}
	}
}

func (b *builder) addTables(rows []Row) {
	for _, row := range rows {
		t, err := DecodeTable(row)
		if err != nil {
			b.report(err)
			continue
		}

		ks, ok := b.keyspaces[t.Keyspace]
		if !ok {
			b.report(orphan("table", t.Keyspace, t.Name, "", fmt.Sprintf("keyspace %q", t.Keyspace)))
			continue
		}

		if _, exists := ks.Tables[t.Name]; exists {
			b.report(duplicate("table", t.Keyspace, t.Name, ""))
			continue
		}

		ks.Tables[t.Name] = t
	}
}

func (b *builder) addViews(rows []Row) {
	for _, row := range rows {
		v, err := DecodeView(row)
		if err != nil {
			b.report(err)
			continue
		}

		ks, ok := b.keyspaces[v.Keyspace]
		if !ok {
			b.report(orphan("view", v.Keyspace, v.Name, "", fmt.Sprintf("keyspace %q", v.Keyspace)))
			continue
		}

		_, tableExists := ks.Tables[v.Name]
		_, viewExists := ks.Views[v.Name]
		if tableExists || viewExists {
			b.report(duplicate("view", v.Keyspace, v.Name, ""))
			continue
		}

		ks.Views[v.Name] = v
	}
}

func (b *builder) addColumns(rows []Row) {
	columns, errs := DecodeColumns(rows)
	for _, err := range errs {
		b.report(err)
	}

	sort.SliceStable(columns, func(i, j int) bool {
		ci, cj := columns[i], columns[j]
		if ci.Keyspace != cj.Keyspace {
			return ci.Keyspace < cj.Keyspace
		}
		if ci.Table != cj.Table {
			return ci.Table < cj.Table
		}
		return ci.Name < cj.Name
	})

	for _, c := range columns {
		ks, ok := b.keyspaces[c.Keyspace]
		if !ok {
			b.report(orphan("column", c.Keyspace, c.Table, c.Name, fmt.Sprintf("keyspace %q", c.Keyspace)))
			continue
		}

		key := c.Keyspace + "." + c.Table
		names, ok := b.columnNames[key]
		if !ok {
			names = strset.New()
			b.columnNames[key] = names
		}
		if names.Has(c.Name) {
			b.report(duplicate("column", c.Keyspace, c.Table, c.Name))
			continue
		}

		if c.Type != nil {
			c.Type = c.Type.Resolve(c.Keyspace, b.lookupUserType)
		}

		if t, ok := ks.Tables[c.Table]; ok {
			t.Columns = append(t.Columns, c)
		} else if v, ok := ks.Views[c.Table]; ok {
			v.Columns = append(v.Columns, c)
		} else {
			b.report(orphan("column", c.Keyspace, c.Table, c.Name, fmt.Sprintf("table or view %q", c.Table)))
			continue
		}

		names.Add(c.Name)
	}
}

func (b *builder) addIndexes(rows []Row) {
	var indexes []*IndexMetadata
	for _, row := range rows {
		idx, err := DecodeIndex(row)
		if err != nil {
			b.report(err)
			continue
		}
		indexes = append(indexes, idx)
	}

	sort.SliceStable(indexes, func(i, j int) bool {
		ii, ij := indexes[i], indexes[j]
		if ii.Keyspace != ij.Keyspace {
			return ii.Keyspace < ij.Keyspace
		}
		if ii.Table != ij.Table {
			return ii.Table < ij.Table
		}
		return ii.Name < ij.Name
	})

	for _, idx := range indexes {
		t := b.table(idx.Keyspace, idx.Table)
		if t == nil {
			b.report(orphan("index", idx.Keyspace, idx.Table, idx.Name, fmt.Sprintf("table %q", idx.Table)))
			continue
		}

		if _, exists := t.Indexes[idx.Name]; exists {
			b.report(duplicate("index", idx.Keyspace, idx.Table, idx.Name))
			continue
		}
		t.Indexes[idx.Name] = idx

		c := t.Column(IndexTargetColumn(idx.Target))
		if c != nil && c.IndexName == nil {
			name := idx.Name
			c.IndexName = &name
		}
	}
}

func (b *builder) table(keyspace, table string) *TableMetadata {
	ks, ok := b.keyspaces[keyspace]
	if !ok {
		return nil
	}
	return ks.Tables[table]
}

func (b *builder) orderColumns() {
	for _, ks := range b.keyspaces {
		for _, t := range ks.Tables {
			t.Columns = orderColumns(t.Columns)
		}
		for _, v := range ks.Views {
			v.Columns = orderColumns(v.Columns)
		}
	}
}

// orderColumns puts partition key and clustering components first, ordered by
// their position, and keeps the order of the remaining columns.
func orderColumns(columns []*ColumnMetadata) []*ColumnMetadata {
	var partitionKey, clustering, other []*ColumnMetadata
	for _, c := range columns {
		switch c.Kind {
		case ColumnPartitionKey:
			partitionKey = append(partitionKey, c)
		case ColumnClusteringKey:
			clustering = append(clustering, c)
		default:
			other = append(other, c)
		}
	}

	byPosition := func(cs []*ColumnMetadata) func(i, j int) bool {
		return func(i, j int) bool {
			return cs[i].Position < cs[j].Position
		}
	}
	sort.SliceStable(partitionKey, byPosition(partitionKey))
	sort.SliceStable(clustering, byPosition(clustering))

	res := make([]*ColumnMetadata, 0, len(columns))
	res = append(res, partitionKey...)
	res = append(res, clustering...)
	res = append(res, other...)
	return res
}

var indexTargetWrapperRe = regexp.MustCompile(`^(?i:keys|values|entries|full)\((.*)\)$`)

// IndexTargetColumn extracts the column name from an index target such as
// "keys(m)" or "\"MyColumn\"". It returns an empty string for targets that
// don't name a single column.
func IndexTargetColumn(target string) string {
	target = strings.TrimSpace(target)
	if m := indexTargetWrapperRe.FindStringSubmatch(target); m != nil {
		target = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(target, "{") {
		return ""
	}

	if len(target) >= 2 && strings.HasPrefix(target, `"`) && strings.HasSuffix(target, `"`) {
		return strings.ReplaceAll(target[1:len(target)-1], `""`, `"`)
	}

	return target
}
