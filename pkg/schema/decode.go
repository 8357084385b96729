// Copyright (C) 2025 ScyllaDB

package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/scylladb/cql-schema-metadata/pkg/cqltype"
	"github.com/scylladb/go-set/strset"
)

// Row is a single system_schema row keyed by column name. A missing key, a nil
// value or a nil pointer all mean the value is null in storage.
type Row map[string]interface{}

// Rows holds the raw content of the system_schema tables a snapshot is built from.
type Rows struct {
	Keyspaces []Row
	Tables    []Row
	Columns   []Row
	Indexes   []Row
	Types     []Row
	Views     []Row
}

func (r Row) value(key string) (interface{}, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
	}

	return rv.Interface(), true
}

func wrongType(expected string, got interface{}) error {
	return fmt.Errorf("expected %s, got %T", expected, got)
}

func (r Row) getString(key string) (string, bool, error) {
	v, ok := r.value(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, wrongType("string", v)
	}
	return s, true, nil
}

func (r Row) getBool(key string) (bool, bool, error) {
	v, ok := r.value(key)
	if !ok {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, wrongType("bool", v)
	}
	return b, true, nil
}

func (r Row) getInt(key string) (int, bool, error) {
	v, ok := r.value(key)
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int8:
		return int(n), true, nil
	case int16:
		return int(n), true, nil
	case int32:
		return int(n), true, nil
	case int64:
		return int(n), true, nil
	default:
		return 0, false, wrongType("integer", v)
	}
}

func (r Row) getStringList(key string) ([]string, bool, error) {
	v, ok := r.value(key)
	if !ok {
		return nil, false, nil
	}
	switch l := v.(type) {
	case []string:
		return l, true, nil
	case []interface{}:
		res := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, false, wrongType("list of strings", v)
			}
			res = append(res, s)
		}
		return res, true, nil
	default:
		return nil, false, wrongType("list of strings", v)
	}
}

func (r Row) getStringMap(key string) (map[string]string, bool, error) {
	v, ok := r.value(key)
	if !ok {
		return nil, false, nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m, true, nil
	case map[string]interface{}:
		res := make(map[string]string, len(m))
		for k, e := range m {
			s, ok := e.(string)
			if !ok {
				return nil, false, wrongType("map of strings", v)
			}
			res[k] = s
		}
		return res, true, nil
	default:
		return nil, false, wrongType("map of strings", v)
	}
}

// decoder reads fields of one row and remembers the first failure.
type decoder struct {
	row Row
	err *DecodeError

	object   string
	keyspace string
	table    string
	name     string
}

func newDecoder(object string, row Row) *decoder {
	return &decoder{
		row:    row,
		object: object,
	}
}

func (d *decoder) fail(field string, err error) {
	if d.err != nil {
		return
	}
	d.err = d.errorf(field, err)
}

func (d *decoder) errorf(field string, err error) *DecodeError {
	return &DecodeError{
		Object:   d.object,
		Keyspace: d.keyspace,
		Table:    d.table,
		Name:     d.name,
		Field:    field,
		Err:      err,
	}
}

func (d *decoder) requiredString(field string) string {
	s, ok, err := d.row.getString(field)
	if err != nil {
		d.fail(field, err)
		return ""
	}
	if !ok {
		d.fail(field, ErrMissingField)
	}
	return s
}

func (d *decoder) stringOr(field string, def string) string {
	s, ok, err := d.row.getString(field)
	if err != nil {
		d.fail(field, err)
		return def
	}
	if !ok {
		return def
	}
	return s
}

// optionalText returns nil for both null and empty values. Cassandra stores
// an empty string for comments that were never set.
func (d *decoder) optionalText(field string) *string {
	s, ok, err := d.row.getString(field)
	if err != nil {
		d.fail(field, err)
		return nil
	}
	if !ok || len(s) == 0 {
		return nil
	}
	return &s
}

func (d *decoder) boolOr(field string, def bool) bool {
	b, ok, err := d.row.getBool(field)
	if err != nil {
		d.fail(field, err)
		return def
	}
	if !ok {
		return def
	}
	return b
}

func (d *decoder) intOr(field string, def int) int {
	n, ok, err := d.row.getInt(field)
	if err != nil {
		d.fail(field, err)
		return def
	}
	if !ok {
		return def
	}
	return n
}

func (d *decoder) stringList(field string) []string {
	l, _, err := d.row.getStringList(field)
	if err != nil {
		d.fail(field, err)
		return nil
	}
	return l
}

func (d *decoder) stringMap(field string) map[string]string {
	m, _, err := d.row.getStringMap(field)
	if err != nil {
		d.fail(field, err)
		return nil
	}
	return m
}

// options renders every non-null field that isn't in skip. Map values are
// flattened into "field.key" entries.
func (d *decoder) options(skip *strset.Set) map[string]string {
	res := map[string]string{}
	for field := range d.row {
		if skip.Has(field) {
			continue
		}

		v, ok := d.row.value(field)
		if !ok {
			continue
		}

		switch tv := v.(type) {
		case map[string]string:
			for k, e := range tv {
				res[field+"."+k] = e
			}
		case []string:
			sorted := append([]string(nil), tv...)
			sort.Strings(sorted)
			res[field] = strings.Join(sorted, ",")
		case []byte:
			res[field] = fmt.Sprintf("%x", tv)
		default:
			res[field] = fmt.Sprint(tv)
		}
	}

	if len(res) == 0 {
		return nil
	}
	return res
}

var (
	tableIdentityFields = strset.New("keyspace_name", "table_name", "comment", "flags", "id", "extensions")
	viewIdentityFields  = strset.New("keyspace_name", "view_name", "base_table_name", "base_table_id", "where_clause", "include_all_columns", "comment", "id", "extensions")
)

func DecodeKeyspace(row Row) (*KeyspaceMetadata, error) {
	d := newDecoder("keyspace", row)

	ks := &KeyspaceMetadata{}
	ks.Name = d.requiredString("keyspace_name")
	d.keyspace = ks.Name
	ks.DurableWrites = d.boolOr("durable_writes", true)
	ks.Replication = d.stringMap("replication")

	if d.err != nil {
		return nil, d.err
	}

	ks.Tables = map[string]*TableMetadata{}
	ks.Views = map[string]*ViewMetadata{}
	ks.UserTypes = map[string]*cqltype.Type{}

	return ks, nil
}

func DecodeTable(row Row) (*TableMetadata, error) {
	d := newDecoder("table", row)

	t := &TableMetadata{}
	t.Keyspace = d.requiredString("keyspace_name")
	d.keyspace = t.Keyspace
	t.Name = d.requiredString("table_name")
	d.table = t.Name
	t.Comment = d.optionalText("comment")
	t.Flags = append([]string(nil), d.stringList("flags")...)
	sort.Strings(t.Flags)
	t.Options = d.options(tableIdentityFields)

	if d.err != nil {
		return nil, d.err
	}

	t.Indexes = map[string]*IndexMetadata{}

	return t, nil
}

func DecodeView(row Row) (*ViewMetadata, error) {
	d := newDecoder("view", row)

	v := &ViewMetadata{}
	v.Keyspace = d.requiredString("keyspace_name")
	d.keyspace = v.Keyspace
	v.Name = d.requiredString("view_name")
	d.table = v.Name
	v.BaseTable = d.requiredString("base_table_name")
	v.WhereClause = d.stringOr("where_clause", "")
	v.IncludeAllColumns = d.boolOr("include_all_columns", false)
	v.Comment = d.optionalText("comment")
	v.Options = d.options(viewIdentityFields)

	if d.err != nil {
		return nil, d.err
	}

	return v, nil
}

func parseColumnKind(s string) (ColumnKind, error) {
	switch strings.ToLower(s) {
	case string(ColumnPartitionKey):
		return ColumnPartitionKey, nil
	case string(ColumnClusteringKey), "clustering_key":
		return ColumnClusteringKey, nil
	case string(ColumnRegular):
		return ColumnRegular, nil
	case string(ColumnStatic):
		return ColumnStatic, nil
	case string(ColumnCompactValue):
		return ColumnCompactValue, nil
	default:
		return "", fmt.Errorf("unknown column kind %q", s)
	}
}

func parseClusteringOrder(s string) (ClusteringOrder, error) {
	switch strings.ToLower(s) {
	case "", string(OrderNone):
		return OrderNone, nil
	case string(OrderASC):
		return OrderASC, nil
	case string(OrderDESC):
		return OrderDESC, nil
	default:
		return "", fmt.Errorf("unknown clustering order %q", s)
	}
}

// DecodeColumn decodes a system_schema.columns row. When only the type fails
// to parse, the column is returned with a nil Type together with the error.
func DecodeColumn(row Row) (*ColumnMetadata, error) {
	d := newDecoder("column", row)

	c := &ColumnMetadata{}
	c.Keyspace = d.requiredString("keyspace_name")
	d.keyspace = c.Keyspace
	c.Table = d.requiredString("table_name")
	d.table = c.Table
	c.Name = d.requiredString("column_name")
	d.name = c.Name
	c.RawType = d.requiredString("type")

	kind := d.requiredString("kind")
	if d.err == nil {
		var err error
		c.Kind, err = parseColumnKind(kind)
		if err != nil {
			d.fail("kind", err)
		}
	}

	c.Position = d.intOr("position", -1)
	if d.err == nil && c.Kind.isKey() && c.Position < 0 {
		d.fail("position", fmt.Errorf("%s column has negative position %d", c.Kind, c.Position))
	}

	order := d.stringOr("clustering_order", "")
	if d.err == nil {
		var err error
		c.ClusteringOrder, err = parseClusteringOrder(order)
		if err != nil {
			d.fail("clustering_order", err)
		}
	}

	c.Comment = d.optionalText("comment")
	c.IndexName = d.optionalText("index_name")

	if d.err != nil {
		return nil, d.err
	}

	t, err := cqltype.Parse(c.RawType)
	if err != nil {
		return c, d.errorf("type", err)
	}
	c.Type = t

	return c, nil
}

// DecodeColumns decodes every row and returns the columns that could be
// used together with the per column errors. Columns with unparseable types
// are part of both.
func DecodeColumns(rows []Row) ([]*ColumnMetadata, []error) {
	var columns []*ColumnMetadata
	var errs []error
	for _, row := range rows {
		c, err := DecodeColumn(row)
		if err != nil {
			errs = append(errs, err)
		}
		if c != nil {
			columns = append(columns, c)
		}
	}
	return columns, errs
}

func DecodeIndex(row Row) (*IndexMetadata, error) {
	d := newDecoder("index", row)

	idx := &IndexMetadata{}
	idx.Keyspace = d.requiredString("keyspace_name")
	d.keyspace = idx.Keyspace
	idx.Table = d.requiredString("table_name")
	d.table = idx.Table
	idx.Name = d.requiredString("index_name")
	d.name = idx.Name
	idx.Kind = d.stringOr("kind", "")
	idx.Options = d.stringMap("options")
	idx.Target = idx.Options["target"]

	if d.err != nil {
		return nil, d.err
	}

	return idx, nil
}

// DecodeUserType decodes a system_schema.types row into an unresolved user
// defined type. Field types referencing other user types carry no fields yet.
func DecodeUserType(row Row) (*cqltype.Type, error) {
	d := newDecoder("type", row)

	keyspace := d.requiredString("keyspace_name")
	d.keyspace = keyspace
	name := d.requiredString("type_name")
	d.name = name
	fieldNames := d.stringList("field_names")
	fieldTypes := d.stringList("field_types")

	if d.err != nil {
		return nil, d.err
	}

	if len(fieldNames) != len(fieldTypes) {
		return nil, d.errorf("field_types", fmt.Errorf("got %d field types for %d field names", len(fieldTypes), len(fieldNames)))
	}

	fields := make([]cqltype.Field, 0, len(fieldNames))
	for i := range fieldNames {
		t, err := cqltype.Parse(fieldTypes[i])
		if err != nil {
			return nil, d.errorf("field_types", fmt.Errorf("field %q: %w", fieldNames[i], err))
		}
		fields = append(fields, cqltype.Field{Name: fieldNames[i], Type: t})
	}

	return cqltype.UserDefined(keyspace, name, fields...), nil
}
