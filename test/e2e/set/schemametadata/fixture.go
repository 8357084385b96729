// Copyright (C) 2025 ScyllaDB

package schemametadata

import (
	"fmt"

	"github.com/scylladb/cql-schema-metadata/test/e2e/framework"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/table"
	"k8s.io/apimachinery/pkg/util/rand"
)

const nRows = 10

// Fixture creates a table with a user type, a secondary index and a view in
// the test keyspace and fills it with rows.
type Fixture struct {
	session  gocqlx.Session
	keyspace string
	table    *table.Table
	data     []*TestData
}

type TestData struct {
	Id   int      `db:"id"`
	Day  string   `db:"day"`
	Data string   `db:"data"`
	Tags []string `db:"tags"`
}

func NewFixture(session gocqlx.Session, keyspace string) *Fixture {
	t := table.New(table.Metadata{
		Name:    fmt.Sprintf(`%q.events`, keyspace),
		Columns: []string{"id", "day", "data", "tags"},
		PartKey: []string{"id"},
		SortKey: []string{"day"},
	})

	data := make([]*TestData, 0, nRows)
	for i := 0; i < nRows; i++ {
		data = append(data, &TestData{
			Id:   i,
			Day:  fmt.Sprintf("2025-01-%02d", i+1),
			Data: rand.String(32),
			Tags: []string{rand.String(4), rand.String(4)},
		})
	}

	return &Fixture{
		session:  session,
		keyspace: keyspace,
		table:    t,
		data:     data,
	}
}

func (f *Fixture) Create() error {
	framework.By("Creating schema objects in keyspace %q", f.keyspace)

	stmts := []string{
		fmt.Sprintf(`CREATE TYPE %q.address (street text, city varchar)`, f.keyspace),
		fmt.Sprintf(`CREATE TABLE %s (id int, day text, data varchar, tags frozen<set<text>>, home frozen<address>, PRIMARY KEY ((id), day)) WITH CLUSTERING ORDER BY (day DESC) AND comment = 'events by day'`, f.table.Name()),
		fmt.Sprintf(`CREATE INDEX events_data_idx ON %s (data)`, f.table.Name()),
		fmt.Sprintf(`CREATE MATERIALIZED VIEW %q.events_by_day AS SELECT id, day, data FROM %s WHERE day IS NOT NULL AND id IS NOT NULL PRIMARY KEY (day, id)`, f.keyspace, f.table.Name()),
	}
	for _, stmt := range stmts {
		err := f.session.ExecStmt(stmt)
		if err != nil {
			return fmt.Errorf("can't execute %q: %w", stmt, err)
		}
	}

	return nil
}

func (f *Fixture) Insert() error {
	framework.By("Inserting %d rows", len(f.data))

	for _, d := range f.data {
		q := f.session.Query(f.table.Insert()).BindStruct(d)
		err := q.ExecRelease()
		if err != nil {
			return fmt.Errorf("can't insert data: %w", err)
		}
	}

	return nil
}

func (f *Fixture) Count() (int, error) {
	var res []*TestData
	q := f.session.Query(f.table.SelectAll()).BindStruct(&TestData{})
	err := q.SelectRelease(&res)
	if err != nil {
		return 0, fmt.Errorf("can't select data: %w", err)
	}
	return len(res), nil
}
