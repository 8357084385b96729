// Copyright (C) 2025 ScyllaDB

package schemametadata

import (
	"context"
	"fmt"
	"time"

	g "github.com/onsi/ginkgo/v2"
	o "github.com/onsi/gomega"
	"github.com/scylladb/cql-schema-metadata/pkg/cqlsource"
	"github.com/scylladb/cql-schema-metadata/pkg/cqltype"
	"github.com/scylladb/cql-schema-metadata/pkg/schema"
	"github.com/scylladb/cql-schema-metadata/pkg/schemarefresh"
	"github.com/scylladb/cql-schema-metadata/pkg/session"
	"github.com/scylladb/cql-schema-metadata/test/e2e/framework"
)

const testTimeout = 2 * time.Minute

func newTestSessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.RefreshDebounce = 100 * time.Millisecond
	opts.MaxRefreshRate = 0
	return opts
}

var _ = g.Describe("Schema session", func() {
	f := framework.NewFramework("schema")

	g.It("should read the schema of a keyspace", func(ctx g.SpecContext) {
		fixture := NewFixture(f.Session(), f.Keyspace())
		o.Expect(fixture.Create()).To(o.Succeed())
		o.Expect(fixture.Insert()).To(o.Succeed())

		fetcher, err := cqlsource.NewFetcher(f.Session(), cqlsource.FetcherOptions{
			Keyspaces: []string{f.Keyspace()},
		})
		o.Expect(err).NotTo(o.HaveOccurred())
		s, err := session.New(ctx, newTestSessionOptions(), fetcher, nil, schemarefresh.LoggingObserver{})
		o.Expect(err).NotTo(o.HaveOccurred())
		defer s.Close()

		framework.By("Waiting for the initial snapshot")
		o.Eventually(func(eo o.Gomega) {
			eo.Expect(s.RefreshNow(ctx)).To(o.Succeed())
			eo.Expect(s.GetSchema().Table(f.Keyspace(), "events")).NotTo(o.BeNil())
		}).WithTimeout(testTimeout).WithPolling(time.Second).Should(o.Succeed())

		snap := s.GetSchema()
		o.Expect(snap.Err()).NotTo(o.HaveOccurred())
		o.Expect(snap.KeyspaceNames()).To(o.Equal([]string{f.Keyspace()}))

		ks := snap.Keyspace(f.Keyspace())
		o.Expect(ks.DurableWrites).To(o.BeTrue())

		framework.By("Verifying the table")
		table := snap.Table(f.Keyspace(), "events")
		o.Expect(table.Comment).NotTo(o.BeNil())
		o.Expect(*table.Comment).To(o.Equal("events by day"))
		o.Expect(table.PartitionKey()).To(o.HaveLen(1))
		o.Expect(table.PartitionKey()[0].Name).To(o.Equal("id"))

		clustering := table.ClusteringColumns()
		o.Expect(clustering).To(o.HaveLen(1))
		o.Expect(clustering[0].Name).To(o.Equal("day"))
		o.Expect(clustering[0].ClusteringOrder).To(o.Equal(schema.OrderDESC))

		// Varchar is stored as text.
		data := table.Column("data")
		o.Expect(data).NotTo(o.BeNil())
		o.Expect(data.RawType).To(o.Equal("text"))
		o.Expect(data.IndexName).NotTo(o.BeNil())
		o.Expect(*data.IndexName).To(o.Equal("events_data_idx"))

		tags := table.Column("tags")
		o.Expect(tags).NotTo(o.BeNil())
		o.Expect(tags.Type.Equal(cqltype.Set(cqltype.Primitive("text")))).To(o.BeTrue(), fmt.Sprintf("got %v", tags.Type))

		home := table.Column("home")
		o.Expect(home).NotTo(o.BeNil())
		o.Expect(home.Type.Kind).To(o.Equal(cqltype.KindUserDefined))
		o.Expect(home.Type.Fields).To(o.HaveLen(2))

		framework.By("Verifying the user type and the view")
		o.Expect(ks.UserTypes).To(o.HaveKey("address"))
		o.Expect(ks.Views).To(o.HaveKey("events_by_day"))
		o.Expect(ks.Views["events_by_day"].BaseTable).To(o.Equal("events"))

		n, err := fixture.Count()
		o.Expect(err).NotTo(o.HaveOccurred())
		o.Expect(n).To(o.Equal(nRows))
	})

	g.It("should follow schema changes", func(ctx g.SpecContext) {
		fixture := NewFixture(f.Session(), f.Keyspace())
		o.Expect(fixture.Create()).To(o.Succeed())

		fetcher, err := cqlsource.NewFetcher(f.Session(), cqlsource.FetcherOptions{
			Keyspaces: []string{f.Keyspace()},
		})
		o.Expect(err).NotTo(o.HaveOccurred())
		watcher := cqlsource.NewVersionWatcher(f.Session(), 500*time.Millisecond)

		s, err := session.New(ctx, newTestSessionOptions(), fetcher, watcher, schemarefresh.LoggingObserver{})
		o.Expect(err).NotTo(o.HaveOccurred())
		defer s.Close()

		o.Eventually(func() *schema.TableMetadata {
			return s.GetSchema().Table(f.Keyspace(), "events")
		}).WithTimeout(testTimeout).WithPolling(time.Second).ShouldNot(o.BeNil())
		before := s.GetSchema()

		framework.By("Adding a column")
		err = f.ExecStmts(fmt.Sprintf(`ALTER TABLE %q.events ADD note text`, f.Keyspace()))
		o.Expect(err).NotTo(o.HaveOccurred())

		o.Eventually(func() *schema.ColumnMetadata {
			return s.GetSchema().Table(f.Keyspace(), "events").Column("note")
		}).WithTimeout(testTimeout).WithPolling(time.Second).ShouldNot(o.BeNil())

		after := s.GetSchema()
		o.Expect(after.Version()).To(o.BeNumerically(">", before.Version()))
		o.Expect(before.Table(f.Keyspace(), "events").Column("note")).To(o.BeNil())

		framework.By("Dropping the table")
		err = f.ExecStmts(fmt.Sprintf(`DROP MATERIALIZED VIEW %q.events_by_day`, f.Keyspace()), fmt.Sprintf(`DROP TABLE %q.events`, f.Keyspace()))
		o.Expect(err).NotTo(o.HaveOccurred())

		o.Eventually(func() *schema.TableMetadata {
			return s.GetSchema().Table(f.Keyspace(), "events")
		}).WithTimeout(testTimeout).WithPolling(time.Second).Should(o.BeNil())
	})

	g.It("should report absent comments and unfreeze nested collections", func(ctx g.SpecContext) {
		err := f.ExecStmts(
			fmt.Sprintf(`CREATE TABLE %q.null_comment (key int PRIMARY KEY, value int)`, f.Keyspace()),
			fmt.Sprintf(`CREATE TABLE %q.nested1 (key int PRIMARY KEY, value map<frozen<list<varchar>>, varchar>)`, f.Keyspace()),
			fmt.Sprintf(`CREATE TABLE %q.nested2 (key int PRIMARY KEY, value map<varchar, frozen<list<varchar>>>)`, f.Keyspace()),
			fmt.Sprintf(`CREATE TABLE %q.nested3 (key int PRIMARY KEY, value list<frozen<map<varchar, frozen<set<varchar>>>>>)`, f.Keyspace()),
		)
		o.Expect(err).NotTo(o.HaveOccurred())

		fetcher, err := cqlsource.NewFetcher(f.Session(), cqlsource.FetcherOptions{
			Keyspaces: []string{f.Keyspace()},
		})
		o.Expect(err).NotTo(o.HaveOccurred())
		s, err := session.New(ctx, newTestSessionOptions(), fetcher, nil, schemarefresh.LoggingObserver{})
		o.Expect(err).NotTo(o.HaveOccurred())
		defer s.Close()

		o.Eventually(func(eo o.Gomega) {
			eo.Expect(s.RefreshNow(ctx)).To(o.Succeed())
			ks := s.GetSchema().Keyspace(f.Keyspace())
			eo.Expect(ks).NotTo(o.BeNil())
			eo.Expect(ks.TableNames()).To(o.ConsistOf("null_comment", "nested1", "nested2", "nested3"))
		}).WithTimeout(testTimeout).WithPolling(time.Second).Should(o.Succeed())

		snap := s.GetSchema()
		o.Expect(snap.Err()).NotTo(o.HaveOccurred())

		framework.By("Verifying the table without a comment")
		table := snap.Table(f.Keyspace(), "null_comment")
		o.Expect(table.Comment).To(o.BeNil())
		value := table.Column("value")
		o.Expect(value).NotTo(o.BeNil())
		o.Expect(value.IndexName).To(o.BeNil())

		framework.By("Verifying nested frozen collections")
		// Varchar is stored as text.
		for name, expected := range map[string]string{
			"nested1": "map<list<text>, text>",
			"nested2": "map<text, list<text>>",
			"nested3": "list<map<text, set<text>>>",
		} {
			c := snap.Table(f.Keyspace(), name).Column("value")
			o.Expect(c).NotTo(o.BeNil(), name)
			o.Expect(c.Type).NotTo(o.BeNil(), name)
			o.Expect(c.Type.String()).To(o.Equal(expected), name)
		}
	})

	g.It("should serve an empty schema when schema metadata is disabled", func(ctx context.Context) {
		options := session.DefaultOptions().ConfigureSchemaMetadata(false)

		s, err := session.New(ctx, options, nil, nil, nil)
		o.Expect(err).NotTo(o.HaveOccurred())
		defer s.Close()

		snap := s.GetSchema()
		o.Expect(snap.Disabled()).To(o.BeTrue())
		o.Expect(snap.Count()).To(o.BeZero())
	})
})
