// Copyright (C) 2025 ScyllaDB

package framework

import (
	"fmt"

	"github.com/gocql/gocql"
	g "github.com/onsi/ginkgo/v2"
	o "github.com/onsi/gomega"
	"github.com/scylladb/gocqlx/v2"
	"k8s.io/apimachinery/pkg/util/rand"
)

// Framework gives every test a connected session and a fresh keyspace that is
// dropped once the test finishes.
type Framework struct {
	name     string
	keyspace string
	session  *gocqlx.Session
}

func NewFramework(name string) *Framework {
	f := &Framework{
		name: name,
	}

	g.BeforeEach(f.beforeEach)
	g.AfterEach(f.afterEach)

	return f
}

func (f *Framework) Keyspace() string {
	return f.keyspace
}

func (f *Framework) Session() gocqlx.Session {
	return *f.session
}

func (f *Framework) NewClusterConfig() *gocql.ClusterConfig {
	cluster := gocql.NewCluster(TestContext.Hosts...)
	cluster.Timeout = TestContext.Timeout
	cluster.ConnectTimeout = TestContext.Timeout
	if len(TestContext.Username) != 0 {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: TestContext.Username,
			Password: TestContext.Password,
		}
	}
	return cluster
}

// ExecStmts runs statements one by one and stops at the first failure.
func (f *Framework) ExecStmts(stmts ...string) error {
	for _, stmt := range stmts {
		err := f.session.ExecStmt(stmt)
		if err != nil {
			return fmt.Errorf("can't execute %q: %w", stmt, err)
		}
	}
	return nil
}

func (f *Framework) beforeEach() {
	if len(TestContext.Hosts) == 0 {
		Skipf("%s isn't set", HostsEnvVar)
	}

	session, err := gocqlx.WrapSession(f.NewClusterConfig().CreateSession())
	o.Expect(err).NotTo(o.HaveOccurred())
	f.session = &session

	f.keyspace = fmt.Sprintf("e2e_%s_%s", f.name, rand.String(8))
	By("Creating keyspace %q", f.keyspace)
	err = f.ExecStmts(fmt.Sprintf(`CREATE KEYSPACE %q WITH replication = {'class': 'NetworkTopologyStrategy', 'replication_factor': 1}`, f.keyspace))
	o.Expect(err).NotTo(o.HaveOccurred())
}

func (f *Framework) afterEach() {
	if f.session == nil {
		return
	}
	defer func() {
		f.session.Close()
		f.session = nil
	}()

	By("Dropping keyspace %q", f.keyspace)
	err := f.ExecStmts(fmt.Sprintf(`DROP KEYSPACE IF EXISTS %q`, f.keyspace))
	o.Expect(err).NotTo(o.HaveOccurred())
}
