// Copyright (C) 2025 ScyllaDB

package framework

import (
	"os"
	"strings"
	"time"
)

const (
	HostsEnvVar    = "CQL_SCHEMA_E2E_HOSTS"
	UsernameEnvVar = "CQL_SCHEMA_E2E_USERNAME"
	PasswordEnvVar = "CQL_SCHEMA_E2E_PASSWORD"
)

type TestContextType struct {
	Hosts    []string
	Username string
	Password string
	Timeout  time.Duration
}

var TestContext = newTestContext()

func newTestContext() *TestContextType {
	tc := &TestContextType{
		Username: os.Getenv(UsernameEnvVar),
		Password: os.Getenv(PasswordEnvVar),
		Timeout:  10 * time.Second,
	}

	for _, h := range strings.Split(os.Getenv(HostsEnvVar), ",") {
		h = strings.TrimSpace(h)
		if len(h) != 0 {
			tc.Hosts = append(tc.Hosts, h)
		}
	}

	return tc
}
