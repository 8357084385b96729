// Copyright (C) 2025 ScyllaDB

package version

import (
	"fmt"
	"runtime"

	"github.com/scylladb/cql-schema-metadata/pkg/build"
)

type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
}

func Get() Info {
	return Info{
		GitVersion: build.GitVersion(),
		GitCommit:  build.GitCommit(),
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	commit := i.GitCommit
	if len(commit) == 0 {
		commit = "unknown"
	}
	return fmt.Sprintf("%s (commit %s, %s, %s)", i.GitVersion, commit, i.GoVersion, i.Platform)
}
