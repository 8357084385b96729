package build

// commitFromGit is a constant representing the source version that
// generated this build. It should be set during build via -ldflags.
var commitFromGit string

// versionFromGit is the closest git tag. It should be set during build via -ldflags.
var versionFromGit = "v0.0.0-unknown"

// GitCommit returns the git commit hash for the source used to build the binary.
func GitCommit() string {
	return commitFromGit
}

// GitVersion returns the release version the binary was built from.
func GitVersion() string {
	return versionFromGit
}
