// Copyright (C) 2025 ScyllaDB

package cqlsource

import (
	"fmt"

	"github.com/gobwas/glob"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// keyspaceMatcher matches keyspace names against glob patterns, e.g. "system*".
type keyspaceMatcher []glob.Glob

func newKeyspaceMatcher(patterns []string) (keyspaceMatcher, error) {
	m := make(keyspaceMatcher, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("can't compile keyspace pattern %q: %w", p, err)
		}
		m = append(m, g)
	}
	return m, nil
}

func (m keyspaceMatcher) Match(keyspace string) bool {
	for _, g := range m {
		if g.Match(keyspace) {
			return true
		}
	}
	return false
}

// ValidateKeyspacePatterns checks that every pattern is a valid glob.
func ValidateKeyspacePatterns(patterns []string, fldPath *field.Path) field.ErrorList {
	var allErrs field.ErrorList

	for i, p := range patterns {
		if len(p) == 0 {
			allErrs = append(allErrs, field.Invalid(fldPath.Index(i), p, "must not be empty"))
			continue
		}
		if _, err := glob.Compile(p); err != nil {
			allErrs = append(allErrs, field.Invalid(fldPath.Index(i), p, fmt.Sprintf("invalid glob pattern: %s", err.Error())))
		}
	}

	return allErrs
}
