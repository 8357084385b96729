// Copyright (C) 2025 ScyllaDB

package session

import (
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ConfigError is returned when a session is configured inconsistently.
type ConfigError struct {
	Errs field.ErrorList
}

func newConfigError(errs field.ErrorList) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{Errs: errs}
}

func (e *ConfigError) Error() string {
	return "invalid session configuration: " + e.Errs.ToAggregate().Error()
}

func (e *ConfigError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errs))
	for _, err := range e.Errs {
		errs = append(errs, err)
	}
	return errs
}
