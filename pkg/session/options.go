// Copyright (C) 2025 ScyllaDB

package session

import (
	"fmt"
	"time"

	"github.com/scylladb/cql-schema-metadata/pkg/schemarefresh"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

type Options struct {
	// SchemaMetadata enables keeping the schema snapshot up to date.
	SchemaMetadata bool

	RefreshDebounce      time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RefreshTimeout       time.Duration
	MaxRefreshRate       float64
}

func DefaultOptions() Options {
	refresh := schemarefresh.DefaultOptions()
	return Options{
		SchemaMetadata:       true,
		RefreshDebounce:      refresh.Debounce,
		RetryInitialInterval: refresh.RetryInitialInterval,
		RetryMaxInterval:     refresh.RetryMaxInterval,
		RefreshTimeout:       refresh.RefreshTimeout,
		MaxRefreshRate:       refresh.MaxRefreshRate,
	}
}

// ConfigureSchemaMetadata returns a copy of the options with schema metadata
// enabled or disabled.
func (o Options) ConfigureSchemaMetadata(enabled bool) Options {
	o.SchemaMetadata = enabled
	return o
}

// withDefaults fills in zero retry intervals with their defaults.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.RetryInitialInterval == 0 {
		o.RetryInitialInterval = defaults.RetryInitialInterval
	}
	if o.RetryMaxInterval == 0 {
		o.RetryMaxInterval = defaults.RetryMaxInterval
	}
	return o
}

func (o Options) refreshOptions() schemarefresh.Options {
	return schemarefresh.Options{
		Debounce:             o.RefreshDebounce,
		RetryInitialInterval: o.RetryInitialInterval,
		RetryMaxInterval:     o.RetryMaxInterval,
		RefreshTimeout:       o.RefreshTimeout,
		MaxRefreshRate:       o.MaxRefreshRate,
	}
}

// tuned reports the refresh settings set to something other than their zero or default value.
func (o Options) tuned() []string {
	defaults := DefaultOptions()

	var res []string
	check := func(name string, value, def interface{}, zero bool) {
		if !zero && value != def {
			res = append(res, name)
		}
	}
	check("refreshDebounce", o.RefreshDebounce, defaults.RefreshDebounce, o.RefreshDebounce == 0)
	check("retryInitialInterval", o.RetryInitialInterval, defaults.RetryInitialInterval, o.RetryInitialInterval == 0)
	check("retryMaxInterval", o.RetryMaxInterval, defaults.RetryMaxInterval, o.RetryMaxInterval == 0)
	check("refreshTimeout", o.RefreshTimeout, defaults.RefreshTimeout, o.RefreshTimeout == 0)
	check("maxRefreshRate", o.MaxRefreshRate, defaults.MaxRefreshRate, o.MaxRefreshRate == 0)

	return res
}

func validateNonNegativeDuration(d time.Duration, fldPath *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	if d < 0 {
		allErrs = append(allErrs, field.Invalid(fldPath, d.String(), "must be non-negative"))
	}
	return allErrs
}

func ValidateOptions(o *Options, fldPath *field.Path) field.ErrorList {
	var allErrs field.ErrorList

	allErrs = append(allErrs, validateNonNegativeDuration(o.RefreshDebounce, fldPath.Child("refreshDebounce"))...)
	allErrs = append(allErrs, validateNonNegativeDuration(o.RetryInitialInterval, fldPath.Child("retryInitialInterval"))...)
	allErrs = append(allErrs, validateNonNegativeDuration(o.RetryMaxInterval, fldPath.Child("retryMaxInterval"))...)
	allErrs = append(allErrs, validateNonNegativeDuration(o.RefreshTimeout, fldPath.Child("refreshTimeout"))...)

	if o.MaxRefreshRate < 0 {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("maxRefreshRate"), o.MaxRefreshRate, "must be non-negative"))
	}

	effective := o.withDefaults()
	if o.RetryInitialInterval >= 0 && o.RetryMaxInterval >= 0 && effective.RetryMaxInterval < effective.RetryInitialInterval {
		allErrs = append(
			allErrs,
			field.Invalid(
				fldPath.Child("retryMaxInterval"),
				effective.RetryMaxInterval.String(),
				fmt.Sprintf("must not be lower than retryInitialInterval (%s)", effective.RetryInitialInterval),
			),
		)
	}

	if !o.SchemaMetadata {
		for _, name := range o.tuned() {
			allErrs = append(allErrs, field.Forbidden(fldPath.Child(name), "can't tune schema refresh when schema metadata is disabled"))
		}
	}

	return allErrs
}

// Validate returns a *ConfigError describing every invalid field, or nil.
func (o *Options) Validate() error {
	return newConfigError(ValidateOptions(o, field.NewPath("options")))
}
