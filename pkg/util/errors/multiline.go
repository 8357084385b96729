package errors

import (
	"errors"
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// aggregate joins errors with a separator and optionally elides the tail of
// long lists in its message. Errors() always returns every error.
type aggregate struct {
	errList []error
	sep     string
	limit   int
}

var _ utilerrors.Aggregate = &aggregate{}

func NewAggregate(errList []error, sep string) error {
	return NewLimitedAggregate(errList, sep, 0)
}

func NewMultilineAggregate(errList []error) error {
	return NewAggregate(errList, "\n")
}

// NewLimitedAggregate is like NewAggregate but prints at most limit errors.
// A non-positive limit prints all of them.
func NewLimitedAggregate(errList []error, sep string, limit int) error {
	var errs []error
	for _, err := range errList {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	if len(sep) == 0 {
		sep = "\n"
	}

	return &aggregate{
		errList: errs,
		sep:     sep,
		limit:   limit,
	}
}

func (agg *aggregate) Error() string {
	shown := agg.errList
	if agg.limit > 0 && len(shown) > agg.limit {
		shown = shown[:agg.limit]
	}

	msgs := make([]string, 0, len(shown)+1)
	for _, err := range shown {
		msgs = append(msgs, err.Error())
	}

	if hidden := len(agg.errList) - len(shown); hidden > 0 {
		msgs = append(msgs, fmt.Sprintf("... and %d more", hidden))
	}

	return strings.Join(msgs, agg.sep)
}

func (agg *aggregate) Errors() []error {
	return agg.errList
}

func (agg *aggregate) Is(target error) bool {
	return agg.visit(func(err error) bool {
		return errors.Is(err, target)
	})
}

func (agg *aggregate) visit(f func(err error) bool) bool {
	for _, err := range agg.errList {
		switch err := err.(type) {
		case *aggregate:
			if err.visit(f) {
				return true
			}

		case utilerrors.Aggregate:
			for _, nestedErr := range err.Errors() {
				if f(nestedErr) {
					return true
				}
			}

		default:
			if f(err) {
				return true
			}
		}
	}

	return false
}
