// Copyright (c) 2024 ScyllaDB.

package lazy

import (
	"sync"

	"go.uber.org/atomic"
)

// Value holds a T that is computed on first use. It is safe for concurrent use
// and a copy of the pointer shares the computed value.
type Value[T any] struct {
	get       func() T
	evaluated atomic.Bool
}

// New returns a Value which is initialized upon first call to Get using newFunc.
func New[T any](newFunc func() T) *Value[T] {
	v := &Value[T]{}
	v.get = sync.OnceValue(func() T {
		defer v.evaluated.Store(true)
		return newFunc()
	})
	return v
}

func (v *Value[T]) Get() T {
	return v.get()
}

// Evaluated reports whether Get has already computed the value.
func (v *Value[T]) Evaluated() bool {
	return v.evaluated.Load()
}
