// Copyright (c) 2024 ScyllaDB.

package lazy

import (
	"sync"
	"testing"

	"go.uber.org/atomic"
)

func TestValueComputesOnce(t *testing.T) {
	calls := atomic.NewInt64(0)
	v := New(func() string {
		calls.Inc()
		return "computed"
	})

	if v.Evaluated() {
		t.Errorf("expected value not to be evaluated before Get")
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := v.Get(); got != "computed" {
				t.Errorf("expected %q, got %q", "computed", got)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
	if !v.Evaluated() {
		t.Errorf("expected value to be evaluated after Get")
	}
}
