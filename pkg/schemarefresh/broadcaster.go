// Copyright (C) 2025 ScyllaDB

package schemarefresh

import (
	"sync"
)

// errorBroadcaster hands the result of one refresh pass to every caller waiting for it.
type errorBroadcaster struct {
	lock      sync.Mutex
	listeners []chan<- error
}

func newErrorBroadcaster() *errorBroadcaster {
	return &errorBroadcaster{}
}

func (b *errorBroadcaster) newListener() <-chan error {
	ch := make(chan error, 1)

	b.lock.Lock()
	defer b.lock.Unlock()

	b.listeners = append(b.listeners, ch)
	return ch
}

func (b *errorBroadcaster) broadcast(err error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, listener := range b.listeners {
		listener <- err
		close(listener)
	}
	b.listeners = nil
}
