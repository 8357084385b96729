// Copyright (C) 2025 ScyllaDB

package schemachange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocql/gocql/events"
	"k8s.io/klog/v2"
)

// Source delivers schema change notifications. The returned channel is closed
// when the stream ends; callers may subscribe again.
type Source interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

var ErrSourceClosed = errors.New("source is closed")

// ChannelSource is a Source fed by the application, for example from driver
// event callbacks. Every subscription receives events published after it was made.
type ChannelSource struct {
	lock        sync.Mutex
	subscribers map[chan Event]struct{}
	closed      bool
	bufferSize  int
}

var _ Source = &ChannelSource{}

func NewChannelSource(bufferSize int) *ChannelSource {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &ChannelSource{
		subscribers: map[chan Event]struct{}{},
		bufferSize:  bufferSize,
	}
}

func (s *ChannelSource) Subscribe(ctx context.Context) (<-chan Event, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}

	ch := make(chan Event, s.bufferSize)
	s.subscribers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		s.unsubscribe(ch)
	}()

	return ch, nil
}

func (s *ChannelSource) unsubscribe(ch chan Event) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// Publish delivers ev to every subscriber. Subscribers with a full buffer skip ev.
func (s *ChannelSource) Publish(ev Event) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			klog.V(4).InfoS("Dropping schema change event for a busy subscriber", "Event", ev)
		}
	}
}

// PublishDriverEvent converts and publishes a driver event. Events unrelated to the schema are ignored.
func (s *ChannelSource) PublishDriverEvent(ev events.Event) {
	e, ok := FromDriverEvent(ev)
	if !ok {
		return
	}
	s.Publish(e)
}

// PublishFrame decodes a native protocol EVENT frame read from a connection
// registered for SCHEMA_CHANGE and publishes it. Other event types are ignored.
func (s *ChannelSource) PublishFrame(frame []byte) error {
	e, err := DecodeEventFrame(frame)
	if errors.Is(err, ErrNotSchemaChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("can't decode event frame: %w", err)
	}
	s.Publish(e)
	return nil
}

// Close ends every subscription.
func (s *ChannelSource) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
