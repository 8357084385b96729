// Copyright (C) 2021 ScyllaDB

package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"k8s.io/klog/v2"
)

var (
	stopChannel = make(chan struct{})
	once        sync.Once

	shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGABRT, syscall.SIGTERM}
)

func setupStopChannel() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	go func() {
		s := <-c
		klog.InfoS("Received shutdown signal, shutting down", "Signal", s)
		close(stopChannel)
		<-c
		klog.InfoS("Received second shutdown signal, exiting", "Signal", s)
		// Second signal, exit directly.
		os.Exit(1)
	}()
}

func StopChannel() (stopCh <-chan struct{}) {
	once.Do(setupStopChannel)
	return stopChannel
}

// Context returns a context that is cancelled on the first shutdown signal.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	stopCh := StopChannel()
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
