// Package metrics is the seam between the pipeline and a metrics backend.
//
// The pipeline reports counters (rows read, deduped, dropped, inserted) and
// stage durations through package-level functions; a nop backend is active
// until SetBackend installs a real one. Core pipeline code depends only on
// this package, never on a vendor SDK.
package metrics

import (
	"sync"
	"time"
)

// Backend receives metric observations.
type Backend interface {
	// IncCounter adds delta to a named counter. Tags are "key:value" pairs.
	IncCounter(name string, delta float64, tags ...string)

	// ObserveDuration records one duration sample for a named stage.
	ObserveDuration(name string, d time.Duration, tags ...string)

	// Flush submits buffered observations. Called at least once at
	// shutdown.
	Flush() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the active backend. Passing nil restores the nop
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// IncCounter adds delta to a named counter on the active backend.
func IncCounter(name string, delta float64, tags ...string) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, tags...)
}

// ObserveDuration records a duration sample on the active backend.
func ObserveDuration(name string, d time.Duration, tags ...string) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.ObserveDuration(name, d, tags...)
}

// Flush flushes the active backend.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()
	return b.Flush()
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, ...string)            {}
func (nopBackend) ObserveDuration(string, time.Duration, ...string) {}
func (nopBackend) Flush() error                                     { return nil }
