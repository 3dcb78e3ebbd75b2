// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Defaults used when a limiter is built with zero values
const (
	DefaultWindow = time.Minute
	DefaultMax    = 10
)

// Result describes one identity's position in its current window
type Result struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long a throttled caller should wait, rounded up to
// whole seconds and never less than one.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

// Limiter is a fixed-window request counter keyed by identity (client IP).
type Limiter interface {
	// Check records a request and reports whether it is admitted.
	Check(ctx context.Context, identity string) (Result, error)
	// Status reports the current window without recording a request.
	Status(ctx context.Context, identity string) (Result, error)
}

type entry struct {
	count   int
	resetAt time.Time
}

// Memory keeps counters in process memory. Counters are not shared between
// server instances.
type Memory struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory creates an in-process limiter
func NewMemory(window time.Duration, max int) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Memory{
		window:  window,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// WithClock replaces the time source, for tests
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Check(_ context.Context, identity string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	e, ok := m.entries[identity]
	if !ok {
		e = &entry{resetAt: now.Add(m.window)}
		m.entries[identity] = e
	}
	e.count++

	return m.result(e), nil
}

func (m *Memory) Status(_ context.Context, identity string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[identity]
	if !ok || !now.Before(e.resetAt) {
		return Result{Allowed: true, Remaining: m.max, ResetAt: now.Add(m.window)}, nil
	}
	return m.result(e), nil
}

// Len returns the number of tracked identities
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweep drops every expired entry. Linear in the number of identities.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.resetAt) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) result(e *entry) Result {
	return Result{
		Allowed:   e.count <= m.max,
		Count:     e.count,
		Remaining: max(m.max-e.count, 0),
		ResetAt:   e.resetAt,
	}
}

var _ Limiter = (*Memory)(nil)
