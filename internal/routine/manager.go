// Package routine runs fire-and-forget work on a bounded set of goroutines.
package routine

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 10

// Manager runs functions in goroutines with a concurrency limit.
//
// Errors returned by tasks are collected and reported by Wait. Panics are
// recovered and logged.
type Manager struct {
	mu   sync.Mutex
	errs []error
	wg   sync.WaitGroup
	sema chan struct{}
}

// NewManager creates a Manager allowing at most maxGoroutine tasks at once.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = DefaultMaxGoroutine
	}

	return &Manager{
		sema: make(chan struct{}, maxGoroutine),
	}
}

// Go starts f in a new goroutine and reports whether it was started. The
// caller is never blocked: when the manager is full or ctx is already done
// the task is dropped and a warning is logged.
func (g *Manager) Go(ctx context.Context, name string, f func(ctx context.Context) error) bool {
	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "task canceled before start", "task", name, "because", err)
		return false
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "task dropped, too many running", "task", name)
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			<-g.sema

			if rvr := recover(); rvr != nil {
				slog.ErrorContext(ctx, "panic occurred in task", "task", name, "panic", rvr, "stack", string(debug.Stack()))
			}
		}()

		if err := f(ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()

	return true
}

// Wait blocks until every started task has finished and returns the joined
// task errors.
func (g *Manager) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
