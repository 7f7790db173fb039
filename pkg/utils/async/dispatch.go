package async

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Single runs at most one handler at a time in the background, with panic
// recovery. Cancelling the ctx given to Dispatch stops a running handler.
type Single struct {
	running atomic.Bool
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewSingle creates a Single that logs handler errors and panics through logger
func NewSingle(logger *slog.Logger) *Single {
	if logger == nil {
		logger = slog.Default()
	}
	return &Single{logger: logger}
}

// Dispatch starts handler unless a previous one is still running.
// It reports whether handler was started.
func (s *Single) Dispatch(ctx context.Context, handler func(ctx context.Context) error) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(ctx); err != nil {
			s.logger.Error("error in async handler", "error", err)
		}
	}()
	return true
}

// Wait blocks until the running handler, if any, has returned
func (s *Single) Wait() {
	s.wg.Wait()
}
