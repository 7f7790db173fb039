package http

import (
	"sync/atomic"
	"time"
)

// RefreshState records when this process last emitted the result file.
// Files left behind by earlier processes are not served until a refresh succeeds.
type RefreshState struct {
	refreshedAt atomic.Pointer[time.Time]
}

// MarkRefreshed records a successful refresh at t
func (s *RefreshState) MarkRefreshed(t time.Time) {
	t = t.UTC()
	s.refreshedAt.Store(&t)
}

// RefreshedAt returns the last successful refresh, or nil before the first one
func (s *RefreshState) RefreshedAt() *time.Time {
	return s.refreshedAt.Load()
}
