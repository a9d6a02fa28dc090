package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/port"
)

// CommitFunc persists a stamped entry, possibly together with other writes,
// and returns it with the ID the store assigned.
type CommitFunc func(entry domain.LogEntry) (domain.LogEntry, error)

// AuditRecorder is the only writer of the log sequence. Stamping and
// committing happen under one mutex so timestamps never decrease in ID order.
type AuditRecorder struct {
	logs port.LogStore
	now  func() time.Time

	mu   sync.Mutex
	last time.Time
}

type RecorderOption func(*AuditRecorder)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *AuditRecorder) {
		r.now = now
	}
}

func NewAuditRecorder(logs port.LogStore, opts ...RecorderOption) *AuditRecorder {
	r := &AuditRecorder{
		logs: logs,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append stores a standalone entry.
func (r *AuditRecorder) Append(ctx context.Context, action domain.Action, details domain.LogDetails) (domain.LogEntry, error) {
	if !action.Valid() {
		return domain.LogEntry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, action)
	}

	entry, err := r.Record(ctx, action, details, func(e domain.LogEntry) (domain.LogEntry, error) {
		return r.logs.AppendLog(ctx, e)
	})
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("append %s log: %w: %w", action, ErrPersistence, err)
	}
	return entry, nil
}

// Record stamps an entry and hands it to commit. The commit error is
// returned unwrapped so the caller can tell version conflicts apart.
func (r *AuditRecorder) Record(ctx context.Context, action domain.Action, details domain.LogDetails, commit CommitFunc) (domain.LogEntry, error) {
	if !action.Valid() {
		return domain.LogEntry{}, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, action)
	}
	if err := ctx.Err(); err != nil {
		return domain.LogEntry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := domain.LogEntry{
		Timestamp: r.stamp(),
		Action:    action,
		Details:   details,
	}
	stored, err := commit(entry)
	if err != nil {
		return domain.LogEntry{}, err
	}
	r.last = entry.Timestamp
	return stored, nil
}

func (r *AuditRecorder) List(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error) {
	entries, err := r.logs.ListLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w: %w", ErrPersistence, err)
	}

	result := make([]domain.LogEntry, 0, len(entries))
	for _, e := range entries {
		if filter.Match(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// stamp must be called with mu held. Storage keeps microseconds.
func (r *AuditRecorder) stamp() time.Time {
	t := r.now().UTC().Truncate(time.Microsecond)
	if t.Before(r.last) {
		return r.last
	}
	return t
}
