package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/metrics"
	"github.com/deptstock/stock-ledger/internal/port"
)

const (
	DefaultCommitAttempts = 3
	DefaultLockWait       = 5 * time.Second
)

// Transition is the committed result of an assign or return.
type Transition struct {
	Item  domain.StockItem
	Entry domain.LogEntry
}

type LedgerOptions struct {
	// CommitAttempts bounds reload-and-retry on optimistic lock conflicts.
	CommitAttempts int
	// LockWait bounds how long a request waits for the per-item lock.
	LockWait time.Duration
	Metrics  *metrics.Metrics
}

// LedgerService is the only writer of item quantity and status.
type LedgerService struct {
	db          port.DatabaseRepository
	recorder    *AuditRecorder
	locker      port.ItemLocker
	idempotency port.IdempotencyStore
	attempts    int
	lockWait    time.Duration
	metrics     *metrics.Metrics
}

func NewLedgerService(
	db port.DatabaseRepository,
	recorder *AuditRecorder,
	locker port.ItemLocker,
	idempotency port.IdempotencyStore,
	opts LedgerOptions,
) *LedgerService {
	if opts.CommitAttempts <= 0 {
		opts.CommitAttempts = DefaultCommitAttempts
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}
	return &LedgerService{
		db:          db,
		recorder:    recorder,
		locker:      locker,
		idempotency: idempotency,
		attempts:    opts.CommitAttempts,
		lockWait:    opts.LockWait,
		metrics:     opts.Metrics,
	}
}

// Assign checks out one unit. Quantity is the gate, status only records
// the last transition.
func (s *LedgerService) Assign(ctx context.Context, req domain.AssignRequest) (Transition, error) {
	return s.transition(ctx, domain.ActionAssign, req.StockItemID, req.RequestID, req.Details(), func(item *domain.StockItem) error {
		if !item.InStock() {
			return ErrOutOfStock
		}
		item.Assign()
		return nil
	})
}

// Return checks one unit back in, whatever the current status.
func (s *LedgerService) Return(ctx context.Context, req domain.ReturnRequest) (Transition, error) {
	return s.transition(ctx, domain.ActionReturn, req.ItemID, req.RequestID, req.Details(), func(item *domain.StockItem) error {
		item.Return()
		return nil
	})
}

func (s *LedgerService) GetItem(ctx context.Context, itemID int64) (domain.StockItem, error) {
	item, err := s.db.GetItem(ctx, itemID)
	if err != nil {
		return domain.StockItem{}, fmt.Errorf("get item %d: %w: %w", itemID, ErrPersistence, err)
	}
	if item == nil {
		return domain.StockItem{}, ErrNotFound
	}
	return *item, nil
}

func (s *LedgerService) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.StockItem, error) {
	items, err := s.db.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w: %w", ErrPersistence, err)
	}

	result := make([]domain.StockItem, 0, len(items))
	for _, item := range items {
		if filter.Match(item) {
			result = append(result, item)
		}
	}
	return result, nil
}

func (s *LedgerService) ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error) {
	return s.recorder.List(ctx, filter)
}

func (s *LedgerService) transition(
	ctx context.Context,
	action domain.Action,
	itemID int64,
	requestID string,
	details domain.LogDetails,
	apply func(*domain.StockItem) error,
) (result Transition, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveTransition(string(action), outcomeOf(err), time.Since(start))
	}()

	if requestID != "" {
		key := idempotencyKey(action, requestID)
		ok, setErr := s.idempotency.SetIdempotency(ctx, key)
		if setErr != nil {
			return Transition{}, fmt.Errorf("idempotency check failed: %w: %w", ErrPersistence, setErr)
		}
		if !ok {
			return Transition{}, ErrDuplicateRequest
		}
		defer func() {
			if err == nil {
				return
			}
			// The key only guards committed work, so a retry must be possible.
			if clearErr := s.idempotency.ClearIdempotency(context.WithoutCancel(ctx), key); clearErr != nil {
				err = errors.Join(err, fmt.Errorf("release idempotency key: %w", clearErr))
			}
		}()
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	unlock, err := s.locker.Lock(lockCtx, itemID)
	cancel()
	if err != nil {
		return Transition{}, fmt.Errorf("lock item %d: %w: %w", itemID, ErrPersistence, err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		item, err := s.db.GetItem(ctx, itemID)
		if err != nil {
			return Transition{}, fmt.Errorf("get item %d: %w: %w", itemID, ErrPersistence, err)
		}
		if item == nil {
			return Transition{}, ErrNotFound
		}

		next := *item
		if err := apply(&next); err != nil {
			return Transition{}, err
		}

		entry, err := s.recorder.Record(ctx, action, details, func(e domain.LogEntry) (domain.LogEntry, error) {
			return s.db.CommitTransition(ctx, next, e)
		})
		if errors.Is(err, port.ErrOptimisticLock) {
			s.metrics.IncrementCommitConflicts()
			if attempt < s.attempts {
				continue
			}
		}
		if err != nil {
			return Transition{}, fmt.Errorf("commit %s on item %d: %w: %w", action, itemID, ErrPersistence, err)
		}

		next.Version++
		return Transition{Item: next, Entry: entry}, nil
	}
}

func idempotencyKey(action domain.Action, requestID string) string {
	return fmt.Sprintf("ledger:%s:%s", action, requestID)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrOutOfStock):
		return metrics.OutcomeOutOfStock
	case errors.Is(err, ErrDuplicateRequest):
		return metrics.OutcomeDuplicate
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomePersistence
	}
}
