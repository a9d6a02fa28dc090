package port

import (
	"context"
	"errors"

	"github.com/deptstock/stock-ledger/internal/core/domain"
)

// ErrOptimisticLock is returned by CommitTransition when the stored version
// no longer matches the version the item was loaded with.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

type ItemRepository interface {
	// GetItem retrieves a stock item by ID, nil when it does not exist
	GetItem(ctx context.Context, itemID int64) (*domain.StockItem, error)

	// ListItems returns all items in ascending ID order
	ListItems(ctx context.Context) ([]domain.StockItem, error)
}

type LogStore interface {
	// AppendLog stores an entry and returns it with its assigned ID
	AppendLog(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error)

	// ListLogs returns entries in creation order
	ListLogs(ctx context.Context) ([]domain.LogEntry, error)
}

type TransitionStore interface {
	// CommitTransition saves the item with a version check and appends the
	// entry in the same transaction. Neither is visible if either fails.
	CommitTransition(ctx context.Context, item domain.StockItem, entry domain.LogEntry) (domain.LogEntry, error)
}

type DirectoryRepository interface {
	ListDepartments(ctx context.Context) ([]domain.Department, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// DatabaseRepository is everything the ledger needs from durable storage.
type DatabaseRepository interface {
	ItemRepository
	LogStore
	TransitionStore
	DirectoryRepository
}
