package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/port"
)

// MemoryAdapter is an in-process port.DatabaseRepository. One mutex covers
// items and logs so a transition commits as a unit.
type MemoryAdapter struct {
	mu          sync.RWMutex
	items       map[int64]domain.StockItem
	logs        []domain.LogEntry
	departments []domain.Department
	users       []domain.User
	nextItemID  int64
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{items: make(map[int64]domain.StockItem)}
}

// PutItem provisions an item. A zero ID gets the next free one.
func (m *MemoryAdapter) PutItem(item domain.StockItem) domain.StockItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == 0 {
		m.nextItemID++
		item.ID = m.nextItemID
	} else if item.ID > m.nextItemID {
		m.nextItemID = item.ID
	}
	if item.Status == "" {
		item.Status = domain.ItemStatusAvailable
	}
	m.items[item.ID] = item
	return item
}

func (m *MemoryAdapter) PutDepartment(d domain.Department) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments = append(m.departments, d)
}

func (m *MemoryAdapter) PutUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, u)
}

func (m *MemoryAdapter) GetItem(_ context.Context, itemID int64) (*domain.StockItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *MemoryAdapter) ListItems(_ context.Context) ([]domain.StockItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.StockItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *MemoryAdapter) CommitTransition(_ context.Context, item domain.StockItem, entry domain.LogEntry) (domain.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.items[item.ID]
	if !ok || current.Version != item.Version {
		return domain.LogEntry{}, port.ErrOptimisticLock
	}

	item.Version++
	m.items[item.ID] = item
	return m.appendLocked(entry), nil
}

func (m *MemoryAdapter) AppendLog(_ context.Context, entry domain.LogEntry) (domain.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(entry), nil
}

func (m *MemoryAdapter) ListLogs(_ context.Context) ([]domain.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.LogEntry{}, m.logs...), nil
}

func (m *MemoryAdapter) ListDepartments(_ context.Context) ([]domain.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Department{}, m.departments...), nil
}

func (m *MemoryAdapter) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.User{}, m.users...), nil
}

func (m *MemoryAdapter) appendLocked(entry domain.LogEntry) domain.LogEntry {
	entry.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, entry)
	return entry
}
