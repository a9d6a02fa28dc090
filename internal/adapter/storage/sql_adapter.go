package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/port"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// SQLAdapter implements port.DatabaseRepository over MySQL or SQLite. All
// statements use ? placeholders, which both drivers accept.
type SQLAdapter struct {
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// Open connects, pings and sizes the pool for the given driver.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func (m *SQLAdapter) GetItem(ctx context.Context, itemID int64) (*domain.StockItem, error) {
	var item domain.StockItem
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, quantity, department_id, status, version
		FROM stock_items WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.Name, &item.Quantity, &item.DepartmentID, &item.Status, &item.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock item: %w", err)
	}
	return &item, nil
}

func (m *SQLAdapter) ListItems(ctx context.Context) ([]domain.StockItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, quantity, department_id, status, version
		FROM stock_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stock items: %w", err)
	}
	defer rows.Close()

	items := []domain.StockItem{}
	for rows.Next() {
		var item domain.StockItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity, &item.DepartmentID, &item.Status, &item.Version); err != nil {
			return nil, fmt.Errorf("scan stock item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateItem provisions a new item and returns its ID.
func (m *SQLAdapter) CreateItem(ctx context.Context, item domain.StockItem) (int64, error) {
	if item.Status == "" {
		item.Status = domain.ItemStatusAvailable
	}
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO stock_items (name, quantity, department_id, status, version)
		VALUES (?, ?, ?, ?, 0)`,
		item.Name, item.Quantity, item.DepartmentID, item.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stock item: %w", err)
	}
	return result.LastInsertId()
}

func (m *SQLAdapter) CommitTransition(ctx context.Context, item domain.StockItem, entry domain.LogEntry) (domain.LogEntry, error) {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("encode log details: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE stock_items
		SET quantity = ?, status = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		item.Quantity, item.Status, item.ID, item.Version,
	)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("update stock item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("update stock item: %w", err)
	}
	if rows == 0 {
		return domain.LogEntry{}, port.ErrOptimisticLock
	}

	id, err := insertLog(ctx, tx, entry, details)
	if err != nil {
		return domain.LogEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.LogEntry{}, fmt.Errorf("commit tx: %w", err)
	}

	entry.ID = id
	return entry, nil
}

func (m *SQLAdapter) AppendLog(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error) {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return domain.LogEntry{}, fmt.Errorf("encode log details: %w", err)
	}

	id, err := insertLog(ctx, m.db, entry, details)
	if err != nil {
		return domain.LogEntry{}, err
	}
	entry.ID = id
	return entry, nil
}

func (m *SQLAdapter) ListLogs(ctx context.Context) ([]domain.LogEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, timestamp_us, action, details
		FROM logs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	entries := []domain.LogEntry{}
	for rows.Next() {
		var (
			entry   domain.LogEntry
			micros  int64
			details string
		)
		if err := rows.Scan(&entry.ID, &micros, &entry.Action, &details); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
			return nil, fmt.Errorf("decode log %d details: %w", entry.ID, err)
		}
		entry.Timestamp = time.UnixMicro(micros).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (m *SQLAdapter) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	departments := []domain.Department{}
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func (m *SQLAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, username, email, department_id, full_name, role
		FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var (
			u        domain.User
			deptID   sql.NullInt64
			fullName sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &deptID, &fullName, &u.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.DepartmentID = deptID.Int64
		u.FullName = fullName.String
		users = append(users, u)
	}
	return users, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLog(ctx context.Context, ex execer, entry domain.LogEntry, details []byte) (int64, error) {
	result, err := ex.ExecContext(ctx, `
		INSERT INTO logs (timestamp_us, action, details)
		VALUES (?, ?, ?)`,
		entry.Timestamp.UnixMicro(), entry.Action, string(details),
	)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	return id, nil
}
