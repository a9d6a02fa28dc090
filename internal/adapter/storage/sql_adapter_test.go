package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/port"
)

func getSQLiteDB(t *testing.T) *sql.DB {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	return db
}

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stockledger?parseTime=true"
	}

	ctx := context.Background()
	db, err := Open(ctx, DriverMySQL, dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, DriverMySQL))
	for _, table := range []string{"logs", "stock_items", "users", "departments"} {
		_, err := db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return db
}

// forEachDriver runs fn against SQLite and, when reachable, MySQL.
func forEachDriver(t *testing.T, fn func(t *testing.T, db *sql.DB)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, getSQLiteDB(t)) })
	t.Run("mysql", func(t *testing.T) { fn(t, getMySQLDB(t)) })
}

func seedDepartment(t *testing.T, db *sql.DB, name string) int64 {
	result, err := db.ExecContext(context.Background(), `INSERT INTO departments (name) VALUES (?)`, name)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestSQLAdapter_GetItem(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *sql.DB) {
		ctx := context.Background()
		adapter := NewSQLAdapter(db)
		deptID := seedDepartment(t, db, "IT")

		id, err := adapter.CreateItem(ctx, domain.StockItem{Name: "Wireless Mouse", Quantity: 5, DepartmentID: deptID})
		require.NoError(t, err)

		item, err := adapter.GetItem(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "Wireless Mouse", item.Name)
		assert.Equal(t, 5, item.Quantity)
		assert.Equal(t, deptID, item.DepartmentID)
		assert.Equal(t, domain.ItemStatusAvailable, item.Status)
		assert.Equal(t, int64(0), item.Version)

		missing, err := adapter.GetItem(ctx, id+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestSQLAdapter_ListItems(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *sql.DB) {
		ctx := context.Background()
		adapter := NewSQLAdapter(db)
		deptID := seedDepartment(t, db, "IT")

		empty, err := adapter.ListItems(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		var ids []int64
		for _, name := range []string{"Stapler", "Monitor", "Keyboard"} {
			id, err := adapter.CreateItem(ctx, domain.StockItem{Name: name, Quantity: 1, DepartmentID: deptID})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		items, err := adapter.ListItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		for i, item := range items {
			assert.Equal(t, ids[i], item.ID)
		}
	})
}

func TestSQLAdapter_CommitTransition(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *sql.DB) {
		ctx := context.Background()
		adapter := NewSQLAdapter(db)
		deptID := seedDepartment(t, db, "IT")

		id, err := adapter.CreateItem(ctx, domain.StockItem{Name: "Wireless Mouse", Quantity: 5, DepartmentID: deptID})
		require.NoError(t, err)
		item, err := adapter.GetItem(ctx, id)
		require.NoError(t, err)

		item.Assign()
		actor := int64(3)
		stamp := time.Date(2024, 1, 25, 14, 30, 0, 123456000, time.UTC)
		stored, err := adapter.CommitTransition(ctx, *item, domain.LogEntry{
			Timestamp: stamp,
			Action:    domain.ActionAssign,
			Details:   domain.LogDetails{ItemID: id, ActorID: &actor, Reason: "new hire"},
		})
		require.NoError(t, err)
		assert.NotZero(t, stored.ID)

		after, err := adapter.GetItem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 4, after.Quantity)
		assert.Equal(t, domain.ItemStatusAssigned, after.Status)
		assert.Equal(t, int64(1), after.Version)

		logs, err := adapter.ListLogs(ctx)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, stored.ID, logs[0].ID)
		assert.True(t, logs[0].Timestamp.Equal(stamp))
		assert.Equal(t, domain.ActionAssign, logs[0].Action)
		assert.Equal(t, stored.Details, logs[0].Details)
	})
}

func TestSQLAdapter_CommitTransition_VersionConflict(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *sql.DB) {
		ctx := context.Background()
		adapter := NewSQLAdapter(db)
		deptID := seedDepartment(t, db, "IT")

		id, err := adapter.CreateItem(ctx, domain.StockItem{Name: "Monitor", Quantity: 2, DepartmentID: deptID})
		require.NoError(t, err)

		stale := domain.StockItem{ID: id, Quantity: 1, Status: domain.ItemStatusAssigned, Version: 7}
		_, err = adapter.CommitTransition(ctx, stale, domain.LogEntry{
			Timestamp: time.Now(),
			Action:    domain.ActionAssign,
			Details:   domain.LogDetails{ItemID: id},
		})
		require.ErrorIs(t, err, port.ErrOptimisticLock)

		item, err := adapter.GetItem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, item.Quantity)
		assert.Equal(t, int64(0), item.Version)

		logs, err := adapter.ListLogs(ctx)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}

func TestSQLAdapter_AppendLog(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *sql.DB) {
		ctx := context.Background()
		adapter := NewSQLAdapter(db)

		first, err := adapter.AppendLog(ctx, domain.LogEntry{
			Timestamp: time.Now().UTC(),
			Action:    domain.ActionReturn,
			Details:   domain.LogDetails{ItemID: 1, Condition: "damaged"},
		})
		require.NoError(t, err)
		second, err := adapter.AppendLog(ctx, domain.LogEntry{
			Timestamp: time.Now().UTC(),
			Action:    domain.ActionAssign,
			Details:   domain.LogDetails{ItemID: 1},
		})
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)

		logs, err := adapter.ListLogs(ctx)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "damaged", logs[0].Details.Condition)
		assert.Nil(t, logs[0].Details.ActorID)
	})
}

func TestSQLAdapter_Directory(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *sql.DB) {
		ctx := context.Background()
		adapter := NewSQLAdapter(db)
		deptID := seedDepartment(t, db, "Finance")

		_, err := db.ExecContext(ctx, `
			INSERT INTO users (username, email, department_id, full_name, role)
			VALUES (?, ?, ?, ?, ?), (?, ?, NULL, NULL, ?)`,
			"alice", "alice@example.com", deptID, "Alice Moreau", "manager",
			"svc-backup", "backup@example.com", "staff",
		)
		require.NoError(t, err)

		departments, err := adapter.ListDepartments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.Department{{ID: deptID, Name: "Finance"}}, departments)

		users, err := adapter.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, deptID, users[0].DepartmentID)
		assert.Equal(t, "Alice Moreau", users[0].FullName)
		assert.Zero(t, users[1].DepartmentID)
		assert.Empty(t, users[1].FullName)
	})
}

func TestMigrate_Repeatable(t *testing.T) {
	db := getSQLiteDB(t)
	assert.NoError(t, Migrate(context.Background(), db, DriverSQLite))
	assert.Error(t, Migrate(context.Background(), db, "postgres"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "")
	assert.Error(t, err)
}
