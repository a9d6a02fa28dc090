package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL,
		department_id BIGINT NULL,
		full_name VARCHAR(255) NULL,
		role VARCHAR(50) NOT NULL DEFAULT 'staff',
		FOREIGN KEY (department_id) REFERENCES departments(id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL DEFAULT 0,
		department_id BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'available',
		version BIGINT NOT NULL DEFAULT 0,
		FOREIGN KEY (department_id) REFERENCES departments(id)
	)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		timestamp_us BIGINT NOT NULL,
		action VARCHAR(20) NOT NULL,
		details TEXT NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		department_id INTEGER NULL REFERENCES departments(id),
		full_name TEXT NULL,
		role TEXT NOT NULL DEFAULT 'staff'
	)`,
	`CREATE TABLE IF NOT EXISTS stock_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		department_id INTEGER NOT NULL REFERENCES departments(id),
		status TEXT NOT NULL DEFAULT 'available',
		version INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_us INTEGER NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL
	)`,
}

// Migrate creates the ledger tables if they are missing. It never seeds data.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case DriverMySQL:
		stmts = mysqlSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
