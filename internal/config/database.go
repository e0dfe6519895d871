package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			user_type VARCHAR(20) NOT NULL DEFAULT 'System User',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create user_roles table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_roles (
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(50) NOT NULL,
			PRIMARY KEY (user_id, role)
		)
	`)
	if err != nil {
		return err
	}

	// Create companies table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS companies (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			abbr VARCHAR(10) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create po_limits table (one record per user per company)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS po_limits (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			company VARCHAR(255) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'Revoked',
			per_po_limit NUMERIC(18,2) NOT NULL DEFAULT 0,
			per_month_limit NUMERIC(18,2) NOT NULL DEFAULT 0,
			monthly_usage NUMERIC(18,2) NOT NULL DEFAULT 0,
			last_reset_date TIMESTAMP NOT NULL,
			updated_by VARCHAR(36),
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, company)
		)
	`)
	if err != nil {
		return err
	}

	// Create purchase_orders table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS purchase_orders (
			id VARCHAR(36) PRIMARY KEY,
			owner VARCHAR(36) NOT NULL REFERENCES users(id),
			company VARCHAR(255) NOT NULL,
			supplier VARCHAR(255) NOT NULL,
			base_grand_total NUMERIC(18,2) NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'Draft',
			transaction_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create limit_increase_requests table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS limit_increase_requests (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			company VARCHAR(255) NOT NULL,
			current_per_po NUMERIC(18,2) NOT NULL DEFAULT 0,
			current_per_month NUMERIC(18,2) NOT NULL DEFAULT 0,
			requested_per_po NUMERIC(18,2) NOT NULL DEFAULT 0,
			requested_per_month NUMERIC(18,2) NOT NULL DEFAULT 0,
			reason TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'Draft',
			approved_by VARCHAR(36),
			approval_date TIMESTAMP,
			rejection_reason TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_po_limits_user_company ON po_limits(user_id, company)",
		"CREATE INDEX IF NOT EXISTS idx_purchase_orders_owner_company ON purchase_orders(owner, company, status, transaction_date)",
		"CREATE INDEX IF NOT EXISTS idx_limit_requests_status ON limit_increase_requests(status)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
