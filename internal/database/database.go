package database

import (
	"database/sql"
	"fmt"
	"log"
)

var DB *sql.DB

func InitDB(dbPath string) error {
	var err error
	DB, err = sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	createProductsTable := `
	CREATE TABLE IF NOT EXISTS products (
		category TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		image_url TEXT NOT NULL,
		url TEXT NOT NULL,
		sizes TEXT NOT NULL,
		total_stock INTEGER NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		PRIMARY KEY (category, id)
	);`
	_, err = DB.Exec(createProductsTable)
	if err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}

	createAlertsTable := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		product_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		size TEXT DEFAULT '',
		old_quantity INTEGER NOT NULL,
		new_quantity INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);`
	_, err = DB.Exec(createAlertsTable)
	if err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}

	createChecksTable := `
	CREATE TABLE IF NOT EXISTS checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		products INTEGER NOT NULL,
		alerts_sent INTEGER NOT NULL,
		checked_at TEXT NOT NULL
	);`
	_, err = DB.Exec(createChecksTable)
	if err != nil {
		return fmt.Errorf("failed to create checks table: %w", err)
	}

	createMetricsTable := `
	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_value TEXT NOT NULL DEFAULT '',
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_value)
	);`
	_, err = DB.Exec(createMetricsTable)
	if err != nil {
		return fmt.Errorf("failed to create metrics table: %w", err)
	}

	log.Println("Database initialized successfully.")
	return nil
}

func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
