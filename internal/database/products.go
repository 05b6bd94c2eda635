package database

import (
	"encoding/json"
	"fmt"
	"time"

	"stockwatch-telegram-bot/internal/types"

	_ "modernc.org/sqlite"
)

// LoadCategoryState fetches the last recorded snapshot set for a category.
// A category never seen before yields an empty state, not an error.
func LoadCategoryState(category string) (types.CategoryState, error) {
	query := `SELECT id, name, price, image_url, url, sizes, last_seen FROM products WHERE category = ?;`

	rows, err := DB.Query(query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query products for category %s: %w", category, err)
	}
	defer rows.Close()

	state := make(types.CategoryState)
	for rows.Next() {
		var snap types.ProductSnapshot
		var sizesJSON, lastSeen string
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.Price, &snap.ImageURL, &snap.ProductURL, &sizesJSON, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(sizesJSON), &snap.Sizes); err != nil {
			return nil, fmt.Errorf("failed to decode sizes for product %s: %w", snap.ID, err)
		}
		snap.Category = category
		if t, err := time.Parse(time.RFC3339, lastSeen); err == nil {
			snap.ObservedAt = t
		}
		state[snap.ID] = snap
	}

	return state, rows.Err()
}

// SaveCategoryState atomically replaces the recorded snapshot set for a
// category. The first_seen timestamp of products that survive the
// replace is preserved. Called only after a successful detection cycle.
func SaveCategoryState(category string, state types.CategoryState) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	firstSeen := make(map[string]string)
	rows, err := tx.Query(`SELECT id, first_seen FROM products WHERE category = ?;`, category)
	if err != nil {
		return fmt.Errorf("failed to query first_seen: %w", err)
	}
	for rows.Next() {
		var id, seen string
		if err := rows.Scan(&id, &seen); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan first_seen row: %w", err)
		}
		firstSeen[id] = seen
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM products WHERE category = ?;`, category); err != nil {
		return fmt.Errorf("failed to clear category %s: %w", category, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	insert := `
	INSERT INTO products (category, id, name, price, image_url, url, sizes, total_stock, first_seen, last_seen)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	for _, snap := range state {
		sizesJSON, err := json.Marshal(snap.Sizes)
		if err != nil {
			return fmt.Errorf("failed to encode sizes for product %s: %w", snap.ID, err)
		}
		seen, ok := firstSeen[snap.ID]
		if !ok {
			seen = now
		}
		if _, err := tx.Exec(insert, category, snap.ID, snap.Name, snap.Price, snap.ImageURL,
			snap.ProductURL, string(sizesJSON), snap.TotalStock(), seen, now); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", snap.ID, err)
		}
	}

	return tx.Commit()
}

// LogAlerts records sent change events for daily stats.
func LogAlerts(category string, events []types.ChangeEvent) error {
	query := `
	INSERT INTO alerts (category, product_id, kind, size, old_quantity, new_quantity, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, ev := range events {
		if _, err := DB.Exec(query, category, ev.ProductID, string(ev.Kind), ev.Size, ev.OldQuantity, ev.NewQuantity, now); err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}
	return nil
}

// RecordCheck stores the outcome of one detection cycle.
func RecordCheck(category string, products, alertsSent int) error {
	query := `INSERT INTO checks (category, products, alerts_sent, checked_at) VALUES (?, ?, ?, ?);`
	_, err := DB.Exec(query, category, products, alertsSent, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record check: %w", err)
	}
	return nil
}

// GetCheckHistory returns the most recent cycles for a category, oldest first.
func GetCheckHistory(category string, limit int) ([]types.CheckRecord, error) {
	query := `
	SELECT products, alerts_sent, checked_at FROM checks
	WHERE category = ? ORDER BY id DESC LIMIT ?;`

	rows, err := DB.Query(query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query check history: %w", err)
	}
	defer rows.Close()

	var records []types.CheckRecord
	for rows.Next() {
		rec := types.CheckRecord{Category: category}
		var checkedAt string
		if err := rows.Scan(&rec.Products, &rec.AlertsSent, &checkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, checkedAt); err == nil {
			rec.CheckedAt = t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// GetStats aggregates tracked products and today's alert counts for a category.
func GetStats(category string) (types.CategoryStats, error) {
	var stats types.CategoryStats

	err := DB.QueryRow(`SELECT COUNT(*) FROM products WHERE category = ?;`, category).Scan(&stats.TotalProducts)
	if err != nil {
		return stats, fmt.Errorf("failed to count products: %w", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	countToday := `SELECT COUNT(*) FROM alerts WHERE category = ? AND kind = ? AND DATE(created_at) = ?;`

	err = DB.QueryRow(countToday, category, string(types.EventNewProduct), today).Scan(&stats.NewToday)
	if err != nil {
		return stats, fmt.Errorf("failed to count new products: %w", err)
	}
	err = DB.QueryRow(countToday, category, string(types.EventRestock), today).Scan(&stats.RestocksToday)
	if err != nil {
		return stats, fmt.Errorf("failed to count restocks: %w", err)
	}

	return stats, nil
}
