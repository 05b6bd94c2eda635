package database

import (
	"database/sql"
	"fmt"
)

// SaveMetric persists a counter value so it survives restarts. The
// label value is empty for unlabeled metrics.
func SaveMetric(metricName, labelValue string, value float64) error {
	query := `
	INSERT OR REPLACE INTO metrics (metric_name, label_value, metric_value)
	VALUES (?, ?, ?);`
	_, err := DB.Exec(query, metricName, labelValue, value)
	if err != nil {
		return fmt.Errorf("failed to save metric %s: %w", metricName, err)
	}
	return nil
}

// GetMetric loads an unlabeled metric, defaulting to 0 when absent.
func GetMetric(metricName string) (float64, error) {
	var value float64
	query := `SELECT metric_value FROM metrics WHERE metric_name = ? AND label_value = '';`
	err := DB.QueryRow(query, metricName).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to get metric %s: %w", metricName, err)
	}
	return value, nil
}

// GetMetricsByLabel loads all label/value pairs recorded for a metric.
func GetMetricsByLabel(metricName string) (map[string]float64, error) {
	query := `SELECT label_value, metric_value FROM metrics WHERE metric_name = ? AND label_value != '';`

	rows, err := DB.Query(query, metricName)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics for %s: %w", metricName, err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var label string
		var value float64
		if err := rows.Scan(&label, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		values[label] = value
	}
	return values, rows.Err()
}
