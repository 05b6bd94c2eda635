package database

import "stockwatch-telegram-bot/internal/types"

// Store bundles the persistence functions behind a value the watcher
// can take as a dependency.
type Store struct{}

func (Store) LoadCategoryState(category string) (types.CategoryState, error) {
	return LoadCategoryState(category)
}

func (Store) SaveCategoryState(category string, state types.CategoryState) error {
	return SaveCategoryState(category, state)
}

func (Store) LogAlerts(category string, events []types.ChangeEvent) error {
	return LogAlerts(category, events)
}

func (Store) RecordCheck(category string, products, alertsSent int) error {
	return RecordCheck(category, products, alertsSent)
}

func (Store) GetStats(category string) (types.CategoryStats, error) {
	return GetStats(category)
}

func (Store) GetCheckHistory(category string, limit int) ([]types.CheckRecord, error) {
	return GetCheckHistory(category, limit)
}
