package types

import "time"

// EventKind classifies a stock change.
type EventKind string

const (
	EventNewProduct EventKind = "new_product"
	EventRestock    EventKind = "restock"
	EventSizeAdded  EventKind = "size_added"
	EventOutOfStock EventKind = "out_of_stock"
)

// Category is one tracked catalog section: a display name plus the
// listing URL it is scraped from.
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProductSnapshot is a point-in-time read of a product's availability.
// Immutable once captured.
type ProductSnapshot struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Price      string         `json:"price"`
	Category   string         `json:"category"`
	Sizes      map[string]int `json:"sizes"`
	ImageURL   string         `json:"image_url"`
	ProductURL string         `json:"product_url"`
	ObservedAt time.Time      `json:"observed_at"`
}

// TotalStock sums the quantities over all sizes.
func (p ProductSnapshot) TotalStock() int {
	total := 0
	for _, qty := range p.Sizes {
		total += qty
	}
	return total
}

// CategoryState is the set of snapshots last recorded for a category,
// indexed by product ID. It is owned by the persistence layer and
// replaced atomically after a successful detection cycle.
type CategoryState map[string]ProductSnapshot

// ChangeEvent is produced per detection cycle and consumed by the
// notifier. It is never persisted.
type ChangeEvent struct {
	Kind        EventKind `json:"kind"`
	ProductID   string    `json:"product_id"`
	Size        string    `json:"size,omitempty"`
	OldQuantity int       `json:"old_quantity"`
	NewQuantity int       `json:"new_quantity"`
}

// CheckRecord is one completed detection cycle, kept for stats and the
// summary chart.
type CheckRecord struct {
	Category   string    `json:"category"`
	Products   int       `json:"products"`
	AlertsSent int       `json:"alerts_sent"`
	CheckedAt  time.Time `json:"checked_at"`
}

// CategoryStats aggregates alert history for summary messages.
type CategoryStats struct {
	TotalProducts int `json:"total_products"`
	NewToday      int `json:"new_today"`
	RestocksToday int `json:"restocks_today"`
}
