package detector

import (
	"sort"

	"stockwatch-telegram-bot/internal/types"
)

// Detect compares the current scrape of a category against the last
// known state and returns the stock changes plus the state to persist.
//
// The returned events are in stable order: new products first (by
// product ID ascending), then restocks and size additions, then
// out-of-stock transitions. Products that disappeared from the scrape
// emit nothing; absence usually means a flaky scrape, not a delisting.
//
// When current is empty the scrape is considered broken: no events are
// returned, next is the unchanged previous state and updated is false.
// The caller must not persist anything in that case.
func Detect(previous types.CategoryState, current []types.ProductSnapshot) (events []types.ChangeEvent, next types.CategoryState, updated bool) {
	if len(current) == 0 {
		return nil, previous, false
	}

	var newProducts, stockChanges, outOfStock []types.ChangeEvent

	next = make(types.CategoryState, len(current))
	for _, snap := range current {
		next[snap.ID] = snap

		old, seen := previous[snap.ID]
		if !seen {
			newProducts = append(newProducts, types.ChangeEvent{
				Kind:        types.EventNewProduct,
				ProductID:   snap.ID,
				NewQuantity: snap.TotalStock(),
			})
			continue
		}

		for _, size := range sortedSizes(snap.Sizes) {
			qty := snap.Sizes[size]
			oldQty, hadSize := old.Sizes[size]

			switch {
			case oldQty == 0 && qty > 0:
				kind := types.EventRestock
				if !hadSize {
					kind = types.EventSizeAdded
				}
				stockChanges = append(stockChanges, types.ChangeEvent{
					Kind:        kind,
					ProductID:   snap.ID,
					Size:        size,
					OldQuantity: oldQty,
					NewQuantity: qty,
				})
			case oldQty > 0 && qty == 0:
				outOfStock = append(outOfStock, types.ChangeEvent{
					Kind:        types.EventOutOfStock,
					ProductID:   snap.ID,
					Size:        size,
					OldQuantity: oldQty,
					NewQuantity: 0,
				})
			}
		}
	}

	sortByProduct(newProducts)
	sortByProduct(stockChanges)
	sortByProduct(outOfStock)

	events = append(events, newProducts...)
	events = append(events, stockChanges...)
	events = append(events, outOfStock...)

	return events, next, true
}

// ValidateSnapshots rejects malformed scrape output before it reaches
// Detect: empty product IDs and negative quantities.
func ValidateSnapshots(snapshots []types.ProductSnapshot) bool {
	for _, snap := range snapshots {
		if snap.ID == "" {
			return false
		}
		for _, qty := range snap.Sizes {
			if qty < 0 {
				return false
			}
		}
	}
	return true
}

func sortedSizes(sizes map[string]int) []string {
	labels := make([]string, 0, len(sizes))
	for label := range sizes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func sortByProduct(events []types.ChangeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ProductID != events[j].ProductID {
			return events[i].ProductID < events[j].ProductID
		}
		return events[i].Size < events[j].Size
	})
}
