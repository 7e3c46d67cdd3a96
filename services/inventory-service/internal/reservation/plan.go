package reservation

import (
	"fmt"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

// Plan checks every line item against available stock and returns either the
// full reservation or the first rejection reason. It never returns a partial
// plan: one short SKU rejects the whole order, leaving all stock untouched.
func Plan(available map[string]int, items []events.OrderItem) ([]events.ReservedItem, string) {
	reserved := make([]events.ReservedItem, 0, len(items))
	for _, item := range items {
		qty, ok := available[item.SKU]
		if !ok {
			return nil, "SKU not found: " + item.SKU
		}
		if qty < item.Qty {
			return nil, fmt.Sprintf("insufficient stock for SKU %s: requested %d, available %d", item.SKU, item.Qty, qty)
		}
		reserved = append(reserved, events.ReservedItem{SKU: item.SKU, Qty: item.Qty})
	}
	return reserved, ""
}

// SKUs extracts the distinct SKUs an order touches, for row locking.
func SKUs(items []events.OrderItem) []string {
	seen := map[string]bool{}
	var skus []string
	for _, item := range items {
		if !seen[item.SKU] {
			seen[item.SKU] = true
			skus = append(skus, item.SKU)
		}
	}
	return skus
}
