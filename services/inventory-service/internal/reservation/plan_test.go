package reservation

import (
	"strings"
	"testing"

	"github.com/md-rashed-zaman/orderflow/libs/events"
)

func TestPlan_ReservesAllItems(t *testing.T) {
	available := map[string]int{"SKU1": 100, "SKU2": 50}
	items := []events.OrderItem{
		{SKU: "SKU1", Qty: 5, Price: 10},
		{SKU: "SKU2", Qty: 3, Price: 10},
	}

	plan, reason := Plan(available, items)
	if reason != "" {
		t.Fatalf("expected no rejection, got %q", reason)
	}
	if len(plan) != 2 {
		t.Fatalf("expected 2 reserved items, got %d", len(plan))
	}
	if plan[0].SKU != "SKU1" || plan[0].Qty != 5 {
		t.Fatalf("unexpected first reservation: %+v", plan[0])
	}
	if plan[1].SKU != "SKU2" || plan[1].Qty != 3 {
		t.Fatalf("unexpected second reservation: %+v", plan[1])
	}
}

func TestPlan_AllOrNothing(t *testing.T) {
	// One SKU out of stock rejects the whole order; no partial plan exists
	// for the SKU that had stock.
	available := map[string]int{"SKU1": 5, "SKU2": 0}
	items := []events.OrderItem{
		{SKU: "SKU1", Qty: 1},
		{SKU: "SKU2", Qty: 1},
	}

	plan, reason := Plan(available, items)
	if plan != nil {
		t.Fatalf("expected nil plan, got %+v", plan)
	}
	if !strings.Contains(reason, "SKU2") {
		t.Fatalf("expected reason to name the short SKU, got %q", reason)
	}
	if !strings.Contains(reason, "requested 1, available 0") {
		t.Fatalf("expected requested/available counts in reason, got %q", reason)
	}
}

func TestPlan_UnknownSKU(t *testing.T) {
	plan, reason := Plan(map[string]int{"SKU1": 10}, []events.OrderItem{{SKU: "SKU9", Qty: 1}})
	if plan != nil {
		t.Fatalf("expected nil plan, got %+v", plan)
	}
	if reason != "SKU not found: SKU9" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestSKUs_Deduplicates(t *testing.T) {
	items := []events.OrderItem{
		{SKU: "SKU1", Qty: 1},
		{SKU: "SKU2", Qty: 2},
		{SKU: "SKU1", Qty: 3},
	}
	skus := SKUs(items)
	if len(skus) != 2 {
		t.Fatalf("expected 2 distinct SKUs, got %v", skus)
	}
}
