package handlers

import (
	"strings"
	"testing"

	"github.com/md-rashed-zaman/orderflow/services/order-service/internal/model"
)

func TestValidateCreateOrder(t *testing.T) {
	valid := createOrderRequest{
		UserID: "user-1",
		Items: []model.OrderItem{
			{SKU: "SKU1", Qty: 5, Price: 10},
			{SKU: "SKU2", Qty: 3, Price: 10},
		},
	}
	if err := validateCreateOrder(valid); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	missingUser := valid
	missingUser.UserID = "  "
	if err := validateCreateOrder(missingUser); err == nil {
		t.Fatal("expected error for missing user_id")
	}

	noItems := valid
	noItems.Items = nil
	if err := validateCreateOrder(noItems); err == nil {
		t.Fatal("expected error for empty items")
	}

	badQty := createOrderRequest{
		UserID: "user-1",
		Items:  []model.OrderItem{{SKU: "SKU1", Qty: 0, Price: 10}},
	}
	err := validateCreateOrder(badQty)
	if err == nil {
		t.Fatal("expected error for zero qty")
	}
	if !strings.Contains(err.Error(), "items[0].qty") {
		t.Fatalf("expected qty error to name the item, got %v", err)
	}
}

func TestOrderTotal(t *testing.T) {
	items := []model.OrderItem{
		{SKU: "SKU1", Qty: 5, Price: 10},
		{SKU: "SKU2", Qty: 3, Price: 10},
	}
	if got := model.Total(items); got != 80 {
		t.Fatalf("expected total 80, got %v", got)
	}
}

func TestNewOrderIDFormat(t *testing.T) {
	id := newOrderID()
	if !strings.HasPrefix(id, "ORD-") {
		t.Fatalf("expected ORD- prefix, got %s", id)
	}
	if len(id) != len("ORD-")+8 {
		t.Fatalf("expected 8-char suffix, got %s", id)
	}
	if id != strings.ToUpper(id) {
		t.Fatalf("expected uppercase id, got %s", id)
	}
}
