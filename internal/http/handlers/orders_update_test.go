package handlers

import (
	"testing"

	"dinepos-order-service/internal/billing"
)

func TestApplyQuantityChanges(t *testing.T) {
	base := func() []billing.LineItem {
		return []billing.LineItem{
			{ID: "q", MenuItemID: 1, UnitPrice: 10, Quantity: 2, Status: billing.StatusQueued},
			{ID: "s", MenuItemID: 2, UnitPrice: 20, Quantity: 1, Status: billing.StatusServed},
		}
	}

	t.Run("adjusts a queued line", func(t *testing.T) {
		lines, err := applyQuantityChanges(base(), []quantityChange{{LineKey: "q", Quantity: 5}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lines[0].Quantity != 5 {
			t.Fatalf("expected quantity 5, got %d", lines[0].Quantity)
		}
	})

	t.Run("removes a queued line at zero", func(t *testing.T) {
		lines, err := applyQuantityChanges(base(), []quantityChange{{LineKey: "q", Quantity: 0}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 1 || lines[0].ID != "s" {
			t.Fatalf("expected only the served line to remain, got %+v", lines)
		}
	})

	t.Run("rejects removing a line the kitchen already has", func(t *testing.T) {
		_, err := applyQuantityChanges(base(), []quantityChange{{LineKey: "s", Quantity: 0}})
		be, ok := billing.AsError(err)
		if !ok {
			t.Fatalf("expected billing error, got %v", err)
		}
		if be.Code != billing.ErrInvalidLineItem {
			t.Fatalf("expected %s, got %s", billing.ErrInvalidLineItem, be.Code)
		}
	})

	t.Run("still adjusts a served line to a positive quantity", func(t *testing.T) {
		lines, err := applyQuantityChanges(base(), []quantityChange{{LineKey: "s", Quantity: 3}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lines[1].Quantity != 3 {
			t.Fatalf("expected quantity 3, got %d", lines[1].Quantity)
		}
	})
}
