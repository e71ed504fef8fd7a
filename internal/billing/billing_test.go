package billing

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSubtotalSkipsCancelledItems(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 2, Status: StatusQueued},
		{ID: "b", MenuItemID: 2, UnitPrice: 50, Quantity: 1, Status: StatusCancelled},
	}

	got, err := Subtotal(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 200) {
		t.Fatalf("expected subtotal 200, got %v", got)
	}
}

func TestSubtotalAllCancelledIsZero(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 2, Status: StatusCancelled},
		{ID: "b", MenuItemID: 2, UnitPrice: 75.5, Quantity: 3, Status: StatusCancelled},
	}

	totals, err := Compute(items, Context{DiscountPercent: 10, TaxEnabled: true, TaxRatePercent: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Subtotal != 0 || totals.GrandTotal != 0 {
		t.Fatalf("expected zero subtotal and grand total, got %v / %v", totals.Subtotal, totals.GrandTotal)
	}
}

func TestSubtotalEmptyCart(t *testing.T) {
	got, err := Subtotal(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0 for empty cart, got %v", got)
	}
}

func TestSubtotalRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		item LineItem
	}{
		{name: "negative price", item: LineItem{ID: "a", UnitPrice: -1, Quantity: 1, Status: StatusQueued}},
		{name: "nan price", item: LineItem{ID: "a", UnitPrice: math.NaN(), Quantity: 1, Status: StatusQueued}},
		{name: "negative quantity", item: LineItem{ID: "a", UnitPrice: 10, Quantity: -2, Status: StatusQueued}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Subtotal([]LineItem{tc.item})
			be, ok := AsError(err)
			if !ok {
				t.Fatalf("expected billing error, got %v", err)
			}
			if be.Code != ErrInvalidLineItem {
				t.Fatalf("expected %s, got %s", ErrInvalidLineItem, be.Code)
			}
		})
	}
}

func TestComputeReferenceExample(t *testing.T) {
	// cart: 2x100 queued + 1x50 cancelled, 10% discount, 5% tax, no service charge
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 2, Status: StatusQueued},
		{ID: "b", MenuItemID: 2, UnitPrice: 50, Quantity: 1, Status: StatusCancelled},
	}
	billCtx := Context{
		DiscountPercent: 10,
		TaxEnabled:      true,
		TaxRatePercent:  5,
	}

	totals, err := Compute(items, billCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"subtotal", totals.Subtotal, 200},
		{"discountAmount", totals.DiscountAmount, 20},
		{"subtotalAfterDiscount", totals.SubtotalAfterDiscount, 180},
		{"taxAmount", totals.TaxAmount, 9},
		{"serviceChargeAmount", totals.ServiceChargeAmount, 0},
		{"grandTotal", totals.GrandTotal, 189},
		{"dueAmount", totals.DueAmount, 189},
		{"effectiveTotal", totals.EffectiveTotal, 189},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestComputeWithPriorPayment(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 2, Status: StatusQueued},
		{ID: "b", MenuItemID: 2, UnitPrice: 50, Quantity: 1, Status: StatusCancelled},
	}
	billCtx := Context{
		DiscountPercent: 10,
		TaxEnabled:      true,
		TaxRatePercent:  5,
		PriorPaidAmount: 100,
	}

	totals, err := Compute(items, billCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(totals.DueAmount, 89) {
		t.Fatalf("expected due 89, got %v", totals.DueAmount)
	}
	if !almostEqual(totals.EffectiveTotal, 89) {
		t.Fatalf("expected effective total 89, got %v", totals.EffectiveTotal)
	}
}

func TestDueAmountNeverNegative(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 10, Quantity: 1, Status: StatusQueued},
	}

	for _, paid := range []float64{0, 5, 10, 500, 1e9} {
		totals, err := Compute(items, Context{PriorPaidAmount: paid})
		if err != nil {
			t.Fatalf("unexpected error for paid %v: %v", paid, err)
		}
		if totals.DueAmount < 0 {
			t.Fatalf("due went negative (%v) for paid %v", totals.DueAmount, paid)
		}
	}
}

func TestDiscountNeverDrivesTotalNegative(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 33.33, Quantity: 3, Status: StatusServed},
	}

	for _, pct := range []float64{-20, 0, 15, 100, 250} {
		totals, err := Compute(items, Context{DiscountPercent: pct})
		if err != nil {
			t.Fatalf("unexpected error for pct %v: %v", pct, err)
		}
		if totals.SubtotalAfterDiscount < 0 {
			t.Fatalf("post-discount subtotal negative (%v) for pct %v", totals.SubtotalAfterDiscount, pct)
		}
		if totals.DiscountPercent < 0 || totals.DiscountPercent > 100 {
			t.Fatalf("discount percent not clamped: %v", totals.DiscountPercent)
		}
	}
}

func TestComputeIsPure(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 12.49, Quantity: 3, Status: StatusPreparing},
		{ID: "b", MenuItemID: 2, UnitPrice: 4.2, Quantity: 7, Status: StatusQueued},
	}
	billCtx := Context{
		DiscountPercent:          7.5,
		TaxEnabled:               true,
		TaxRatePercent:           11,
		ServiceChargeEnabled:     true,
		ServiceChargeRatePercent: 6,
		PriorPaidAmount:          20,
	}

	first, err := Compute(items, billCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Compute(items, billCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("pipeline is not deterministic: %+v vs %+v", first, second)
	}
}

func TestSurchargesShareTheSameBase(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 1, Status: StatusQueued},
	}
	billCtx := Context{
		TaxEnabled:               true,
		TaxRatePercent:           10,
		ServiceChargeEnabled:     true,
		ServiceChargeRatePercent: 10,
	}

	totals, err := Compute(items, billCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Both off the 100 base: 10 + 10, not 10 + 11 (compounded).
	if !almostEqual(totals.TaxAmount, 10) || !almostEqual(totals.ServiceChargeAmount, 10) {
		t.Fatalf("expected 10/10 surcharges, got %v/%v", totals.TaxAmount, totals.ServiceChargeAmount)
	}
	if !almostEqual(totals.GrandTotal, 120) {
		t.Fatalf("expected grand total 120, got %v", totals.GrandTotal)
	}
}

func TestResolveRate(t *testing.T) {
	override := 7.0
	if got := ResolveRate(&override, 10); got != 7 {
		t.Fatalf("expected override 7, got %v", got)
	}
	if got := ResolveRate(nil, 10); got != 10 {
		t.Fatalf("expected outlet rate 10, got %v", got)
	}
	if got := ResolveRate(nil, 0); got != 0 {
		t.Fatalf("expected fallback 0, got %v", got)
	}
}

func TestRound2HalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{2.675, 2.68},
		{1.005, 1.01},
		{189.0, 189.0},
		{0.004, 0.0},
		{10.555, 10.56},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); !almostEqual(got, tc.want) {
			t.Fatalf("Round2(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestMergeLine(t *testing.T) {
	t.Run("merges into queued line for same menu item", func(t *testing.T) {
		cart := []LineItem{
			{ID: "a", MenuItemID: 1, Quantity: 2, Status: StatusQueued},
		}
		cart = MergeLine(cart, LineItem{ID: "b", MenuItemID: 1, Quantity: 1, Status: StatusQueued})
		if len(cart) != 1 {
			t.Fatalf("expected 1 line, got %d", len(cart))
		}
		if cart[0].Quantity != 3 {
			t.Fatalf("expected quantity 3, got %d", cart[0].Quantity)
		}
	})

	t.Run("never merges into a line already sent to kitchen", func(t *testing.T) {
		cart := []LineItem{
			{ID: "a", MenuItemID: 1, Quantity: 2, Status: StatusPreparing},
		}
		cart = MergeLine(cart, LineItem{ID: "b", MenuItemID: 1, Quantity: 1, Status: StatusQueued})
		if len(cart) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(cart))
		}
		if cart[0].Quantity != 2 || cart[1].Quantity != 1 {
			t.Fatalf("unexpected quantities: %d / %d", cart[0].Quantity, cart[1].Quantity)
		}
	})

	t.Run("keeps lines with different notes apart", func(t *testing.T) {
		cart := []LineItem{
			{ID: "a", MenuItemID: 1, Quantity: 1, Status: StatusQueued, Notes: "no onion"},
		}
		cart = MergeLine(cart, LineItem{ID: "b", MenuItemID: 1, Quantity: 1, Status: StatusQueued, Notes: "extra spicy"})
		if len(cart) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(cart))
		}
	})
}

func TestAdjustQuantity(t *testing.T) {
	cart := []LineItem{
		{ID: "a", MenuItemID: 1, Quantity: 2, Status: StatusQueued},
		{ID: "b", MenuItemID: 2, Quantity: 1, Status: StatusQueued},
	}

	cart = AdjustQuantity(cart, "a", 5)
	if cart[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", cart[0].Quantity)
	}

	cart = AdjustQuantity(cart, "b", 0)
	if len(cart) != 1 {
		t.Fatalf("expected zero-quantity line removed, got %d lines", len(cart))
	}
	if cart[0].ID != "a" {
		t.Fatalf("wrong line removed")
	}
}
