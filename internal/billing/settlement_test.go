package billing

import "testing"

func partiallyPaidTotals(t *testing.T) Totals {
	t.Helper()
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 2, Status: StatusQueued},
		{ID: "b", MenuItemID: 2, UnitPrice: 50, Quantity: 1, Status: StatusCancelled},
	}
	totals, err := Compute(items, Context{
		DiscountPercent: 10,
		TaxEnabled:      true,
		TaxRatePercent:  5,
		PriorPaidAmount: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return totals
}

func TestSettleDueRejectsOverpayment(t *testing.T) {
	totals := partiallyPaidTotals(t) // due 89.00

	_, err := Settle(totals, ModeCash, 90, FlowSettleDue)
	be, ok := AsError(err)
	if !ok {
		t.Fatalf("expected billing error, got %v", err)
	}
	if be.Code != ErrOverpaymentNotAllowed {
		t.Fatalf("expected %s, got %s", ErrOverpaymentNotAllowed, be.Code)
	}
}

func TestSettleDueWithinTolerance(t *testing.T) {
	totals := partiallyPaidTotals(t)

	s, err := Settle(totals, ModeCash, 89.01, FlowSettleDue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != PaymentPaid {
		t.Fatalf("expected PAID, got %s", s.Status)
	}
	if s.DueAmount != 0 {
		t.Fatalf("expected zero due, got %v", s.DueAmount)
	}
}

func TestCheckoutOverpaymentBecomesAdvance(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 2, Status: StatusQueued},
		{ID: "b", MenuItemID: 2, UnitPrice: 50, Quantity: 1, Status: StatusCancelled},
	}
	totals, err := Compute(items, Context{DiscountPercent: 10, TaxEnabled: true, TaxRatePercent: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err := Settle(totals, ModeCash, 200, FlowCheckout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(s.AdvanceAmount, 11) {
		t.Fatalf("expected advance 11, got %v", s.AdvanceAmount)
	}
	if !almostEqual(s.AppliedAmount, 189) {
		t.Fatalf("expected applied 189, got %v", s.AppliedAmount)
	}
	if s.Status != PaymentPaid {
		t.Fatalf("expected PAID, got %s", s.Status)
	}
}

func TestCheckoutPartialCollection(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 100, Quantity: 2, Status: StatusQueued},
	}
	totals, err := Compute(items, Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err := Settle(totals, ModeCard, 80, FlowCheckout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != PaymentPartiallyPaid {
		t.Fatalf("expected PARTIALLY_PAID, got %s", s.Status)
	}
	if !almostEqual(s.DueAmount, 120) {
		t.Fatalf("expected due 120, got %v", s.DueAmount)
	}
}

func TestSettleRejectsNonPositiveAmounts(t *testing.T) {
	totals := partiallyPaidTotals(t)

	for _, collected := range []float64{0, -5} {
		_, err := Settle(totals, ModeCash, collected, FlowCheckout)
		be, ok := AsError(err)
		if !ok {
			t.Fatalf("expected billing error for %v, got %v", collected, err)
		}
		if be.Code != ErrInvalidAmount {
			t.Fatalf("expected %s, got %s", ErrInvalidAmount, be.Code)
		}
	}
}

func TestDueModeShortCircuitsValidation(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 45, Quantity: 2, Status: StatusQueued},
	}
	totals, err := Compute(items, Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err := Settle(totals, ModeDue, 0, FlowCheckout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != PaymentDue {
		t.Fatalf("expected DUE, got %s", s.Status)
	}
	if !almostEqual(s.DueAmount, totals.GrandTotal) {
		t.Fatalf("expected full amount due, got %v", s.DueAmount)
	}
	if s.CollectedAmount != 0 {
		t.Fatalf("expected nothing collected, got %v", s.CollectedAmount)
	}
}

func TestSettleDueRequiresOutstandingBalance(t *testing.T) {
	items := []LineItem{
		{ID: "a", MenuItemID: 1, UnitPrice: 50, Quantity: 1, Status: StatusQueued},
	}
	totals, err := Compute(items, Context{PriorPaidAmount: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = Settle(totals, ModeCash, 10, FlowSettleDue)
	be, ok := AsError(err)
	if !ok {
		t.Fatalf("expected billing error, got %v", err)
	}
	if be.Code != ErrNothingDue {
		t.Fatalf("expected %s, got %s", ErrNothingDue, be.Code)
	}
}

func TestParsePaymentMode(t *testing.T) {
	cases := []struct {
		in   string
		want PaymentMode
		ok   bool
	}{
		{"cash", ModeCash, true},
		{" CARD ", ModeCard, true},
		{"online", ModeOnline, true},
		{"due", ModeDue, true},
		{"crypto", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParsePaymentMode(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParsePaymentMode(%q): expected (%s,%v), got (%s,%v)", tc.in, tc.want, tc.ok, got, ok)
		}
	}
}
