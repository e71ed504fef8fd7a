package billing

import (
	"math"
	"strings"
)

type PaymentMode string

const (
	ModeCash   PaymentMode = "CASH"
	ModeCard   PaymentMode = "CARD"
	ModeOnline PaymentMode = "ONLINE"
	ModeDue    PaymentMode = "DUE"
)

// SettlementFlow distinguishes the POS checkout flow, which accepts
// collecting more than the effective total and credits the excess as an
// advance, from the due-settlement flow, which caps the collected amount.
type SettlementFlow string

const (
	FlowCheckout  SettlementFlow = "CHECKOUT"
	FlowSettleDue SettlementFlow = "SETTLE_DUE"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentDue           PaymentStatus = "DUE"
)

// overpayTolerance absorbs float drift when a cashier keys the exact due
// amount; anything beyond it counts as a real overpayment.
const overpayTolerance = 0.01

// Settlement is the outcome of applying one collection against an order.
type Settlement struct {
	Mode            PaymentMode   `json:"paymentMode"`
	CollectedAmount float64       `json:"collectedAmount"`
	AppliedAmount   float64       `json:"appliedAmount"`
	AdvanceAmount   float64       `json:"advanceAmount"`
	PaidAmount      float64       `json:"paidAmount"`
	DueAmount       float64       `json:"dueAmount"`
	Status          PaymentStatus `json:"paymentStatus"`
}

func ParsePaymentMode(value string) (PaymentMode, bool) {
	switch PaymentMode(strings.ToUpper(strings.TrimSpace(value))) {
	case ModeCash:
		return ModeCash, true
	case ModeCard:
		return ModeCard, true
	case ModeOnline:
		return ModeOnline, true
	case ModeDue:
		return ModeDue, true
	}
	return "", false
}

// Settle validates a collection against the current totals and computes the
// resulting paid/due state.
//
// Mode DUE records the whole grand total as due without collecting anything.
// Otherwise the collected amount must be positive. In the due-settlement flow
// collecting more than the effective total (plus tolerance) is rejected; in
// the checkout flow the excess is returned as an advance credit instead.
func Settle(totals Totals, mode PaymentMode, collected float64, flow SettlementFlow) (Settlement, error) {
	if mode == ModeDue {
		return Settlement{
			Mode:       ModeDue,
			PaidAmount: totals.PaidAmount,
			DueAmount:  totals.GrandTotal,
			Status:     PaymentDue,
		}, nil
	}

	if math.IsNaN(collected) || collected <= 0 {
		return Settlement{}, ValidationError(ErrInvalidAmount, "Collected amount must be greater than zero", map[string]any{
			"collected": collected,
		})
	}

	effective := totals.EffectiveTotal
	if flow == FlowSettleDue {
		if totals.DueAmount <= 0 {
			return Settlement{}, ValidationError(ErrNothingDue, "Order has no outstanding due amount", nil)
		}
		if collected > effective+overpayTolerance {
			return Settlement{}, ValidationError(ErrOverpaymentNotAllowed, "Collected amount exceeds the outstanding due", map[string]any{
				"collected":      collected,
				"effectiveTotal": effective,
				"tolerance":      overpayTolerance,
			})
		}
	}

	applied := math.Min(collected, effective)
	advance := 0.0
	if flow == FlowCheckout && collected > effective {
		advance = Round2(collected - effective)
	}

	paid := Round2(totals.PaidAmount + applied)
	due := Round2(math.Max(totals.GrandTotal-paid, 0))

	status := PaymentPartiallyPaid
	if due <= overpayTolerance {
		due = 0
		paid = totals.GrandTotal
		status = PaymentPaid
	}

	return Settlement{
		Mode:            mode,
		CollectedAmount: Round2(collected),
		AppliedAmount:   Round2(applied),
		AdvanceAmount:   advance,
		PaidAmount:      paid,
		DueAmount:       due,
		Status:          status,
	}, nil
}
