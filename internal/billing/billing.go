package billing

import (
	"math"
	"strings"
)

type ItemStatus string

const (
	StatusQueued    ItemStatus = "QUEUED"
	StatusPreparing ItemStatus = "PREPARING"
	StatusReady     ItemStatus = "READY"
	StatusServed    ItemStatus = "SERVED"
	StatusCancelled ItemStatus = "CANCELLED"
)

// LineItem is a single cart entry. ID is a client-generated key until the
// line is persisted, after which the order-item id takes over.
type LineItem struct {
	ID         string
	MenuItemID int64
	MenuName   string
	UnitPrice  float64
	Quantity   int32
	Status     ItemStatus
	Notes      string
}

// Context carries everything beyond the cart that affects the payable amount.
// It is rebuilt from order state on every recompute and never stored.
type Context struct {
	DiscountPercent          float64
	TaxEnabled               bool
	TaxRatePercent           float64
	ServiceChargeEnabled     bool
	ServiceChargeRatePercent float64
	PriorPaidAmount          float64
}

type Totals struct {
	Subtotal              float64 `json:"subtotal"`
	DiscountPercent       float64 `json:"discountPercent"`
	DiscountAmount        float64 `json:"discountAmount"`
	SubtotalAfterDiscount float64 `json:"subtotalAfterDiscount"`
	TaxRate               float64 `json:"taxRate"`
	TaxAmount             float64 `json:"taxAmount"`
	ServiceChargeRate     float64 `json:"serviceChargeRate"`
	ServiceChargeAmount   float64 `json:"serviceChargeAmount"`
	GrandTotal            float64 `json:"totalAmount"`
	PaidAmount            float64 `json:"paidAmount"`
	DueAmount             float64 `json:"dueAmount"`
	EffectiveTotal        float64 `json:"effectiveTotal"`
}

// roundEpsilon keeps values that sit exactly on a half cent (2.675 is stored
// as 2.67499...) from rounding down. Large enough to absorb float drift,
// far below a hundredth of a cent.
const roundEpsilon = 1e-9

// Round2 rounds half-up to two decimals.
func Round2(value float64) float64 {
	return math.Round((value+roundEpsilon)*100) / 100
}

// Subtotal sums unitPrice*quantity over every non-cancelled line. Rounding is
// applied to the stage output only, not per line.
func Subtotal(items []LineItem) (float64, error) {
	var sum float64
	for _, item := range items {
		if err := validateLine(item); err != nil {
			return 0, err
		}
		if item.Status == StatusCancelled {
			continue
		}
		sum += item.UnitPrice * float64(item.Quantity)
	}
	return Round2(sum), nil
}

func validateLine(item LineItem) error {
	if math.IsNaN(item.UnitPrice) || item.UnitPrice < 0 {
		return ValidationError(ErrInvalidLineItem, "Line item price must be a non-negative number", map[string]any{
			"lineId":    item.ID,
			"unitPrice": item.UnitPrice,
		})
	}
	if item.Quantity < 0 {
		return ValidationError(ErrInvalidLineItem, "Line item quantity must not be negative", map[string]any{
			"lineId":   item.ID,
			"quantity": item.Quantity,
		})
	}
	return nil
}

// ClampPercent bounds a discount or rate percentage to [0, 100].
func ClampPercent(pct float64) float64 {
	return math.Max(0, math.Min(pct, 100))
}

// ResolveRate picks the first configured rate: user-level override, then the
// outlet setting, then zero.
func ResolveRate(userOverride *float64, outletRate float64) float64 {
	if userOverride != nil {
		return *userOverride
	}
	return outletRate
}

// Compute runs the full pipeline: aggregate, discount, surcharges, settlement
// reconciliation. It is pure; identical inputs always yield identical totals.
func Compute(items []LineItem, billCtx Context) (Totals, error) {
	subtotal, err := Subtotal(items)
	if err != nil {
		return Totals{}, err
	}

	pct := ClampPercent(billCtx.DiscountPercent)
	discountAmount := Round2(subtotal * pct / 100)
	afterDiscount := Round2(subtotal - discountAmount)

	var taxAmount float64
	taxRate := 0.0
	if billCtx.TaxEnabled {
		taxRate = billCtx.TaxRatePercent
		taxAmount = Round2(afterDiscount * taxRate / 100)
	}

	var serviceChargeAmount float64
	serviceChargeRate := 0.0
	if billCtx.ServiceChargeEnabled {
		serviceChargeRate = billCtx.ServiceChargeRatePercent
		// Same base as tax. Service charge is not compounded into the tax
		// base; swapping the order changes the total.
		serviceChargeAmount = Round2(afterDiscount * serviceChargeRate / 100)
	}

	grandTotal := Round2(afterDiscount + taxAmount + serviceChargeAmount)

	paid := billCtx.PriorPaidAmount
	if math.IsNaN(paid) || paid < 0 {
		return Totals{}, ValidationError(ErrInvalidAmount, "Prior paid amount must be a non-negative number", map[string]any{
			"priorPaidAmount": paid,
		})
	}

	dueAmount := Round2(math.Max(grandTotal-paid, 0))
	effectiveTotal := grandTotal
	if paid > 0 {
		effectiveTotal = dueAmount
	}

	return Totals{
		Subtotal:              subtotal,
		DiscountPercent:       pct,
		DiscountAmount:        discountAmount,
		SubtotalAfterDiscount: afterDiscount,
		TaxRate:               taxRate,
		TaxAmount:             taxAmount,
		ServiceChargeRate:     serviceChargeRate,
		ServiceChargeAmount:   serviceChargeAmount,
		GrandTotal:            grandTotal,
		PaidAmount:            Round2(paid),
		DueAmount:             dueAmount,
		EffectiveTotal:        effectiveTotal,
	}, nil
}

// MergeLine adds a cart line, folding it into an existing QUEUED line for the
// same menu item when one exists. Lines that have moved past QUEUED were
// already sent to the kitchen and are never merged; a fresh line is appended
// instead. Returns the updated cart.
func MergeLine(items []LineItem, added LineItem) []LineItem {
	if added.Quantity <= 0 {
		return items
	}
	for i, item := range items {
		if item.Status != StatusQueued {
			continue
		}
		if item.MenuItemID != added.MenuItemID {
			continue
		}
		if !sameNotes(item.Notes, added.Notes) {
			continue
		}
		items[i].Quantity += added.Quantity
		return items
	}
	return append(items, added)
}

// AdjustQuantity sets a line's quantity; a line reaching zero is removed from
// the cart, not retained at zero.
func AdjustQuantity(items []LineItem, lineID string, quantity int32) []LineItem {
	for i, item := range items {
		if item.ID != lineID {
			continue
		}
		if quantity <= 0 {
			return append(items[:i], items[i+1:]...)
		}
		items[i].Quantity = quantity
		return items
	}
	return items
}

func sameNotes(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
