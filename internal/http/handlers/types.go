package handlers

import "time"

// Order API payload types. Field names follow the POS client contract:
// subtotal, discountPercent, discountAmount, taxRate, taxAmount,
// serviceChargeRate, serviceChargeAmount, totalAmount, paidAmount, dueAmount,
// paymentMode must keep these exact names on the wire.

type PaymentSummary struct {
	ID            int64      `json:"id"`
	Amount        float64    `json:"amount"`
	AppliedAmount float64    `json:"appliedAmount"`
	AdvanceAmount float64    `json:"advanceAmount"`
	PaymentMode   string     `json:"paymentMode"`
	Flow          string     `json:"flow"`
	Status        string     `json:"status"`
	Notes         *string    `json:"notes"`
	PaidAt        *time.Time `json:"paidAt"`
}

type CustomerSummary struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email,omitempty"`
	AdvanceBalance float64 `json:"advanceBalance"`
}

type TableSummary struct {
	ID       int64   `json:"id"`
	Number   string  `json:"number"`
	Area     *string `json:"area"`
	Capacity int32   `json:"capacity"`
	Status   string  `json:"status"`
}

type OrderItemPayload struct {
	ID         int64   `json:"id"`
	LineKey    string  `json:"lineKey"`
	MenuItemID int64   `json:"menuItemId"`
	MenuName   string  `json:"menuName"`
	UnitPrice  float64 `json:"unitPrice"`
	Quantity   int32   `json:"quantity"`
	Status     string  `json:"status"`
	Notes      *string `json:"notes"`
}

type OrderPayload struct {
	ID                  int64              `json:"id"`
	OutletID            int64              `json:"outletId"`
	OrderNumber         string             `json:"orderNumber"`
	OrderType           string             `json:"orderType"`
	TableID             *int64             `json:"tableId"`
	CustomerID          *int64             `json:"customerId"`
	Status              string             `json:"status"`
	PaymentStatus       string             `json:"paymentStatus"`
	PaymentMode         *string            `json:"paymentMode"`
	Subtotal            float64            `json:"subtotal"`
	DiscountPercent     float64            `json:"discountPercent"`
	DiscountAmount      float64            `json:"discountAmount"`
	TaxRate             float64            `json:"taxRate"`
	TaxAmount           float64            `json:"taxAmount"`
	ServiceChargeRate   float64            `json:"serviceChargeRate"`
	ServiceChargeAmount float64            `json:"serviceChargeAmount"`
	TotalAmount         float64            `json:"totalAmount"`
	PaidAmount          float64            `json:"paidAmount"`
	DueAmount           float64            `json:"dueAmount"`
	Notes               *string            `json:"notes"`
	Items               []OrderItemPayload `json:"items"`
	Payments            []PaymentSummary   `json:"payments,omitempty"`
	Customer            *CustomerSummary   `json:"customer,omitempty"`
	Table               *TableSummary      `json:"table,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
	CompletedAt         *time.Time         `json:"completedAt"`
}

type cartLineRequest struct {
	LineKey    string   `json:"lineKey"`
	MenuItemID any      `json:"menuItemId"`
	Quantity   int32    `json:"quantity"`
	UnitPrice  *float64 `json:"unitPrice"`
	Notes      string   `json:"notes"`
	Status     string   `json:"status"`
}

type billingOptionsRequest struct {
	DiscountPercent      *float64 `json:"discountPercent"`
	TaxEnabled           *bool    `json:"taxEnabled"`
	ServiceChargeEnabled *bool    `json:"serviceChargeEnabled"`
}
