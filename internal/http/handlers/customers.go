package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/utils"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type customerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (h *Handler) CustomerList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	query := `
		select id, name, phone, email, advance_balance
		from customers
		where outlet_id = $1
	`
	args := []any{*authCtx.OutletID}
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		args = append(args, "%"+search+"%")
		query += ` and (name ilike $2 or phone ilike $2)`
	}
	query += ` order by name asc limit 200`

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("customer list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list customers")
		return
	}
	defer rows.Close()

	customers := []CustomerSummary{}
	for rows.Next() {
		var (
			c       CustomerSummary
			phone   pgtype.Text
			email   pgtype.Text
			advance pgtype.Numeric
		)
		if err := rows.Scan(&c.ID, &c.Name, &phone, &email, &advance); err != nil {
			h.Logger.Error("customer list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list customers")
			return
		}
		if phone.Valid {
			c.Phone = &phone.String
		}
		if email.Valid {
			c.Email = &email.String
		}
		c.AdvanceBalance = utils.NumericToFloat64(advance)
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("customer list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list customers")
		return
	}

	response.Success(w, map[string]any{"customers": customers})
}

func (h *Handler) CustomerCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	var body customerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}

	var id int64
	err := h.DB.QueryRow(ctx, `
		insert into customers (outlet_id, name, phone, email, advance_balance, updated_at)
		values ($1, $2, $3, $4, 0, now())
		returning id
	`, *authCtx.OutletID, name, nilIfEmpty(body.Phone), nilIfEmpty(strings.ToLower(body.Email))).Scan(&id)
	if err != nil {
		h.Logger.Error("customer create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create customer")
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"id": id}})
}

type advanceEntry struct {
	ID        int64     `json:"id"`
	OrderID   *int64    `json:"orderId"`
	Amount    float64   `json:"amount"`
	Direction string    `json:"direction"`
	CreatedAt time.Time `json:"createdAt"`
}

// CustomerAdvance returns the customer's advance balance with its ledger
// history.
func (h *Handler) CustomerAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	customerID, err := readPathInt64(r, "customerId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid customer id")
		return
	}

	summary, err := h.loadCustomerSummary(ctx, *authCtx.OutletID, customerID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "CUSTOMER_NOT_FOUND", "Customer not found")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, order_id, amount, direction, created_at
		from advance_credits
		where outlet_id = $1 and customer_id = $2
		order by created_at desc limit 100
	`, *authCtx.OutletID, customerID)
	if err != nil {
		h.Logger.Error("advance ledger query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load advance ledger")
		return
	}
	defer rows.Close()

	entries := []advanceEntry{}
	for rows.Next() {
		var (
			e       advanceEntry
			orderID pgtype.Int8
			amount  pgtype.Numeric
		)
		if err := rows.Scan(&e.ID, &orderID, &amount, &e.Direction, &e.CreatedAt); err != nil {
			h.Logger.Error("advance ledger scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load advance ledger")
			return
		}
		if orderID.Valid {
			e.OrderID = &orderID.Int64
		}
		e.Amount = utils.NumericToFloat64(amount)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("advance ledger rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load advance ledger")
		return
	}

	response.Success(w, map[string]any{
		"customer": summary,
		"ledger":   entries,
	})
}

type applyAdvanceRequest struct {
	OrderID any      `json:"orderId"`
	Amount  *float64 `json:"amount"`
}

// CustomerApplyAdvance spends part of the customer's advance balance against
// an order's outstanding due.
func (h *Handler) CustomerApplyAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}
	outletID := *authCtx.OutletID

	customerID, err := readPathInt64(r, "customerId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid customer id")
		return
	}

	var body applyAdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	orderID, ok := parseNumericID(body.OrderID)
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "orderId is required")
		return
	}

	summary, err := h.loadCustomerSummary(ctx, outletID, customerID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "CUSTOMER_NOT_FOUND", "Customer not found")
		return
	}

	order, err := h.loadOrder(ctx, outletID, orderID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if order.DueAmount <= 0 {
		response.Error(w, http.StatusConflict, "NOTHING_DUE", "Order has no outstanding due amount")
		return
	}

	amount := order.DueAmount
	if body.Amount != nil {
		amount = billing.Round2(*body.Amount)
	}
	if amount <= 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero")
		return
	}
	if amount > summary.AdvanceBalance {
		response.ErrorWithDetails(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount exceeds the advance balance", map[string]any{
			"advanceBalance": summary.AdvanceBalance,
		})
		return
	}
	if amount > order.DueAmount {
		amount = order.DueAmount
	}

	err = h.withOrderTx(ctx, func(ctx context.Context, tx orderTx) error {
		if _, err := tx.Exec(ctx, `
			update customers set advance_balance = advance_balance - $1, updated_at = now()
			where id = $2 and outlet_id = $3
		`, amount, customerID, outletID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			insert into advance_credits (outlet_id, customer_id, order_id, amount, direction)
			values ($1, $2, $3, $4, 'DEBIT')
		`, outletID, customerID, orderID, amount); err != nil {
			return err
		}

		newPaid := billing.Round2(order.PaidAmount + amount)
		newDue := billing.Round2(order.DueAmount - amount)
		if newDue < 0 {
			newDue = 0
		}
		status := billing.PaymentPartiallyPaid
		if newDue == 0 {
			status = billing.PaymentPaid
		}
		_, err := tx.Exec(ctx, `
			update orders set paid_amount = $1, due_amount = $2, payment_status = $3, updated_at = now()
			where id = $4
		`, newPaid, newDue, string(status), orderID)
		return err
	})
	if err != nil {
		h.Logger.Error("apply advance failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to apply advance")
		return
	}

	response.Success(w, map[string]any{
		"customerId":    customerID,
		"orderId":       orderID,
		"appliedAmount": amount,
	})
}
