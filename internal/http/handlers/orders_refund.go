package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/pkg/response"

	"golang.org/x/crypto/bcrypt"
)

type refundOrderRequest struct {
	Amount float64 `json:"amount"`
	Pin    string  `json:"pin"`
	Reason string  `json:"reason"`
}

// OrderRefund returns collected money on an order. Staff must present the
// outlet refund PIN; owners are exempt. The refund amount cannot exceed what
// was actually paid.
func (h *Handler) OrderRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var body refundOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.Amount <= 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_AMOUNT", "Refund amount must be greater than zero")
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Refund reason is required")
		return
	}

	cfg, err := h.loadOutletBilling(ctx, *authCtx.OutletID, authCtx.UserID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Outlet not found")
		return
	}

	if !authCtx.IsOwner {
		if cfg.RefundPinHash == nil {
			response.Error(w, http.StatusForbidden, "REFUND_PIN_NOT_SET", "Refund PIN is not configured for this outlet")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(*cfg.RefundPinHash), []byte(strings.TrimSpace(body.Pin))) != nil {
			response.Error(w, http.StatusForbidden, "INVALID_REFUND_PIN", "Refund PIN is incorrect")
			return
		}
	}

	order, err := h.loadOrder(ctx, cfg.ID, orderID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if order.PaidAmount <= 0 {
		response.Error(w, http.StatusConflict, "NOTHING_TO_REFUND", "Order has no recorded payments")
		return
	}
	amount := billing.Round2(body.Amount)
	if amount > order.PaidAmount {
		response.ErrorWithDetails(w, http.StatusBadRequest, "INVALID_AMOUNT", "Refund exceeds the amount paid", map[string]any{
			"paidAmount":      order.PaidAmount,
			"requestedAmount": amount,
		})
		return
	}

	err = h.withOrderTx(ctx, func(ctx context.Context, tx orderTx) error {
		if _, err := tx.Exec(ctx, `
			insert into refunds (outlet_id, order_id, amount, reason, refunded_by_user_id)
			values ($1, $2, $3, $4, $5)
		`, cfg.ID, orderID, amount, reason, authCtx.UserID); err != nil {
			return err
		}

		newPaid := billing.Round2(order.PaidAmount - amount)
		newDue := billing.Round2(order.TotalAmount - newPaid)
		if newDue < 0 {
			newDue = 0
		}
		status := billing.PaymentPartiallyPaid
		if newPaid <= 0 {
			status = billing.PaymentUnpaid
		} else if newDue == 0 {
			status = billing.PaymentPaid
		}

		_, err := tx.Exec(ctx, `
			update orders
			set paid_amount = $1, due_amount = $2, payment_status = $3, updated_at = now()
			where id = $4
		`, newPaid, newDue, string(status), orderID)
		return err
	})
	if err != nil {
		h.Logger.Error("order refund failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record refund")
		return
	}

	payload, err := h.loadOrderPayload(ctx, cfg.ID, orderID)
	if err != nil {
		h.Logger.Error("order reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, map[string]any{
		"order":          payload,
		"refundedAmount": amount,
	})
}
