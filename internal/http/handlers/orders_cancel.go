package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/queue"
	"dinepos-order-service/pkg/response"
)

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderCancel voids an open order. Paid orders must go through the refund
// endpoint instead so the money movement is recorded.
func (h *Handler) OrderCancel(w http.ResponseWriter, r *http.Request) {
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

	var body cancelOrderRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	order, err := h.loadOrder(ctx, *authCtx.OutletID, orderID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if order.Status != orderStatusOpen {
		response.Error(w, http.StatusConflict, "ORDER_NOT_OPEN", "Only open orders can be cancelled")
		return
	}
	if order.PaidAmount > 0 {
		response.Error(w, http.StatusConflict, "ORDER_HAS_PAYMENTS", "Order has recorded payments. Use the refund endpoint.")
		return
	}

	err = h.withOrderTx(ctx, func(ctx context.Context, tx orderTx) error {
		if _, err := tx.Exec(ctx, `
			update orders
			set status = 'CANCELLED', cancel_reason = $1, cancelled_by_user_id = $2, updated_at = now()
			where id = $3
		`, nilIfEmpty(body.Reason), authCtx.UserID, orderID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			update order_items set status = 'CANCELLED'
			where order_id = $1 and status <> 'SERVED'
		`, orderID); err != nil {
			return err
		}
		if order.TableID != nil {
			if _, err := tx.Exec(ctx, `update dining_tables set status = 'AVAILABLE' where id = $1 and outlet_id = $2`, *order.TableID, order.OutletID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.Logger.Error("order cancel failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel order")
		return
	}

	order.Status = orderStatusCancelled
	h.publishOrderEvent(ctx, queue.EventOrderCancelled, order)

	response.Success(w, map[string]any{
		"orderId": orderID,
		"status":  orderStatusCancelled,
	})
}
