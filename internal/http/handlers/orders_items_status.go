package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/queue"
	"dinepos-order-service/pkg/response"
)

type itemStatusRequest struct {
	Status string `json:"status"`
}

var itemStatusFlow = map[string][]string{
	"QUEUED":    {"PREPARING", "CANCELLED"},
	"PREPARING": {"READY", "CANCELLED"},
	"READY":     {"SERVED", "CANCELLED"},
	"SERVED":    {},
	"CANCELLED": {},
}

func itemTransitionAllowed(from, to string) bool {
	for _, next := range itemStatusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItemStatus advances a single line through the kitchen workflow.
// Cancelling a line drops it out of the bill, so totals are recomputed.
func (h *Handler) OrderItemStatus(w http.ResponseWriter, r *http.Request) {
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
	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}

	var body itemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	target := strings.ToUpper(strings.TrimSpace(body.Status))
	if _, known := itemStatusFlow[target]; !known {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown item status")
		return
	}

	cfg, err := h.loadOutletBilling(ctx, *authCtx.OutletID, authCtx.UserID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Outlet not found")
		return
	}

	order, err := h.loadOrder(ctx, cfg.ID, orderID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if order.Status != orderStatusOpen {
		response.Error(w, http.StatusConflict, "ORDER_NOT_OPEN", "Order is closed")
		return
	}

	err = h.withOrderTx(ctx, func(ctx context.Context, tx orderTx) error {
		var current string
		if err := tx.QueryRow(ctx, `
			select status from order_items where id = $1 and order_id = $2
		`, itemID, orderID).Scan(&current); err != nil {
			return err
		}
		if !itemTransitionAllowed(current, target) {
			return billing.ValidationError(billing.ErrInvalidLineItem, "Item cannot move from "+current+" to "+target, map[string]any{
				"from": current,
				"to":   target,
			})
		}

		if _, err := tx.Exec(ctx, `
			update order_items set status = $1 where id = $2
		`, target, itemID); err != nil {
			return err
		}

		if target == "CANCELLED" {
			lines, err := loadLinesTx(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if _, err := h.recomputeTotals(ctx, tx, order, cfg, lines); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if be, ok := billing.AsError(err); ok {
			response.ErrorWithDetails(w, be.StatusCode, string(be.Code), be.Message, be.Details)
			return
		}
		h.Logger.Error("item status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update item status")
		return
	}

	h.publishOrderEvent(ctx, queue.EventOrderStatusUpdated, order)

	payload, err := h.loadOrderPayload(ctx, cfg.ID, orderID)
	if err != nil {
		h.Logger.Error("order reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, payload)
}
