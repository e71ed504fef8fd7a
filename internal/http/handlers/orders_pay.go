package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/queue"
	"dinepos-order-service/pkg/response"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type payOrderRequest struct {
	PaymentMode     string   `json:"paymentMode"`
	CollectedAmount *float64 `json:"collectedAmount"`
	IdempotencyKey  string   `json:"idempotencyKey"`
	Notes           string   `json:"notes"`
}

// OrderPay settles an open order at checkout. Cash handed over beyond the
// effective total becomes advance credit on the customer ledger rather than
// being rejected; mode DUE records the whole bill as due without collecting
// anything.
func (h *Handler) OrderPay(w http.ResponseWriter, r *http.Request) {
	h.settleOrder(w, r, billing.FlowCheckout)
}

// OrderSettleDue collects an outstanding balance on a previously recorded
// due order. Unlike checkout, overpayment is rejected here.
func (h *Handler) OrderSettleDue(w http.ResponseWriter, r *http.Request) {
	h.settleOrder(w, r, billing.FlowSettleDue)
}

func (h *Handler) settleOrder(w http.ResponseWriter, r *http.Request, flow billing.SettlementFlow) {
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

	var body payOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	h.performSettlement(w, r, authCtx, orderID, body, flow)
}

func (h *Handler) performSettlement(w http.ResponseWriter, r *http.Request, authCtx *middleware.AuthContext, orderID int64, body payOrderRequest, flow billing.SettlementFlow) {
	ctx := r.Context()

	mode, ok := billing.ParsePaymentMode(body.PaymentMode)
	if !ok {
		response.Error(w, http.StatusBadRequest, string(billing.ErrInvalidPaymentMode), "Unknown payment mode")
		return
	}
	if flow == billing.FlowSettleDue && mode == billing.ModeDue {
		response.Error(w, http.StatusBadRequest, string(billing.ErrInvalidPaymentMode), "Due settlement requires an actual payment mode")
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
	if be := checkSettlementState(order.Status, flow); be != nil {
		response.ErrorWithDetails(w, be.StatusCode, string(be.Code), be.Message, be.Details)
		return
	}

	idempotencyKey := strings.TrimSpace(body.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	var settlement billing.Settlement
	err = h.withOrderTx(ctx, func(ctx context.Context, tx orderTx) error {
		var duplicate int64
		if err := duplicatePaymentCheck(tx.QueryRow(ctx, `select id from payments where idempotency_key = $1`, idempotencyKey).Scan(&duplicate)); err != nil {
			return err
		}

		// Re-read under lock: the pre-check above ran on an unlocked row, and
		// a concurrent settlement may have moved paid_amount since.
		locked, err := lockOrder(ctx, tx, cfg.ID, orderID)
		if err != nil {
			return err
		}
		if be := checkSettlementState(locked.Status, flow); be != nil {
			return be
		}
		order = locked

		lines, err := loadLinesTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		totals, err := h.recomputeTotals(ctx, tx, order, cfg, lines)
		if err != nil {
			return err
		}

		settlement, err = billing.Settle(totals, mode, defaultFloat(body.CollectedAmount), flow)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			insert into payments (
				outlet_id, order_id, customer_id, idempotency_key,
				amount, applied_amount, advance_amount,
				payment_mode, flow, status, notes,
				collected_by_user_id, paid_at
			)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,'COMPLETED',$10,$11,now())
		`, cfg.ID, orderID, order.CustomerID, idempotencyKey,
			settlement.CollectedAmount, settlement.AppliedAmount, settlement.AdvanceAmount,
			string(mode), string(flow),
			nilIfEmpty(body.Notes), authCtx.UserID); err != nil {
			return err
		}

		if settlement.AdvanceAmount > 0 {
			if order.CustomerID == nil {
				return billing.ValidationError(billing.ErrInvalidAmount, "Overpayment requires a customer on the order to hold the advance", nil)
			}
			if err := h.creditAdvance(ctx, tx, cfg.ID, *order.CustomerID, orderID, settlement.AdvanceAmount); err != nil {
				return err
			}
		}

		newStatus := order.Status
		completed := false
		switch settlement.Status {
		case billing.PaymentPaid, billing.PaymentDue:
			newStatus = orderStatusCompleted
			completed = true
		}

		if _, err := tx.Exec(ctx, `
			update orders
			set paid_amount = $1, due_amount = $2, payment_status = $3, payment_mode = $4,
			    status = $5,
			    completed_at = case when $6 then now() else completed_at end,
			    updated_at = now()
			where id = $7
		`, settlement.PaidAmount, settlement.DueAmount, string(settlement.Status), string(mode),
			newStatus, completed, orderID); err != nil {
			return err
		}
		order.Status = newStatus

		if completed && order.TableID != nil {
			if _, err := tx.Exec(ctx, `update dining_tables set status = 'AVAILABLE' where id = $1 and outlet_id = $2`, *order.TableID, cfg.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if err == errDuplicatePayment {
			response.Error(w, http.StatusConflict, "DUPLICATE_PAYMENT", "This payment was already recorded")
			return
		}
		if be, ok := billing.AsError(err); ok {
			response.ErrorWithDetails(w, be.StatusCode, string(be.Code), be.Message, be.Details)
			return
		}
		h.Logger.Error("order settlement failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to settle order")
		return
	}

	h.publishOrderEvent(ctx, queue.EventOrderPaid, order)

	payload, err := h.loadOrderPayload(ctx, cfg.ID, orderID)
	if err != nil {
		h.Logger.Error("order reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, map[string]any{
		"order":      payload,
		"settlement": settlement,
	})
}

// duplicatePaymentCheck interprets the idempotency key lookup: a found row is
// a replayed payment, pgx.ErrNoRows clears the way, and anything else is a
// real query failure that must abort the settlement.
func duplicatePaymentCheck(scanErr error) error {
	switch {
	case scanErr == nil:
		return errDuplicatePayment
	case errors.Is(scanErr, pgx.ErrNoRows):
		return nil
	default:
		return scanErr
	}
}

// checkSettlementState gates settlement by order status. Checkout only works
// on open orders; due settlement also covers completed orders that still
// carry a due balance.
func checkSettlementState(status string, flow billing.SettlementFlow) *billing.Error {
	if status == orderStatusCancelled {
		return &billing.Error{Code: "ORDER_CANCELLED", Message: "Cancelled orders cannot be settled", StatusCode: http.StatusConflict}
	}
	if flow == billing.FlowCheckout && status != orderStatusOpen {
		return &billing.Error{Code: "ORDER_NOT_OPEN", Message: "Order is already settled", StatusCode: http.StatusConflict}
	}
	return nil
}

// creditAdvance adds overpaid change to the customer's advance balance and
// writes a ledger entry pointing back at the source order.
func (h *Handler) creditAdvance(ctx context.Context, tx orderTx, outletID, customerID, orderID int64, amount float64) error {
	if _, err := tx.Exec(ctx, `
		update customers
		set advance_balance = advance_balance + $1, updated_at = now()
		where id = $2 and outlet_id = $3
	`, amount, customerID, outletID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		insert into advance_credits (outlet_id, customer_id, order_id, amount, direction)
		values ($1, $2, $3, $4, 'CREDIT')
	`, outletID, customerID, orderID, amount)
	return err
}
