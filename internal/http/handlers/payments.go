package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/utils"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type createPaymentRequest struct {
	OrderID         any      `json:"orderId"`
	Flow            string   `json:"flow"`
	PaymentMode     string   `json:"paymentMode"`
	CollectedAmount *float64 `json:"collectedAmount"`
	IdempotencyKey  string   `json:"idempotencyKey"`
	Notes           string   `json:"notes"`
}

// PaymentCreate records a payment against an order identified in the body.
// It runs the same settlement pipeline as the per-order pay endpoints.
func (h *Handler) PaymentCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	var body createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	orderID, ok := parseNumericID(body.OrderID)
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "orderId is required")
		return
	}

	flow := billing.FlowCheckout
	switch strings.ToUpper(strings.TrimSpace(body.Flow)) {
	case "", string(billing.FlowCheckout):
	case string(billing.FlowSettleDue):
		flow = billing.FlowSettleDue
	default:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown settlement flow")
		return
	}

	h.performSettlement(w, r, authCtx, orderID, payOrderRequest{
		PaymentMode:     body.PaymentMode,
		CollectedAmount: body.CollectedAmount,
		IdempotencyKey:  body.IdempotencyKey,
		Notes:           body.Notes,
	}, flow)
}

type paymentRecord struct {
	PaymentSummary
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PaymentList returns payments for the outlet, optionally bounded by a
// from/to date range (YYYY-MM-DD) for end of day reconciliation.
func (h *Handler) PaymentList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	query := `
		select p.id, p.order_id, o.order_number,
		       p.amount, p.applied_amount, p.advance_amount,
		       p.payment_mode, p.flow, p.status, p.notes, p.paid_at, p.created_at
		from payments p
		join orders o on o.id = p.order_id
		where p.outlet_id = $1
	`
	args := []any{*authCtx.OutletID}

	if from := strings.TrimSpace(r.URL.Query().Get("from")); from != "" {
		if day, err := time.Parse("2006-01-02", from); err == nil {
			args = append(args, day)
			query += ` and p.created_at >= $` + strconv.Itoa(len(args))
		}
	}
	if to := strings.TrimSpace(r.URL.Query().Get("to")); to != "" {
		if day, err := time.Parse("2006-01-02", to); err == nil {
			args = append(args, day.AddDate(0, 0, 1))
			query += ` and p.created_at < $` + strconv.Itoa(len(args))
		}
	}
	query += ` order by p.created_at desc limit 500`

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("payment list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list payments")
		return
	}
	defer rows.Close()

	payments := []paymentRecord{}
	for rows.Next() {
		var (
			p       paymentRecord
			amount  pgtype.Numeric
			applied pgtype.Numeric
			advance pgtype.Numeric
			notes   pgtype.Text
			paidAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.OrderNumber,
			&amount, &applied, &advance,
			&p.PaymentMode, &p.Flow, &p.Status, &notes, &paidAt, &p.CreatedAt); err != nil {
			h.Logger.Error("payment list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list payments")
			return
		}
		p.Amount = utils.NumericToFloat64(amount)
		p.AppliedAmount = utils.NumericToFloat64(applied)
		p.AdvanceAmount = utils.NumericToFloat64(advance)
		if notes.Valid {
			p.Notes = &notes.String
		}
		if paidAt.Valid {
			p.PaidAt = &paidAt.Time
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("payment list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list payments")
		return
	}

	response.Success(w, map[string]any{"payments": payments})
}
