package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/utils"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

// OrderList returns orders for the caller's outlet, newest first. Supports
// status, paymentStatus and orderType filters plus limit/offset paging.
func (h *Handler) OrderList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}
	outletID := *authCtx.OutletID

	query := `
		select id from orders
		where outlet_id = $1
	`
	args := []any{outletID}

	if status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); status != "" {
		args = append(args, status)
		query += ` and status = $` + strconv.Itoa(len(args))
	}
	if payStatus := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("paymentStatus"))); payStatus != "" {
		args = append(args, payStatus)
		query += ` and payment_status = $` + strconv.Itoa(len(args))
	}
	if orderType := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("orderType"))); orderType != "" {
		args = append(args, orderType)
		query += ` and order_type = $` + strconv.Itoa(len(args))
	}

	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	offset := int64(0)
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	args = append(args, limit)
	query += ` order by created_at desc limit $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` offset $` + strconv.Itoa(len(args))

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("order list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list orders")
		return
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			h.Logger.Error("order list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list orders")
			return
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		h.Logger.Error("order list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list orders")
		return
	}

	orders := make([]OrderPayload, 0, len(ids))
	for _, id := range ids {
		payload, err := h.loadOrderPayload(ctx, outletID, id)
		if err != nil {
			h.Logger.Error("order load failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load orders")
			return
		}
		orders = append(orders, payload)
	}

	response.Success(w, map[string]any{
		"orders": orders,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) OrderGet(w http.ResponseWriter, r *http.Request) {
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

	payload, err := h.loadOrderPayload(ctx, *authCtx.OutletID, orderID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	response.Success(w, payload)
}

// loadOrderPayload assembles the full order response body with lines,
// payments and the related customer/table summaries.
func (h *Handler) loadOrderPayload(ctx context.Context, outletID int64, orderID int64) (OrderPayload, error) {
	var (
		payload         OrderPayload
		tableID         pgtype.Int8
		customerID      pgtype.Int8
		paymentMode     pgtype.Text
		subtotal        pgtype.Numeric
		discountPercent pgtype.Numeric
		discountAmount  pgtype.Numeric
		taxRate         pgtype.Numeric
		taxAmount       pgtype.Numeric
		svcRate         pgtype.Numeric
		svcAmount       pgtype.Numeric
		total           pgtype.Numeric
		paid            pgtype.Numeric
		due             pgtype.Numeric
		notes           pgtype.Text
		completedAt     pgtype.Timestamptz
	)

	err := h.DB.QueryRow(ctx, `
		select id, outlet_id, order_number, order_type, table_id, customer_id,
		       status, payment_status, payment_mode,
		       subtotal, discount_percent, discount_amount,
		       tax_rate, tax_amount, service_charge_rate, service_charge_amount,
		       total_amount, paid_amount, due_amount,
		       notes, created_at, updated_at, completed_at
		from orders
		where id = $1 and outlet_id = $2
	`, orderID, outletID).Scan(
		&payload.ID, &payload.OutletID, &payload.OrderNumber, &payload.OrderType, &tableID, &customerID,
		&payload.Status, &payload.PaymentStatus, &paymentMode,
		&subtotal, &discountPercent, &discountAmount,
		&taxRate, &taxAmount, &svcRate, &svcAmount,
		&total, &paid, &due,
		&notes, &payload.CreatedAt, &payload.UpdatedAt, &completedAt,
	)
	if err != nil {
		return OrderPayload{}, err
	}

	if tableID.Valid {
		payload.TableID = &tableID.Int64
	}
	if customerID.Valid {
		payload.CustomerID = &customerID.Int64
	}
	if paymentMode.Valid {
		payload.PaymentMode = &paymentMode.String
	}
	if notes.Valid {
		payload.Notes = &notes.String
	}
	if completedAt.Valid {
		payload.CompletedAt = &completedAt.Time
	}
	payload.Subtotal = utils.NumericToFloat64(subtotal)
	payload.DiscountPercent = utils.NumericToFloat64(discountPercent)
	payload.DiscountAmount = utils.NumericToFloat64(discountAmount)
	payload.TaxRate = utils.NumericToFloat64(taxRate)
	payload.TaxAmount = utils.NumericToFloat64(taxAmount)
	payload.ServiceChargeRate = utils.NumericToFloat64(svcRate)
	payload.ServiceChargeAmount = utils.NumericToFloat64(svcAmount)
	payload.TotalAmount = utils.NumericToFloat64(total)
	payload.PaidAmount = utils.NumericToFloat64(paid)
	payload.DueAmount = utils.NumericToFloat64(due)

	_, items, err := h.loadOrderLines(ctx, orderID)
	if err != nil {
		return OrderPayload{}, err
	}
	payload.Items = items
	if payload.Items == nil {
		payload.Items = []OrderItemPayload{}
	}

	payments, err := h.loadOrderPayments(ctx, orderID)
	if err != nil {
		return OrderPayload{}, err
	}
	payload.Payments = payments

	if payload.CustomerID != nil {
		if customer, err := h.loadCustomerSummary(ctx, outletID, *payload.CustomerID); err == nil {
			payload.Customer = &customer
		}
	}
	if payload.TableID != nil {
		if table, err := h.loadTableSummary(ctx, outletID, *payload.TableID); err == nil {
			payload.Table = &table
		}
	}
	return payload, nil
}

func (h *Handler) loadOrderPayments(ctx context.Context, orderID int64) ([]PaymentSummary, error) {
	rows, err := h.DB.Query(ctx, `
		select id, amount, applied_amount, advance_amount, payment_mode, flow, status, notes, paid_at
		from payments
		where order_id = $1
		order by id asc
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []PaymentSummary
	for rows.Next() {
		var (
			p       PaymentSummary
			amount  pgtype.Numeric
			applied pgtype.Numeric
			advance pgtype.Numeric
			notes   pgtype.Text
			paidAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &amount, &applied, &advance, &p.PaymentMode, &p.Flow, &p.Status, &notes, &paidAt); err != nil {
			return nil, err
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
	return payments, rows.Err()
}

func (h *Handler) loadCustomerSummary(ctx context.Context, outletID int64, customerID int64) (CustomerSummary, error) {
	var (
		summary CustomerSummary
		phone   pgtype.Text
		email   pgtype.Text
		advance pgtype.Numeric
	)
	err := h.DB.QueryRow(ctx, `
		select id, name, phone, email, advance_balance
		from customers
		where id = $1 and outlet_id = $2
	`, customerID, outletID).Scan(&summary.ID, &summary.Name, &phone, &email, &advance)
	if err != nil {
		return CustomerSummary{}, err
	}
	if phone.Valid {
		summary.Phone = &phone.String
	}
	if email.Valid {
		summary.Email = &email.String
	}
	summary.AdvanceBalance = utils.NumericToFloat64(advance)
	return summary, nil
}

func (h *Handler) loadTableSummary(ctx context.Context, outletID int64, tableID int64) (TableSummary, error) {
	var (
		summary TableSummary
		area    pgtype.Text
	)
	err := h.DB.QueryRow(ctx, `
		select id, table_number, area, capacity, status
		from dining_tables
		where id = $1 and outlet_id = $2
	`, tableID, outletID).Scan(&summary.ID, &summary.Number, &area, &summary.Capacity, &summary.Status)
	if err != nil {
		return TableSummary{}, err
	}
	if area.Valid {
		summary.Area = &area.String
	}
	return summary, nil
}
