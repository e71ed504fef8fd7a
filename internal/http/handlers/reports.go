package handlers

import (
	"net/http"
	"strings"
	"time"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/utils"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type profitLossReport struct {
	From          string             `json:"from"`
	To            string             `json:"to"`
	GrossRevenue  float64            `json:"grossRevenue"`
	Refunds       float64            `json:"refunds"`
	NetRevenue    float64            `json:"netRevenue"`
	TotalExpenses float64            `json:"totalExpenses"`
	NetProfit     float64            `json:"netProfit"`
	OrderCount    int64              `json:"orderCount"`
	ByPaymentMode map[string]float64 `json:"byPaymentMode"`
	TopItems      []topItemEntry     `json:"topItems"`
}

type topItemEntry struct {
	MenuName string  `json:"menuName"`
	Quantity int64   `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// buildProfitLoss folds the collected figures into the report. Revenue here
// is money applied to bills, so advance credit held for customers is not
// counted until it is spent.
func buildProfitLoss(from, to time.Time, revenueByMode map[string]float64, refunds, expenses float64, orderCount int64, topItems []topItemEntry) profitLossReport {
	var gross float64
	for _, amount := range revenueByMode {
		gross += amount
	}
	gross = billing.Round2(gross)
	net := billing.Round2(gross - refunds)

	return profitLossReport{
		From:          from.Format("2006-01-02"),
		To:            to.Format("2006-01-02"),
		GrossRevenue:  gross,
		Refunds:       billing.Round2(refunds),
		NetRevenue:    net,
		TotalExpenses: billing.Round2(expenses),
		NetProfit:     billing.Round2(net - expenses),
		OrderCount:    orderCount,
		ByPaymentMode: revenueByMode,
		TopItems:      topItems,
	}
}

func reportRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			to = parsed
		}
	}
	return from, to
}

// ProfitLoss summarizes takings against expenses for a date range. Defaults
// to the current month.
func (h *Handler) ProfitLoss(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}
	outletID := *authCtx.OutletID

	from, to := reportRange(r)
	rangeEnd := to.AddDate(0, 0, 1)

	revenueByMode := map[string]float64{}
	rows, err := h.DB.Query(ctx, `
		select payment_mode, coalesce(sum(applied_amount), 0)
		from payments
		where outlet_id = $1 and status = 'COMPLETED'
		  and created_at >= $2 and created_at < $3
		group by payment_mode
	`, outletID, from, rangeEnd)
	if err != nil {
		h.Logger.Error("revenue query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}
	for rows.Next() {
		var (
			mode   string
			amount pgtype.Numeric
		)
		if err := rows.Scan(&mode, &amount); err != nil {
			rows.Close()
			h.Logger.Error("revenue scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
			return
		}
		revenueByMode[mode] = billing.Round2(utils.NumericToFloat64(amount))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		h.Logger.Error("revenue rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}

	var refunds pgtype.Numeric
	if err := h.DB.QueryRow(ctx, `
		select coalesce(sum(amount), 0) from refunds
		where outlet_id = $1 and created_at >= $2 and created_at < $3
	`, outletID, from, rangeEnd).Scan(&refunds); err != nil {
		h.Logger.Error("refund query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}

	var expenses pgtype.Numeric
	if err := h.DB.QueryRow(ctx, `
		select coalesce(sum(amount), 0) from expenses
		where outlet_id = $1 and spent_at >= $2 and spent_at < $3
	`, outletID, from, rangeEnd).Scan(&expenses); err != nil {
		h.Logger.Error("expense query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}

	var orderCount int64
	if err := h.DB.QueryRow(ctx, `
		select count(*) from orders
		where outlet_id = $1 and status = 'COMPLETED'
		  and completed_at >= $2 and completed_at < $3
	`, outletID, from, rangeEnd).Scan(&orderCount); err != nil {
		h.Logger.Error("order count query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}

	topItems := []topItemEntry{}
	itemRows, err := h.DB.Query(ctx, `
		select oi.menu_name, sum(oi.quantity), sum(oi.unit_price * oi.quantity)
		from order_items oi
		join orders o on o.id = oi.order_id
		where o.outlet_id = $1 and o.status = 'COMPLETED'
		  and o.completed_at >= $2 and o.completed_at < $3
		  and oi.status <> 'CANCELLED'
		group by oi.menu_name
		order by sum(oi.quantity) desc
		limit 10
	`, outletID, from, rangeEnd)
	if err != nil {
		h.Logger.Error("top items query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}
	for itemRows.Next() {
		var (
			entry   topItemEntry
			revenue pgtype.Numeric
		)
		if err := itemRows.Scan(&entry.MenuName, &entry.Quantity, &revenue); err != nil {
			itemRows.Close()
			h.Logger.Error("top items scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
			return
		}
		entry.Revenue = billing.Round2(utils.NumericToFloat64(revenue))
		topItems = append(topItems, entry)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		h.Logger.Error("top items rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}

	report := buildProfitLoss(from, to,
		revenueByMode,
		utils.NumericToFloat64(refunds),
		utils.NumericToFloat64(expenses),
		orderCount, topItems)

	response.Success(w, report)
}
