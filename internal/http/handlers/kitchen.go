package handlers

import (
	"net/http"
	"time"

	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type kitchenTicket struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	OrderType   string    `json:"orderType"`
	TableNumber *string   `json:"tableNumber"`
	ItemID      int64     `json:"itemId"`
	MenuName    string    `json:"menuName"`
	Quantity    int32     `json:"quantity"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes"`
	QueuedAt    time.Time `json:"queuedAt"`
}

// KitchenQueue lists the lines the kitchen still has to act on, oldest
// first, across all open orders of the outlet.
func (h *Handler) KitchenQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select oi.id, o.id, o.order_number, o.order_type, dt.table_number,
		       oi.id, oi.menu_name, oi.quantity, oi.status, oi.notes, oi.created_at
		from order_items oi
		join orders o on o.id = oi.order_id
		left join dining_tables dt on dt.id = o.table_id
		where o.outlet_id = $1
		  and o.status = 'OPEN'
		  and oi.status in ('QUEUED', 'PREPARING', 'READY')
		order by oi.created_at asc
	`, *authCtx.OutletID)
	if err != nil {
		h.Logger.Error("kitchen queue query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load kitchen queue")
		return
	}
	defer rows.Close()

	tickets := []kitchenTicket{}
	for rows.Next() {
		var (
			t           kitchenTicket
			tableNumber pgtype.Text
			notes       pgtype.Text
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.OrderNumber, &t.OrderType, &tableNumber,
			&t.ItemID, &t.MenuName, &t.Quantity, &t.Status, &notes, &t.QueuedAt); err != nil {
			h.Logger.Error("kitchen queue scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load kitchen queue")
			return
		}
		if tableNumber.Valid {
			t.TableNumber = &tableNumber.String
		}
		if notes.Valid {
			t.Notes = &notes.String
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("kitchen queue rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load kitchen queue")
		return
	}

	response.Success(w, map[string]any{"tickets": tickets})
}
