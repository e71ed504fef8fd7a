package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type tableRequest struct {
	Number   string `json:"number"`
	Area     string `json:"area"`
	Capacity *int32 `json:"capacity"`
	Status   string `json:"status"`
}

var tableStatuses = map[string]struct{}{
	"AVAILABLE": {},
	"OCCUPIED":  {},
	"RESERVED":  {},
	"CLEANING":  {},
}

func (h *Handler) TableList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, table_number, area, capacity, status
		from dining_tables
		where outlet_id = $1 and deleted_at is null
		order by area nulls first, table_number asc
	`, *authCtx.OutletID)
	if err != nil {
		h.Logger.Error("table list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tables")
		return
	}
	defer rows.Close()

	tables := []TableSummary{}
	for rows.Next() {
		var (
			t    TableSummary
			area pgtype.Text
		)
		if err := rows.Scan(&t.ID, &t.Number, &area, &t.Capacity, &t.Status); err != nil {
			h.Logger.Error("table list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tables")
			return
		}
		if area.Valid {
			t.Area = &area.String
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("table list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tables")
		return
	}

	response.Success(w, map[string]any{"tables": tables})
}

func (h *Handler) TableCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	var body tableRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	number := strings.TrimSpace(body.Number)
	if number == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table number is required")
		return
	}

	capacity := int32(2)
	if body.Capacity != nil && *body.Capacity > 0 {
		capacity = *body.Capacity
	}

	var id int64
	err := h.DB.QueryRow(ctx, `
		insert into dining_tables (outlet_id, table_number, area, capacity, status)
		values ($1, $2, $3, $4, 'AVAILABLE')
		returning id
	`, *authCtx.OutletID, number, nilIfEmpty(body.Area), capacity).Scan(&id)
	if err != nil {
		h.Logger.Error("table create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create table")
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"id": id}})
}

func (h *Handler) TableUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	var body tableRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var status any
	if trimmed := strings.ToUpper(strings.TrimSpace(body.Status)); trimmed != "" {
		if _, valid := tableStatuses[trimmed]; !valid {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown table status")
			return
		}
		status = trimmed
	}

	tag, err := h.DB.Exec(ctx, `
		update dining_tables
		set table_number = coalesce(nullif($1, ''), table_number),
		    area = coalesce($2, area),
		    capacity = coalesce($3, capacity),
		    status = coalesce($4, status),
		    updated_at = now()
		where id = $5 and outlet_id = $6 and deleted_at is null
	`, strings.TrimSpace(body.Number), nilIfEmpty(body.Area), body.Capacity, status, tableID, *authCtx.OutletID)
	if err != nil {
		h.Logger.Error("table update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update table")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
		return
	}

	response.Success(w, map[string]any{"id": tableID})
}

func (h *Handler) TableDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	var openOrders int64
	if err := h.DB.QueryRow(ctx, `
		select count(*) from orders where table_id = $1 and status = 'OPEN'
	`, tableID).Scan(&openOrders); err == nil && openOrders > 0 {
		response.Error(w, http.StatusConflict, "TABLE_IN_USE", "Table has open orders")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update dining_tables set deleted_at = now()
		where id = $1 and outlet_id = $2 and deleted_at is null
	`, tableID, *authCtx.OutletID)
	if err != nil {
		h.Logger.Error("table delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete table")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
		return
	}

	response.Success(w, map[string]any{"id": tableID, "deleted": true})
}
