package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/utils"
	"dinepos-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type menuItemPayload struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	IsAvailable bool    `json:"isAvailable"`
	Description *string `json:"description,omitempty"`
}

type menuItemRequest struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       *float64 `json:"price"`
	IsAvailable *bool    `json:"isAvailable"`
	Description string   `json:"description"`
}

func (h *Handler) MenuList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	query := `
		select id, name, category, price, is_available, description
		from menu_items
		where outlet_id = $1 and deleted_at is null
	`
	args := []any{*authCtx.OutletID}
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		args = append(args, category)
		query += ` and category = $2`
	}
	query += ` order by category asc, name asc`

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("menu list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list menu items")
		return
	}
	defer rows.Close()

	items := []menuItemPayload{}
	for rows.Next() {
		var (
			item        menuItemPayload
			price       pgtype.Numeric
			description pgtype.Text
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &price, &item.IsAvailable, &description); err != nil {
			h.Logger.Error("menu list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list menu items")
			return
		}
		item.Price = utils.NumericToFloat64(price)
		if description.Valid {
			item.Description = &description.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("menu list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list menu items")
		return
	}

	response.Success(w, map[string]any{"items": items})
}

func (h *Handler) MenuCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	var body menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required")
		return
	}
	if body.Price == nil || *body.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Price must be zero or greater")
		return
	}

	available := true
	if body.IsAvailable != nil {
		available = *body.IsAvailable
	}

	var item menuItemPayload
	err := h.DB.QueryRow(ctx, `
		insert into menu_items (outlet_id, name, category, price, is_available, description)
		values ($1, $2, $3, $4, $5, $6)
		returning id, name, category, price::float8, is_available
	`, *authCtx.OutletID, name, defaultString(body.Category, "General"), billing.Round2(*body.Price), available, nilIfEmpty(body.Description)).Scan(
		&item.ID, &item.Name, &item.Category, &item.Price, &item.IsAvailable)
	if err != nil {
		h.Logger.Error("menu create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create menu item")
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": item})
}

func (h *Handler) MenuUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}

	var body menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.Price != nil && *body.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Price must be zero or greater")
		return
	}

	var price any
	if body.Price != nil {
		price = billing.Round2(*body.Price)
	}
	tag, err := h.DB.Exec(ctx, `
		update menu_items
		set name = coalesce(nullif($1, ''), name),
		    category = coalesce(nullif($2, ''), category),
		    price = coalesce($3, price),
		    is_available = coalesce($4, is_available),
		    description = coalesce($5, description),
		    updated_at = now()
		where id = $6 and outlet_id = $7 and deleted_at is null
	`, strings.TrimSpace(body.Name), strings.TrimSpace(body.Category), price, body.IsAvailable, nilIfEmpty(body.Description), itemID, *authCtx.OutletID)
	if err != nil {
		h.Logger.Error("menu update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
		return
	}

	response.Success(w, map[string]any{"id": itemID})
}

func (h *Handler) MenuDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update menu_items set deleted_at = now()
		where id = $1 and outlet_id = $2 and deleted_at is null
	`, itemID, *authCtx.OutletID)
	if err != nil {
		h.Logger.Error("menu delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete menu item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found")
		return
	}

	response.Success(w, map[string]any{"id": itemID, "deleted": true})
}
