package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/internal/queue"
	"dinepos-order-service/internal/utils"
	"dinepos-order-service/pkg/response"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type createOrderRequest struct {
	OrderType string            `json:"orderType"`
	TableID   any               `json:"tableId"`
	Customer  *posCustomer      `json:"customer"`
	Items     []cartLineRequest `json:"items"`
	Billing   billingOptionsRequest
	Notes     string `json:"notes"`
}

type posCustomer struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (r *createOrderRequest) UnmarshalJSON(data []byte) error {
	type alias createOrderRequest
	var out struct {
		alias
		DiscountPercent      *float64 `json:"discountPercent"`
		TaxEnabled           *bool    `json:"taxEnabled"`
		ServiceChargeEnabled *bool    `json:"serviceChargeEnabled"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*r = createOrderRequest(out.alias)
	r.Billing.DiscountPercent = out.DiscountPercent
	r.Billing.TaxEnabled = out.TaxEnabled
	r.Billing.ServiceChargeEnabled = out.ServiceChargeEnabled
	return nil
}

func (h *Handler) OrderCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok || authCtx.OutletID == nil {
		response.Error(w, http.StatusBadRequest, "OUTLET_NOT_FOUND", "Outlet context not found")
		return
	}

	var body createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	orderType := strings.ToUpper(strings.TrimSpace(body.OrderType))
	if orderType != "DINE_IN" && orderType != "TAKEAWAY" && orderType != "DELIVERY" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order type. Must be DINE_IN, TAKEAWAY or DELIVERY.")
		return
	}
	if len(body.Items) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order must have at least one item.")
		return
	}

	cfg, err := h.loadOutletBilling(ctx, *authCtx.OutletID, authCtx.UserID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Outlet not found")
		return
	}

	lines, err := h.buildCartLines(ctx, cfg.ID, body.Items)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	var tableID *int64
	if body.TableID != nil {
		if id, ok := parseNumericID(body.TableID); ok {
			tableID = &id
		}
	}
	if orderType == "DINE_IN" && tableID == nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table is required for dine-in orders")
		return
	}

	customerID, err := h.resolveCustomer(ctx, cfg.ID, body.Customer)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	billCtx := billing.Context{
		DiscountPercent:          defaultFloat(body.Billing.DiscountPercent),
		TaxEnabled:               cfg.TaxEnabled,
		TaxRatePercent:           cfg.TaxRatePercent,
		ServiceChargeEnabled:     cfg.ServiceChargeEnabled,
		ServiceChargeRatePercent: cfg.ServiceChargeRatePercent,
	}
	if body.Billing.TaxEnabled != nil {
		billCtx.TaxEnabled = *body.Billing.TaxEnabled
	}
	if body.Billing.ServiceChargeEnabled != nil {
		billCtx.ServiceChargeEnabled = *body.Billing.ServiceChargeEnabled
	}

	totals, err := billing.Compute(lines, billCtx)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	var created orderRow
	err = h.withOrderTx(ctx, func(ctx context.Context, tx orderTx) error {
		now := time.Now()
		orderNumber, err := h.generateOrderNumber(ctx, tx, cfg.ID, now)
		if err != nil {
			return err
		}

		var orderID int64
		err = tx.QueryRow(ctx, `
			insert into orders (
				outlet_id, order_number, order_type, table_id, customer_id,
				status, payment_status,
				subtotal, discount_percent, discount_amount,
				tax_enabled, tax_rate, tax_amount,
				service_charge_enabled, service_charge_rate, service_charge_amount,
				total_amount, paid_amount, due_amount,
				notes, created_by_user_id
			)
			values ($1,$2,$3,$4,$5,'OPEN','UNPAID',$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,0,$16,$17,$18)
			returning id
		`, cfg.ID, orderNumber, orderType, tableID, customerID,
			totals.Subtotal, totals.DiscountPercent, totals.DiscountAmount,
			billCtx.TaxEnabled, totals.TaxRate, totals.TaxAmount,
			billCtx.ServiceChargeEnabled, totals.ServiceChargeRate, totals.ServiceChargeAmount,
			totals.GrandTotal, totals.DueAmount,
			nilIfEmpty(body.Notes), authCtx.UserID).Scan(&orderID)
		if err != nil {
			return err
		}

		for _, line := range lines {
			if _, err := tx.Exec(ctx, `
				insert into order_items (order_id, line_key, menu_item_id, menu_name, unit_price, quantity, status, notes)
				values ($1,$2,$3,$4,$5,$6,$7,$8)
			`, orderID, line.ID, line.MenuItemID, line.MenuName, line.UnitPrice, line.Quantity, string(line.Status), nilIfEmpty(line.Notes)); err != nil {
				return err
			}
		}

		if tableID != nil && orderType == "DINE_IN" {
			if _, err := tx.Exec(ctx, `update dining_tables set status = 'OCCUPIED' where id = $1 and outlet_id = $2`, *tableID, cfg.ID); err != nil {
				return err
			}
		}

		created = orderRow{ID: orderID, OutletID: cfg.ID, OrderNumber: orderNumber, OrderType: orderType, Status: orderStatusOpen}
		return nil
	})
	if err != nil {
		h.Logger.Error("order create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	h.publishOrderEvent(ctx, queue.EventOrderPlaced, created)

	detail, err := h.loadOrderPayload(ctx, cfg.ID, created.ID)
	if err != nil {
		h.Logger.Error("order reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load created order")
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    detail,
		"message": "Order created successfully",
	})
}

// buildCartLines validates requested lines against the menu, takes the menu
// price as the authoritative unit price, and folds duplicate unsent lines
// together.
func (h *Handler) buildCartLines(ctx context.Context, outletID int64, items []cartLineRequest) ([]billing.LineItem, error) {
	var cart []billing.LineItem
	for _, item := range items {
		menuItemID, ok := parseNumericID(item.MenuItemID)
		if !ok {
			return nil, billing.ValidationError(billing.ErrInvalidLineItem, "Menu item id is required", nil)
		}
		if item.Quantity <= 0 {
			return nil, billing.ValidationError(billing.ErrInvalidLineItem, "Quantity must be greater than zero", map[string]any{
				"menuItemId": menuItemID,
			})
		}

		var (
			menuName  string
			price     pgtype.Numeric
			available bool
		)
		err := h.DB.QueryRow(ctx, `
			select name, price, is_available
			from menu_items
			where id = $1 and outlet_id = $2 and deleted_at is null
		`, menuItemID, outletID).Scan(&menuName, &price, &available)
		if err != nil {
			return nil, billing.ValidationError(billing.ErrInvalidLineItem, "Menu item not found", map[string]any{
				"menuItemId": menuItemID,
			})
		}
		if !available {
			return nil, billing.ValidationError(billing.ErrInvalidLineItem, "Menu item is not available", map[string]any{
				"menuItemId": menuItemID,
				"menuName":   menuName,
			})
		}

		lineKey := strings.TrimSpace(item.LineKey)
		if lineKey == "" {
			lineKey = uuid.NewString()
		}

		cart = billing.MergeLine(cart, billing.LineItem{
			ID:         lineKey,
			MenuItemID: menuItemID,
			MenuName:   menuName,
			UnitPrice:  billing.Round2(utils.NumericToFloat64(price)),
			Quantity:   item.Quantity,
			Status:     billing.StatusQueued,
			Notes:      strings.TrimSpace(item.Notes),
		})
	}
	return cart, nil
}

func (h *Handler) resolveCustomer(ctx context.Context, outletID int64, customer *posCustomer) (*int64, error) {
	if customer == nil {
		return nil, nil
	}

	if customer.ID != nil {
		if id, ok := parseNumericID(customer.ID); ok {
			var existing int64
			if err := h.DB.QueryRow(ctx, `select id from customers where id = $1 and outlet_id = $2`, id, outletID).Scan(&existing); err == nil {
				return &existing, nil
			}
		}
	}

	name := strings.TrimSpace(customer.Name)
	phone := strings.TrimSpace(customer.Phone)
	email := strings.TrimSpace(strings.ToLower(customer.Email))
	if name == "" && phone == "" && email == "" {
		return nil, nil
	}

	if phone != "" {
		var id int64
		if err := h.DB.QueryRow(ctx, `select id from customers where outlet_id = $1 and phone = $2`, outletID, phone).Scan(&id); err == nil {
			if name != "" {
				_, _ = h.DB.Exec(ctx, `update customers set name = coalesce(nullif($1,''), name), updated_at = now() where id = $2`, name, id)
			}
			return &id, nil
		}
	}

	var newID int64
	if err := h.DB.QueryRow(ctx, `
		insert into customers (outlet_id, name, phone, email, advance_balance, updated_at)
		values ($1, $2, $3, $4, 0, now())
		returning id
	`, outletID, defaultString(name, "Walk-in Customer"), nilIfEmpty(phone), nilIfEmpty(email)).Scan(&newID); err != nil {
		return nil, err
	}
	return &newID, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func writeBillingError(w http.ResponseWriter, err error) {
	if be, ok := billing.AsError(err); ok {
		response.ErrorWithDetails(w, be.StatusCode, string(be.Code), be.Message, be.Details)
		return
	}
	response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}
