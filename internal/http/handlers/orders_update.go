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

type updateOrderRequest struct {
	AddItems        []cartLineRequest `json:"addItems"`
	QuantityChanges []quantityChange  `json:"quantityChanges"`
	Billing         billingOptionsRequest
	Notes           *string `json:"notes"`
	TableID         any     `json:"tableId"`
}

type quantityChange struct {
	LineKey  string `json:"lineKey"`
	Quantity int32  `json:"quantity"`
}

func (r *updateOrderRequest) UnmarshalJSON(data []byte) error {
	type alias updateOrderRequest
	var out struct {
		alias
		DiscountPercent      *float64 `json:"discountPercent"`
		TaxEnabled           *bool    `json:"taxEnabled"`
		ServiceChargeEnabled *bool    `json:"serviceChargeEnabled"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*r = updateOrderRequest(out.alias)
	r.Billing.DiscountPercent = out.DiscountPercent
	r.Billing.TaxEnabled = out.TaxEnabled
	r.Billing.ServiceChargeEnabled = out.ServiceChargeEnabled
	return nil
}

// OrderUpdate applies cart edits to an open order. New lines merge into
// existing unsent lines of the same menu item and notes; a quantity change
// down to zero removes the line. Totals are recomputed from the resulting
// lines in the same transaction.
func (h *Handler) OrderUpdate(w http.ResponseWriter, r *http.Request) {
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

	var body updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
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
		response.Error(w, http.StatusConflict, "ORDER_NOT_OPEN", "Only open orders can be modified")
		return
	}

	var added []billing.LineItem
	if len(body.AddItems) > 0 {
		added, err = h.buildCartLines(ctx, cfg.ID, body.AddItems)
		if err != nil {
			writeBillingError(w, err)
			return
		}
	}

	err = h.withOrderTx(ctx, func(ctx context.Context, tx orderTx) error {
		lines, err := loadLinesTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		for _, line := range added {
			lines = billing.MergeLine(lines, line)
		}
		lines, err = applyQuantityChanges(lines, body.QuantityChanges)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return billing.ValidationError(billing.ErrInvalidLineItem, "Order must keep at least one item. Cancel the order instead.", nil)
		}

		if err := h.persistLines(ctx, tx, orderID, lines); err != nil {
			return err
		}

		if body.Billing.DiscountPercent != nil {
			order.DiscountPercent = billing.ClampPercent(*body.Billing.DiscountPercent)
		}
		if body.Billing.TaxEnabled != nil {
			order.TaxEnabled = *body.Billing.TaxEnabled
		}
		if body.Billing.ServiceChargeEnabled != nil {
			order.SvcEnabled = *body.Billing.ServiceChargeEnabled
		}
		if _, err := tx.Exec(ctx, `
			update orders set tax_enabled = $1, service_charge_enabled = $2, updated_at = now()
			where id = $3
		`, order.TaxEnabled, order.SvcEnabled, orderID); err != nil {
			return err
		}

		if body.Notes != nil {
			if _, err := tx.Exec(ctx, `update orders set notes = $1 where id = $2`, nullIfEmptyPtr(body.Notes), orderID); err != nil {
				return err
			}
		}
		if body.TableID != nil {
			if tableID, ok := parseNumericID(body.TableID); ok {
				if err := h.moveOrderTable(ctx, tx, order, tableID); err != nil {
					return err
				}
			}
		}

		_, err = h.recomputeTotals(ctx, tx, order, cfg, lines)
		return err
	})
	if err != nil {
		if be, ok := billing.AsError(err); ok {
			response.ErrorWithDetails(w, be.StatusCode, string(be.Code), be.Message, be.Details)
			return
		}
		h.Logger.Error("order update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	h.publishOrderEvent(ctx, queue.EventOrderUpdated, order)

	payload, err := h.loadOrderPayload(ctx, cfg.ID, orderID)
	if err != nil {
		h.Logger.Error("order reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, payload)
}

// applyQuantityChanges applies the requested quantity edits. Dropping a line
// to zero only works while it is still QUEUED; anything the kitchen has
// picked up keeps its row and must go through the item-status CANCELLED
// transition, so the stored lines never drift from the stored totals.
func applyQuantityChanges(lines []billing.LineItem, changes []quantityChange) ([]billing.LineItem, error) {
	for _, change := range changes {
		key := strings.TrimSpace(change.LineKey)
		if change.Quantity <= 0 {
			for _, line := range lines {
				if line.ID == key && line.Status != billing.StatusQueued {
					return nil, billing.ValidationError(billing.ErrInvalidLineItem, "Lines already sent to the kitchen cannot be removed. Cancel the item instead.", map[string]any{
						"lineKey": key,
						"status":  string(line.Status),
					})
				}
			}
		}
		lines = billing.AdjustQuantity(lines, key, change.Quantity)
	}
	return lines, nil
}

// persistLines reconciles order_items rows with the in-memory cart. Lines
// removed from the cart are deleted, surviving lines are updated in place,
// and new line keys are inserted.
func (h *Handler) persistLines(ctx context.Context, tx orderTx, orderID int64, lines []billing.LineItem) error {
	keep := make([]string, 0, len(lines))
	for _, line := range lines {
		keep = append(keep, line.ID)
	}

	if _, err := tx.Exec(ctx, `
		delete from order_items
		where order_id = $1 and status = 'QUEUED' and not (line_key = any($2))
	`, orderID, keep); err != nil {
		return err
	}

	for _, line := range lines {
		tag, err := tx.Exec(ctx, `
			update order_items
			set quantity = $1, unit_price = $2, notes = $3, status = $4
			where order_id = $5 and line_key = $6
		`, line.Quantity, line.UnitPrice, nilIfEmpty(line.Notes), string(line.Status), orderID, line.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, `
				insert into order_items (order_id, line_key, menu_item_id, menu_name, unit_price, quantity, status, notes)
				values ($1,$2,$3,$4,$5,$6,$7,$8)
			`, orderID, line.ID, line.MenuItemID, line.MenuName, line.UnitPrice, line.Quantity, string(line.Status), nilIfEmpty(line.Notes)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) moveOrderTable(ctx context.Context, tx orderTx, order orderRow, tableID int64) error {
	if order.TableID != nil && *order.TableID == tableID {
		return nil
	}
	if order.TableID != nil {
		if _, err := tx.Exec(ctx, `update dining_tables set status = 'AVAILABLE' where id = $1 and outlet_id = $2`, *order.TableID, order.OutletID); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `update dining_tables set status = 'OCCUPIED' where id = $1 and outlet_id = $2`, tableID, order.OutletID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `update orders set table_id = $1, updated_at = now() where id = $2`, tableID, order.ID)
	return err
}
