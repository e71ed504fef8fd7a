package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	EventsExchange = "dinepos.events"
	EventsQueue    = "dinepos.kitchen"

	EventOrderPlaced        = "order.placed"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusUpdated = "order.status.updated"
	EventOrderPaid          = "order.paid"
	EventOrderCancelled     = "order.cancelled"
)

// OrderEvent is the envelope published for every order lifecycle change.
// The kitchen worker consumes it to print KOTs and refresh displays.
type OrderEvent struct {
	Type        string     `json:"type"`
	OrderID     int64      `json:"orderId"`
	OutletID    int64      `json:"outletId"`
	OrderNumber string     `json:"orderNumber"`
	Status      string     `json:"status,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func PublishOrderEvent(ctx context.Context, qc *Client, evt OrderEvent) error {
	if qc == nil {
		return nil
	}
	if evt.UpdatedAt == nil {
		now := time.Now().UTC()
		evt.UpdatedAt = &now
	}
	return qc.PublishJSON(ctx, EventsExchange, evt.Type, evt)
}

// ProcessOrderEvent is the kitchen worker's handler: new orders produce a
// kitchen ticket per queued line, status changes stamp the ticket rows. The
// worker only materializes rows; the kitchen display WS hub picks them up on
// its next poll.
func ProcessOrderEvent(ctx context.Context, db *pgxpool.Pool, body []byte) error {
	if db == nil {
		return nil
	}

	var evt OrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}
	if strings.TrimSpace(evt.Type) == "" {
		// unknown envelope
		return nil
	}

	switch evt.Type {
	case EventOrderPlaced, EventOrderUpdated:
		return upsertKitchenTickets(ctx, db, evt)
	case EventOrderStatusUpdated, EventOrderCancelled:
		return stampKitchenTickets(ctx, db, evt)
	default:
		return nil
	}
}

func upsertKitchenTickets(ctx context.Context, db *pgxpool.Pool, evt OrderEvent) error {
	_, err := db.Exec(ctx, `
		insert into kitchen_tickets (outlet_id, order_id, order_item_id, order_number, menu_name, quantity, notes, status)
		select o.outlet_id, o.id, oi.id, o.order_number, oi.menu_name, oi.quantity, oi.notes, 'QUEUED'
		from orders o
		join order_items oi on oi.order_id = o.id
		where o.id = $1 and o.outlet_id = $2 and oi.status = 'QUEUED'
		on conflict (order_item_id) do update
		set quantity = excluded.quantity, notes = excluded.notes
	`, evt.OrderID, evt.OutletID)
	return err
}

// stampKitchenTickets mirrors the order_items rows onto the tickets. The
// handlers have already transitioned the item statuses by the time the event
// lands, the cancel path included, so the rows are the single source here.
func stampKitchenTickets(ctx context.Context, db *pgxpool.Pool, evt OrderEvent) error {
	_, err := db.Exec(ctx, `
		update kitchen_tickets kt
		set status = oi.status, updated_at = now()
		from order_items oi
		where kt.order_item_id = oi.id and kt.order_id = $1 and kt.outlet_id = $2
	`, evt.OrderID, evt.OutletID)
	return err
}
