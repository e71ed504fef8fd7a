package handlers

import (
	"context"
	"fmt"
	"time"

	"dinepos-order-service/internal/billing"
	"dinepos-order-service/internal/queue"
	"dinepos-order-service/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	orderStatusOpen      = "OPEN"
	orderStatusCompleted = "COMPLETED"
	orderStatusCancelled = "CANCELLED"
)

type outletBillingConfig struct {
	ID                       int64
	Code                     string
	Name                     string
	Currency                 string
	Timezone                 string
	TaxEnabled               bool
	TaxRatePercent           float64
	ServiceChargeEnabled     bool
	ServiceChargeRatePercent float64
	RefundPinHash            *string
}

// loadOutletBilling resolves the outlet billing settings for a user. Rate
// resolution order: per-user override on the outlet link, then the outlet
// setting, then zero.
func (h *Handler) loadOutletBilling(ctx context.Context, outletID int64, userID int64) (outletBillingConfig, error) {
	var (
		cfg             outletBillingConfig
		taxRate         pgtype.Numeric
		serviceRate     pgtype.Numeric
		taxOverride     pgtype.Numeric
		serviceOverride pgtype.Numeric
		refundPinHash   pgtype.Text
	)

	err := h.DB.QueryRow(ctx, `
		select o.id, o.code, o.name, o.currency, o.timezone,
		       o.enable_tax, o.tax_rate_percent,
		       o.enable_service_charge, o.service_charge_rate_percent,
		       o.refund_pin_hash,
		       ou.tax_rate_override, ou.service_charge_rate_override
		from outlets o
		join outlet_users ou on ou.outlet_id = o.id and ou.user_id = $2
		where o.id = $1
	`, outletID, userID).Scan(
		&cfg.ID,
		&cfg.Code,
		&cfg.Name,
		&cfg.Currency,
		&cfg.Timezone,
		&cfg.TaxEnabled,
		&taxRate,
		&cfg.ServiceChargeEnabled,
		&serviceRate,
		&refundPinHash,
		&taxOverride,
		&serviceOverride,
	)
	if err != nil {
		return outletBillingConfig{}, err
	}

	cfg.TaxRatePercent = billing.ResolveRate(utils.OptionalNumeric(taxOverride), utils.NumericToFloat64(taxRate))
	cfg.ServiceChargeRatePercent = billing.ResolveRate(utils.OptionalNumeric(serviceOverride), utils.NumericToFloat64(serviceRate))
	if refundPinHash.Valid {
		cfg.RefundPinHash = &refundPinHash.String
	}
	return cfg, nil
}

type orderRow struct {
	ID              int64
	OutletID        int64
	OrderNumber     string
	OrderType       string
	TableID         *int64
	CustomerID      *int64
	Status          string
	PaymentStatus   string
	PaymentMode     *string
	DiscountPercent float64
	TaxEnabled      bool
	SvcEnabled      bool
	TotalAmount     float64
	PaidAmount      float64
	DueAmount       float64
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

const orderColumns = `id, outlet_id, order_number, order_type, table_id, customer_id,
	status, payment_status, payment_mode, discount_percent,
	tax_enabled, service_charge_enabled,
	total_amount, paid_amount, due_amount, notes,
	created_at, updated_at, completed_at`

func scanOrderRow(scanned pgx.Row) (orderRow, error) {
	var (
		row         orderRow
		tableID     pgtype.Int8
		customerID  pgtype.Int8
		paymentMode pgtype.Text
		discountPct pgtype.Numeric
		total       pgtype.Numeric
		paid        pgtype.Numeric
		due         pgtype.Numeric
		notes       pgtype.Text
		completedAt pgtype.Timestamptz
	)

	err := scanned.Scan(
		&row.ID, &row.OutletID, &row.OrderNumber, &row.OrderType, &tableID, &customerID,
		&row.Status, &row.PaymentStatus, &paymentMode, &discountPct,
		&row.TaxEnabled, &row.SvcEnabled,
		&total, &paid, &due, &notes,
		&row.CreatedAt, &row.UpdatedAt, &completedAt,
	)
	if err != nil {
		return orderRow{}, err
	}

	if tableID.Valid {
		row.TableID = &tableID.Int64
	}
	if customerID.Valid {
		row.CustomerID = &customerID.Int64
	}
	if paymentMode.Valid {
		row.PaymentMode = &paymentMode.String
	}
	if notes.Valid {
		row.Notes = &notes.String
	}
	if completedAt.Valid {
		row.CompletedAt = &completedAt.Time
	}
	row.DiscountPercent = utils.NumericToFloat64(discountPct)
	row.TotalAmount = utils.NumericToFloat64(total)
	row.PaidAmount = utils.NumericToFloat64(paid)
	row.DueAmount = utils.NumericToFloat64(due)
	return row, nil
}

func (h *Handler) loadOrder(ctx context.Context, outletID int64, orderID int64) (orderRow, error) {
	return scanOrderRow(h.DB.QueryRow(ctx, `
		select `+orderColumns+`
		from orders
		where id = $1 and outlet_id = $2
	`, orderID, outletID))
}

// lockOrder re-reads the order through the caller's transaction with a row
// lock so concurrent settlements against the same order serialize.
func lockOrder(ctx context.Context, tx orderTx, outletID int64, orderID int64) (orderRow, error) {
	return scanOrderRow(tx.QueryRow(ctx, `
		select `+orderColumns+`
		from orders
		where id = $1 and outlet_id = $2
		for update
	`, orderID, outletID))
}

func (h *Handler) loadOrderLines(ctx context.Context, orderID int64) ([]billing.LineItem, []OrderItemPayload, error) {
	rows, err := h.DB.Query(ctx, `
		select id, line_key, menu_item_id, menu_name, unit_price, quantity, status, notes
		from order_items
		where order_id = $1
		order by id asc
	`, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var lines []billing.LineItem
	var payloads []OrderItemPayload
	for rows.Next() {
		var (
			id        int64
			lineKey   string
			menuID    int64
			menuName  string
			unitPrice pgtype.Numeric
			quantity  int32
			status    string
			notes     pgtype.Text
		)
		if err := rows.Scan(&id, &lineKey, &menuID, &menuName, &unitPrice, &quantity, &status, &notes); err != nil {
			return nil, nil, err
		}

		line := billing.LineItem{
			ID:         lineKey,
			MenuItemID: menuID,
			MenuName:   menuName,
			UnitPrice:  utils.NumericToFloat64(unitPrice),
			Quantity:   quantity,
			Status:     billing.ItemStatus(status),
		}
		if notes.Valid {
			line.Notes = notes.String
		}
		lines = append(lines, line)

		payload := OrderItemPayload{
			ID:         id,
			LineKey:    lineKey,
			MenuItemID: menuID,
			MenuName:   menuName,
			UnitPrice:  line.UnitPrice,
			Quantity:   quantity,
			Status:     status,
		}
		if notes.Valid {
			payload.Notes = &notes.String
		}
		payloads = append(payloads, payload)
	}
	return lines, payloads, rows.Err()
}

// loadLinesTx reads the order lines through the caller's transaction so
// uncommitted writes are visible.
func loadLinesTx(ctx context.Context, tx orderTx, orderID int64) ([]billing.LineItem, error) {
	rows, err := tx.Query(ctx, `
		select line_key, menu_item_id, menu_name, unit_price, quantity, status, notes
		from order_items
		where order_id = $1
		order by id asc
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []billing.LineItem
	for rows.Next() {
		var (
			line      billing.LineItem
			unitPrice pgtype.Numeric
			status    string
			notes     pgtype.Text
		)
		if err := rows.Scan(&line.ID, &line.MenuItemID, &line.MenuName, &unitPrice, &line.Quantity, &status, &notes); err != nil {
			return nil, err
		}
		line.UnitPrice = utils.NumericToFloat64(unitPrice)
		line.Status = billing.ItemStatus(status)
		if notes.Valid {
			line.Notes = notes.String
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// recomputeTotals runs the billing pipeline against the order's current lines
// and billing flags, then persists the derived fields.
func (h *Handler) recomputeTotals(ctx context.Context, tx orderTx, order orderRow, cfg outletBillingConfig, lines []billing.LineItem) (billing.Totals, error) {
	billCtx := billing.Context{
		DiscountPercent:          order.DiscountPercent,
		TaxEnabled:               order.TaxEnabled,
		TaxRatePercent:           cfg.TaxRatePercent,
		ServiceChargeEnabled:     order.SvcEnabled,
		ServiceChargeRatePercent: cfg.ServiceChargeRatePercent,
		PriorPaidAmount:          order.PaidAmount,
	}

	totals, err := billing.Compute(lines, billCtx)
	if err != nil {
		return billing.Totals{}, err
	}

	_, err = tx.Exec(ctx, `
		update orders
		set subtotal = $1, discount_percent = $2, discount_amount = $3,
		    tax_rate = $4, tax_amount = $5,
		    service_charge_rate = $6, service_charge_amount = $7,
		    total_amount = $8, due_amount = $9, updated_at = now()
		where id = $10
	`, totals.Subtotal, totals.DiscountPercent, totals.DiscountAmount,
		totals.TaxRate, totals.TaxAmount,
		totals.ServiceChargeRate, totals.ServiceChargeAmount,
		totals.GrandTotal, totals.DueAmount, order.ID)
	if err != nil {
		return billing.Totals{}, err
	}
	return totals, nil
}

type orderTx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (h *Handler) withOrderTx(ctx context.Context, fn func(ctx context.Context, tx orderTx) error) error {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// generateOrderNumber produces POS-YYYYMMDD-#### scoped per outlet per day.
func (h *Handler) generateOrderNumber(ctx context.Context, tx orderTx, outletID int64, now time.Time) (string, error) {
	day := now.Format("20060102")
	prefix := fmt.Sprintf("POS-%s-", day)

	var sequence int64
	err := tx.QueryRow(ctx, `
		select count(*) + 1
		from orders
		where outlet_id = $1 and order_number like $2
	`, outletID, prefix+"%").Scan(&sequence)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, sequence), nil
}

func (h *Handler) publishOrderEvent(ctx context.Context, eventType string, order orderRow) {
	// Poke the realtime hubs regardless of broker availability.
	outletKey := fmt.Sprint(order.OutletID)
	if _, err := h.DB.Exec(ctx, `select pg_notify('pos_order_updates', $1)`, outletKey); err != nil {
		h.Logger.Warn("order notify failed", zapError(err))
	}
	if _, err := h.DB.Exec(ctx, `select pg_notify('pos_kitchen_updates', $1)`, outletKey); err != nil {
		h.Logger.Warn("kitchen notify failed", zapError(err))
	}

	if h.Queue == nil {
		return
	}
	evt := queue.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OutletID:    order.OutletID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
	}
	if err := queue.PublishOrderEvent(ctx, h.Queue, evt); err != nil {
		h.Logger.Warn("order event publish failed", zapError(err))
	}
}
