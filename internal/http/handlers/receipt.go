package handlers

import (
	"fmt"
	"net/http"

	"dinepos-order-service/internal/middleware"
	"dinepos-order-service/pkg/response"

	"github.com/phpdave11/gofpdf"
)

// OrderReceipt renders the printable receipt for an order as a PDF sized for
// an 80mm thermal roll.
func (h *Handler) OrderReceipt(w http.ResponseWriter, r *http.Request) {
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

	cfg, err := h.loadOutletBilling(ctx, *authCtx.OutletID, authCtx.UserID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Outlet not found")
		return
	}

	order, err := h.loadOrderPayload(ctx, cfg.ID, orderID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	currency := cfg.Currency
	if currency == "" {
		currency = h.Config.DefaultCurrency
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: 80, Ht: 200},
	})
	pdf.SetMargins(4, 6, 4)
	pdf.SetAutoPageBreak(true, 6)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(72, 5, cfg.Name, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(72, 3.5, order.OrderNumber, "", 1, "C", false, 0, "")
	pdf.CellFormat(72, 3.5, order.CreatedAt.Format("02 Jan 2006 15:04"), "", 1, "C", false, 0, "")
	if order.Table != nil {
		pdf.CellFormat(72, 3.5, "Table "+order.Table.Number, "", 1, "C", false, 0, "")
	}
	pdf.Ln(1.5)

	line := func(left, right string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 7.5)
		pdf.CellFormat(48, 4, left, "", 0, "L", false, 0, "")
		pdf.CellFormat(24, 4, right, "", 1, "R", false, 0, "")
	}
	money := func(v float64) string {
		return fmt.Sprintf("%s %.2f", currency, v)
	}

	pdf.SetFont("Helvetica", "", 7.5)
	for _, item := range order.Items {
		if item.Status == "CANCELLED" {
			continue
		}
		line(fmt.Sprintf("%s x%d", item.MenuName, item.Quantity), money(item.UnitPrice*float64(item.Quantity)), false)
	}
	pdf.Ln(1)

	line("Subtotal", money(order.Subtotal), false)
	if order.DiscountAmount > 0 {
		line(fmt.Sprintf("Discount (%.0f%%)", order.DiscountPercent), "-"+money(order.DiscountAmount), false)
	}
	if order.TaxAmount > 0 {
		line(fmt.Sprintf("Tax (%.2f%%)", order.TaxRate), money(order.TaxAmount), false)
	}
	if order.ServiceChargeAmount > 0 {
		line(fmt.Sprintf("Service charge (%.2f%%)", order.ServiceChargeRate), money(order.ServiceChargeAmount), false)
	}
	line("Total", money(order.TotalAmount), true)
	if order.PaidAmount > 0 {
		line("Paid", money(order.PaidAmount), false)
	}
	if order.DueAmount > 0 {
		line("Due", money(order.DueAmount), true)
	}

	if footer := h.Config.ReceiptFooterText; footer != "" {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.MultiCell(72, 3.5, footer, "", "C", false)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", order.OrderNumber+".pdf"))
	if err := pdf.Output(w); err != nil {
		h.Logger.Error("receipt render failed", zapError(err))
	}
}
