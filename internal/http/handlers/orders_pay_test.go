package handlers

import (
	"errors"
	"net/http"
	"testing"

	"dinepos-order-service/internal/billing"

	"github.com/jackc/pgx/v5"
)

func TestDuplicatePaymentCheck(t *testing.T) {
	if err := duplicatePaymentCheck(nil); err != errDuplicatePayment {
		t.Fatalf("expected duplicate payment error for a found row, got %v", err)
	}
	if err := duplicatePaymentCheck(pgx.ErrNoRows); err != nil {
		t.Fatalf("expected nil for no rows, got %v", err)
	}
	dbErr := errors.New("connection reset")
	if err := duplicatePaymentCheck(dbErr); !errors.Is(err, dbErr) {
		t.Fatalf("expected the query error back, got %v", err)
	}
}

func TestCheckSettlementState(t *testing.T) {
	cases := []struct {
		name   string
		status string
		flow   billing.SettlementFlow
		code   string
	}{
		{name: "checkout on open order", status: "OPEN", flow: billing.FlowCheckout},
		{name: "checkout on completed order", status: "COMPLETED", flow: billing.FlowCheckout, code: "ORDER_NOT_OPEN"},
		{name: "checkout on cancelled order", status: "CANCELLED", flow: billing.FlowCheckout, code: "ORDER_CANCELLED"},
		{name: "due settlement on completed order", status: "COMPLETED", flow: billing.FlowSettleDue},
		{name: "due settlement on cancelled order", status: "CANCELLED", flow: billing.FlowSettleDue, code: "ORDER_CANCELLED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			be := checkSettlementState(tc.status, tc.flow)
			if tc.code == "" {
				if be != nil {
					t.Fatalf("expected no error, got %s", be.Code)
				}
				return
			}
			if be == nil {
				t.Fatalf("expected %s, got nil", tc.code)
			}
			if string(be.Code) != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, be.Code)
			}
			if be.StatusCode != http.StatusConflict {
				t.Fatalf("expected 409, got %d", be.StatusCode)
			}
		})
	}
}
