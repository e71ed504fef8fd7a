package handlers

import (
	"testing"
	"time"
)

func TestBuildProfitLoss(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	revenue := map[string]float64{
		"CASH": 1200.50,
		"CARD": 830.25,
	}
	report := buildProfitLoss(from, to, revenue, 50.75, 600.00, 42, nil)

	if report.GrossRevenue != 2030.75 {
		t.Fatalf("expected gross 2030.75, got %v", report.GrossRevenue)
	}
	if report.NetRevenue != 1980.00 {
		t.Fatalf("expected net 1980.00, got %v", report.NetRevenue)
	}
	if report.NetProfit != 1380.00 {
		t.Fatalf("expected profit 1380.00, got %v", report.NetProfit)
	}
	if report.OrderCount != 42 {
		t.Fatalf("expected 42 orders, got %d", report.OrderCount)
	}
	if report.From != "2026-08-01" || report.To != "2026-08-31" {
		t.Fatalf("unexpected range %s..%s", report.From, report.To)
	}
}

func TestBuildProfitLossEmpty(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	report := buildProfitLoss(from, from, map[string]float64{}, 0, 0, 0, nil)

	if report.GrossRevenue != 0 || report.NetRevenue != 0 || report.NetProfit != 0 {
		t.Fatalf("expected zeroed report, got %+v", report)
	}
}

func TestBuildProfitLossExpensesExceedRevenue(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	report := buildProfitLoss(from, from, map[string]float64{"CASH": 100}, 0, 250, 3, nil)

	if report.NetProfit != -150 {
		t.Fatalf("expected loss of 150, got %v", report.NetProfit)
	}
}
