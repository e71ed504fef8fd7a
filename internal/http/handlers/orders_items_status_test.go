package handlers

import "testing"

func TestItemTransitionAllowed(t *testing.T) {
	cases := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{name: "queued to preparing", from: "QUEUED", to: "PREPARING", allowed: true},
		{name: "preparing to ready", from: "PREPARING", to: "READY", allowed: true},
		{name: "ready to served", from: "READY", to: "SERVED", allowed: true},
		{name: "queued to cancelled", from: "QUEUED", to: "CANCELLED", allowed: true},
		{name: "preparing to cancelled", from: "PREPARING", to: "CANCELLED", allowed: true},
		{name: "ready to cancelled", from: "READY", to: "CANCELLED", allowed: true},
		{name: "queued skips to ready", from: "QUEUED", to: "READY", allowed: false},
		{name: "queued skips to served", from: "QUEUED", to: "SERVED", allowed: false},
		{name: "served is terminal", from: "SERVED", to: "CANCELLED", allowed: false},
		{name: "cancelled is terminal", from: "CANCELLED", to: "QUEUED", allowed: false},
		{name: "no backwards move", from: "READY", to: "PREPARING", allowed: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := itemTransitionAllowed(tc.from, tc.to); got != tc.allowed {
				t.Fatalf("expected %v for %s -> %s, got %v", tc.allowed, tc.from, tc.to, got)
			}
		})
	}
}
