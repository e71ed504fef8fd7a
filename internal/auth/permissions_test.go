package auth

import "testing"

func TestGetPermissionForAPI(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		method   string
		expected StaffPermission
		none     bool
	}{
		{name: "order create", path: "/api/pos/orders", method: "POST", expected: PermOrders},
		{name: "order detail", path: "/api/pos/orders/42", method: "GET", expected: PermOrders},
		{name: "order pay", path: "/api/pos/orders/42/pay", method: "PUT", expected: PermOrders},
		{name: "order refund", path: "/api/pos/orders/42/refund", method: "POST", expected: PermRefunds},
		{name: "payments list", path: "/api/pos/payments", method: "GET", expected: PermPayments},
		{name: "kitchen queue", path: "/api/pos/kitchen/queue", method: "GET", expected: PermKitchen},
		{name: "menu update", path: "/api/pos/menu/9", method: "PUT", expected: PermMenu},
		{name: "reports", path: "/api/pos/reports/profit-loss", method: "GET", expected: PermReports},
		{name: "unknown path", path: "/api/pos/unknown", method: "GET", none: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := GetPermissionForAPI(tc.path, tc.method)
			if tc.none {
				if got != nil {
					t.Fatalf("expected no permission, got %s", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %s, got none", tc.expected)
			}
			if *got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, *got)
			}
		})
	}
}
