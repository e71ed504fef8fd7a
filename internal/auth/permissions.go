package auth

import "strings"

type StaffPermission string

const (
	PermOrders    StaffPermission = "orders"
	PermPayments  StaffPermission = "payments"
	PermRefunds   StaffPermission = "refunds"
	PermMenu      StaffPermission = "menu"
	PermTables    StaffPermission = "tables"
	PermCustomers StaffPermission = "customers"
	PermExpenses  StaffPermission = "expenses"
	PermReports   StaffPermission = "reports"
	PermKitchen   StaffPermission = "kitchen"
)

var apiPermissionMap = map[string]StaffPermission{
	"/api/pos/orders":    PermOrders,
	"/api/pos/payments":  PermPayments,
	"/api/pos/menu":      PermMenu,
	"/api/pos/tables":    PermTables,
	"/api/pos/customers": PermCustomers,
	"/api/pos/expenses":  PermExpenses,
	"/api/pos/reports":   PermReports,
	"/api/pos/kitchen":   PermKitchen,
}

// GetPermissionForAPI maps a request to the staff permission guarding it,
// preferring longer path prefixes and method-specific entries. The refund
// endpoint carries an order id in the path, so it is matched on its suffix.
func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	if method == "POST" && strings.HasPrefix(path, "/api/pos/orders/") && strings.HasSuffix(path, "/refund") {
		perm := PermRefunds
		return &perm
	}

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyMethod := ""
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod = strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}
