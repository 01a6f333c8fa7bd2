package checkout

import "strings"

// OrderNumber is the short human-facing reference shown on the payment
// landing page: the first 8 characters of the order id, uppercased.
func OrderNumber(orderID string) string {
	if len(orderID) < 8 {
		return strings.ToUpper(orderID)
	}
	return strings.ToUpper(orderID[:8])
}
