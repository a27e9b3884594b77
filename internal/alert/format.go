package alert

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatINR renders an amount in rupees with Indian digit grouping
// (₹1,00,000 or ₹12,34,567.50). Paise are omitted when zero.
func FormatINR(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	whole, paise, _ := strings.Cut(d.StringFixed(2), ".")
	out := sign + "₹" + groupIndian(whole)
	if paise != "00" {
		out += "." + paise
	}
	return out
}

// groupIndian groups the last three digits, then pairs
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
