package usecase

import (
	"fmt"
	"net/url"
	"strings"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/shopspring/decimal"
)

const whatsAppBase = "https://wa.me/"

// OrderSummary is the plain-text order digest used for the WhatsApp deep link.
func OrderSummary(d domain.OrderDraft, currency string) string {
	var b strings.Builder
	b.WriteString("*NEW CONFIRMED ORDER*\n\n")
	fmt.Fprintf(&b, "Reference: %s\n", d.Reference)
	fmt.Fprintf(&b, "Total: $%s %s\n\n", FormatAmount(d.Total), currency)

	b.WriteString("*Customer*\n")
	fmt.Fprintf(&b, "Name: %s\n", orNA(d.Customer.FullName))
	fmt.Fprintf(&b, "Email: %s\n", orNA(d.Customer.Email))
	fmt.Fprintf(&b, "Phone: %s\n\n", orNA(d.Customer.Phone))

	b.WriteString("*Products*\n")
	for _, l := range d.Items {
		fmt.Fprintf(&b, "• %s - %s units - $%s\n", l.Name, FormatAmount(decimal.NewFromInt(l.Quantity)), FormatAmount(l.UnitPrice))
	}

	addr := d.Customer.Address
	if d.Customer.City != "" {
		if addr != "" {
			addr += ", "
		}
		addr += d.Customer.City
	}
	fmt.Fprintf(&b, "\nAddress: %s\n", orNA(addr))
	if d.Customer.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", d.Customer.Notes)
	}
	b.WriteString("\nPayment confirmed")
	return b.String()
}

// WhatsAppLink builds a wa.me deep link prefilled with the order summary.
// It returns "" when no number is configured.
func WhatsAppLink(number string, d domain.OrderDraft, currency string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(OrderSummary(d, currency)), "+", "%20")
	return whatsAppBase + digits + "?text=" + text
}

// FormatAmount renders an amount with thousands separators and at most two decimals.
func FormatAmount(v decimal.Decimal) string {
	s := v.Round(2).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	res := string(out)
	if frac != "" {
		res += "." + frac
	}
	if neg {
		res = "-" + res
	}
	return res
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
