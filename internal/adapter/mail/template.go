package mail

import (
	"bytes"
	"html/template"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/shopspring/decimal"
)

var orderTmpl = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background-color: #F26E22; color: white; padding: 24px; text-align: center; }
  .block { background-color: white; padding: 16px; margin: 12px 0; border-radius: 8px; }
  table { width: 100%; border-collapse: collapse; }
  th { background-color: #F26E22; color: white; padding: 10px; text-align: left; }
  td { padding: 8px; border-bottom: 1px solid #eee; }
  .total { background-color: #F26E22; color: white; padding: 12px 16px; font-weight: bold; text-align: right; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>Payment confirmed</h1><p>New order received</p></div>
  <div class="block">
    <h3>Customer</h3>
    <p><strong>Name:</strong> {{.Customer.FullName}}</p>
    <p><strong>Email:</strong> {{.Customer.Email}}</p>
    <p><strong>Phone:</strong> {{.Customer.Phone}}</p>
    <p><strong>Address:</strong> {{.Address}}</p>
    <p><strong>City:</strong> {{.City}}</p>
    {{if .Customer.Notes}}<p><strong>Notes:</strong> {{.Customer.Notes}}</p>{{end}}
  </div>
  <div class="block">
    <h3>Order</h3>
    <p><strong>Reference:</strong> {{.Reference}}</p>
    <p><strong>Date:</strong> {{.Date}}</p>
    <p><strong>Status:</strong> PAID</p>
    {{if .HasAttachment}}<p><strong>Logo:</strong> attached</p>{{end}}
  </div>
  <table>
    <thead><tr><th>Product</th><th>Quantity</th><th>Unit price</th><th>Subtotal</th></tr></thead>
    <tbody>
    {{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>${{.UnitPrice}}</td><td>${{.Subtotal}}</td></tr>
    {{end}}</tbody>
  </table>
  <div class="total">TOTAL: ${{.Total}} {{.Currency}}</div>
  <p>Please process this order and contact the customer to arrange delivery.</p>
</div>
</body>
</html>`))

type lineView struct {
	Name      string
	Quantity  string
	UnitPrice string
	Subtotal  string
}

type orderView struct {
	Reference     string
	Customer      domain.Customer
	Address       string
	City          string
	Date          string
	Lines         []lineView
	Total         string
	Currency      string
	HasAttachment bool
}

func renderOrder(d domain.OrderDraft, currency string, hasAttachment bool, at time.Time) (string, error) {
	v := orderView{
		Reference:     d.Reference,
		Customer:      d.Customer,
		Address:       orNA(d.Customer.Address),
		City:          orNA(d.Customer.City),
		Date:          at.Format("2006-01-02 15:04 MST"),
		Total:         usecase.FormatAmount(d.Total),
		Currency:      currency,
		HasAttachment: hasAttachment,
	}
	for _, l := range d.Items {
		name := l.Name
		if name == "" {
			name = l.ProductID
		}
		v.Lines = append(v.Lines, lineView{
			Name:      name,
			Quantity:  usecase.FormatAmount(decimal.NewFromInt(l.Quantity)),
			UnitPrice: usecase.FormatAmount(l.UnitPrice),
			Subtotal:  usecase.FormatAmount(l.Subtotal()),
		})
	}
	var buf bytes.Buffer
	if err := orderTmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func plainOrder(d domain.OrderDraft, currency string) string {
	return usecase.OrderSummary(d, currency)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
