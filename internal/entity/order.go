package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InkOneColor = "oneColor"
	InkColor    = "color"

	DefaultPaperType = "paper1"
)

type CartLine struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	InkType   string          `json:"inkType,omitempty"`
	PaperType string          `json:"paperType,omitempty"`
}

// Subtotal is UnitPrice × Quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Normalize fills the variant tags with their defaults.
func (l CartLine) Normalize() CartLine {
	l.ProductID = strings.TrimSpace(l.ProductID)
	l.Name = strings.TrimSpace(l.Name)
	if l.InkType == "" {
		l.InkType = InkOneColor
	}
	if l.PaperType == "" {
		l.PaperType = DefaultPaperType
	}
	return l
}

func (l CartLine) Validate(lotSize int64) error {
	if l.Name == "" && l.ProductID == "" {
		return NewValidationError("items", "every line needs a product id or name")
	}
	if l.Quantity <= 0 {
		return NewValidationError("items", "quantity must be positive")
	}
	if lotSize > 1 && l.Quantity%lotSize != 0 {
		return NewValidationError("items", "quantity must be a multiple of the lot size")
	}
	if l.UnitPrice.IsNegative() {
		return NewValidationError("items", "unit price must not be negative")
	}
	if l.InkType != InkOneColor && l.InkType != InkColor {
		return NewValidationError("items", "unknown ink type "+l.InkType)
	}
	return nil
}

type Customer struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Notes    string `json:"notes,omitempty"`
}

func (c Customer) Validate() error {
	switch {
	case strings.TrimSpace(c.FullName) == "":
		return NewValidationError("fullName", "required")
	case strings.TrimSpace(c.Email) == "":
		return NewValidationError("email", "required")
	case !strings.Contains(c.Email, "@"):
		return NewValidationError("email", "invalid address")
	case strings.TrimSpace(c.Phone) == "":
		return NewValidationError("phone", "required")
	}
	return nil
}

// OrderDraft is the cart snapshot taken when checkout is submitted.
type OrderDraft struct {
	Reference string          `json:"reference"`
	Items     []CartLine      `json:"items"`
	Customer  Customer        `json:"customer"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"timestamp"`
}

// ComputeTotal sums UnitPrice × Quantity over lines.
func ComputeTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// NewOrderDraft snapshots lines and customer. The total is always recomputed.
func NewOrderDraft(ref string, lines []CartLine, customer Customer, now time.Time) OrderDraft {
	items := make([]CartLine, len(lines))
	copy(items, lines)
	return OrderDraft{
		Reference: ref,
		Items:     items,
		Customer:  customer,
		Total:     ComputeTotal(items),
		CreatedAt: now.UTC(),
	}
}

func (d OrderDraft) Validate(lotSize int64) error {
	if strings.TrimSpace(d.Reference) == "" {
		return NewValidationError("reference", "required")
	}
	if len(d.Items) == 0 {
		return NewValidationError("items", "cart is empty")
	}
	for _, l := range d.Items {
		if err := l.Validate(lotSize); err != nil {
			return err
		}
	}
	return d.Customer.Validate()
}
