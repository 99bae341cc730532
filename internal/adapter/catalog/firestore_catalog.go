package catalog

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreCatalog reads product documents from the storefront's products collection.
type FirestoreCatalog struct {
	fs         *firestore.Client
	collection string
}

func NewFirestoreCatalog(fs *firestore.Client, collection string) *FirestoreCatalog {
	if collection == "" {
		collection = "products"
	}
	return &FirestoreCatalog{fs: fs, collection: collection}
}

func (c *FirestoreCatalog) UnitPrice(ctx context.Context, productID, inkType string) (decimal.Decimal, bool, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return decimal.Zero, false, nil
	}
	snap, err := c.fs.Collection(c.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("catalog get %s: %w", id, err)
	}
	p, ok := PriceFor(snap.Data(), inkType)
	return p, ok, nil
}

// PriceFor applies the storefront pricing rule to a product document:
// oneColor uses basePriceOneColor, color uses priceColor, both fall back to price.
// Missing or zero prices count as absent.
func PriceFor(doc map[string]any, inkType string) (decimal.Decimal, bool) {
	field := "basePriceOneColor"
	if inkType == domain.InkColor {
		field = "priceColor"
	}
	for _, k := range []string{field, "price"} {
		if p, ok := toDecimal(doc[k]); ok && p.IsPositive() {
			return p, true
		}
	}
	return decimal.Zero, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

var _ usecase.Catalog = (*FirestoreCatalog)(nil)
