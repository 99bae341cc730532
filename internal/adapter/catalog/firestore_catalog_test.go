package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceFor(t *testing.T) {
	doc := map[string]any{"price": int64(90), "basePriceOneColor": float64(100.5), "priceColor": "120"}

	p, ok := PriceFor(doc, "oneColor")
	assert.True(t, ok)
	assert.Equal(t, "100.5", p.String())

	p, ok = PriceFor(doc, "color")
	assert.True(t, ok)
	assert.Equal(t, "120", p.String())
}

func TestPriceFor_FallsBackToPrice(t *testing.T) {
	p, ok := PriceFor(map[string]any{"price": int64(90), "priceColor": int64(0)}, "color")
	assert.True(t, ok)
	assert.Equal(t, "90", p.String())

	p, ok = PriceFor(map[string]any{"price": int64(90)}, "oneColor")
	assert.True(t, ok)
	assert.Equal(t, "90", p.String())
}

func TestPriceFor_Absent(t *testing.T) {
	_, ok := PriceFor(map[string]any{"name": "Caja"}, "oneColor")
	assert.False(t, ok)

	_, ok = PriceFor(map[string]any{"price": "n/a"}, "oneColor")
	assert.False(t, ok)
}
