package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tmabaso28/pnpscraper/internal/scraper"

	"github.com/stretchr/testify/assert"
)

func testRecord(name, priceValue string) *scraper.ProductRecord {
	return &scraper.ProductRecord{
		Name:         name,
		Price:        "R " + priceValue,
		PriceValue:   priceValue,
		ProductID:    "1001",
		MainCategory: "Food Cupboard",
		SubCategory:  "All Food Cupboard",
		CategoryURL:  "https://www.pnp.co.za/c/pnpbase",
		ScrapedAt:    time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC),
	}
}

func TestSinkWritesReadableArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "products.json")
	s := NewJSONSink(path)

	assert.NoError(t, s.Open())
	assert.NoError(t, s.Append(testRecord("White Bread 700g", "18.99")))
	assert.NoError(t, s.Append(testRecord("Full Cream Milk 2L", "21.99")))
	assert.NoError(t, s.Close())
	assert.Equal(t, 2, s.Count())

	products, err := ReadProducts(path)
	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "White Bread 700g", products[0].Name)
	assert.Equal(t, "R 21.99", products[1].Price)
}

func TestSinkFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	s := NewJSONSink(path)

	assert.NoError(t, s.Open())
	assert.NoError(t, s.Append(testRecord("White Bread 700g", "18.99")))
	assert.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[\n"))
	assert.True(t, strings.HasSuffix(text, "\n]"))
	assert.Contains(t, text, `"name": "White Bread 700g"`)
}

func TestSinkEmptyRunYieldsEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	s := NewJSONSink(path)

	assert.NoError(t, s.Open())
	assert.NoError(t, s.Close())

	products, err := ReadProducts(path)
	assert.NoError(t, err)
	assert.Empty(t, products)
}

func TestSinkOpenDiscardsPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")

	s := NewJSONSink(path)
	assert.NoError(t, s.Open())
	assert.NoError(t, s.Append(testRecord("Stale Record", "9.99")))
	assert.NoError(t, s.Close())

	s = NewJSONSink(path)
	assert.NoError(t, s.Open())
	assert.NoError(t, s.Append(testRecord("Fresh Record", "12.99")))
	assert.NoError(t, s.Close())

	products, err := ReadProducts(path)
	assert.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "Fresh Record", products[0].Name)
}

func TestSinkAppendBeforeOpenFails(t *testing.T) {
	s := NewJSONSink(filepath.Join(t.TempDir(), "products.json"))
	assert.Error(t, s.Append(testRecord("X", "1.00")))
}

func TestSinkDoubleOpenFails(t *testing.T) {
	s := NewJSONSink(filepath.Join(t.TempDir(), "products.json"))
	assert.NoError(t, s.Open())
	assert.Error(t, s.Open())
	assert.NoError(t, s.Close())
}

func TestSinkCloseWithoutOpenIsSafe(t *testing.T) {
	s := NewJSONSink(filepath.Join(t.TempDir(), "products.json"))
	assert.NoError(t, s.Close())
}

func TestReadProductsMissingFile(t *testing.T) {
	_, err := ReadProducts(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
