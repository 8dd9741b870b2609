package scraper

import (
	"strconv"
	"strings"
)

// placeholderNames are substrings that mark a name as a template artifact
// rather than a real product. Matched case-insensitively.
var placeholderNames = []string{
	"unknown",
	"placeholder",
	"loading",
	"undefined",
	"null",
}

// maxPlausiblePrice is the upper bound of the sane price range in Rand.
const maxPlausiblePrice = 10000

// CleanText collapses internal whitespace runs to a single space and trims
// the ends.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Clean normalizes all string fields of a record in place and derives the
// display price from the raw price value. Cleaning is idempotent.
func Clean(record *ProductRecord) {
	if record == nil {
		return
	}

	record.Name = CleanText(record.Name)
	record.PriceValue = CleanText(record.PriceValue)
	record.OriginalPrice = CleanText(record.OriginalPrice)
	record.ProductURL = CleanText(record.ProductURL)
	record.ImageURL = CleanText(record.ImageURL)
	record.ProductID = CleanText(record.ProductID)
	record.MainCategory = CleanText(record.MainCategory)
	record.SubCategory = CleanText(record.SubCategory)
	record.CategoryURL = CleanText(record.CategoryURL)

	for key, value := range record.DataAttributes {
		record.DataAttributes[key] = CleanText(value)
	}

	// The literal zero value means the price never loaded
	if record.PriceValue != "" && record.PriceValue != "0.00" {
		record.Price = currencyMarker + " " + record.PriceValue
	} else {
		record.Price = ""
	}
}

// IsValid reports whether a cleaned record passes the plausibility checks:
// a non-placeholder name and a price inside (0, 10000].
func IsValid(record *ProductRecord) bool {
	if record == nil {
		return false
	}
	if record.Name == "" {
		return false
	}

	lower := strings.ToLower(record.Name)
	for _, placeholder := range placeholderNames {
		if strings.Contains(lower, placeholder) {
			return false
		}
	}

	price, err := strconv.ParseFloat(record.PriceValue, 64)
	if err != nil {
		return false
	}
	if price <= 0 || price > maxPlausiblePrice {
		return false
	}

	return true
}

// IsDuplicate reports whether the candidate's name case-insensitively equals
// any already-emitted record's name. Duplicates are dropped silently.
func IsDuplicate(candidate *ProductRecord, emitted []*ProductRecord) bool {
	name := strings.ToLower(candidate.Name)
	for _, prev := range emitted {
		if strings.ToLower(prev.Name) == name {
			return true
		}
	}
	return false
}
