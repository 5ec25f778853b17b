package mapping

import (
	"errors"
	"strings"
	"time"
)

// Rule associates an order line's descriptive attributes with a SKU.
// Empty SizeProperty or ColorProperty matches any value. RowOrder is the
// first-seen position of the rule in the rule store and breaks priority
// ties deterministically.
type Rule struct {
	ID            int64     `json:"id"`
	ProductName   string    `json:"product_name"`
	SizeProperty  string    `json:"size_property"`
	ColorProperty string    `json:"color_property"`
	SKU           string    `json:"sku"`
	QtyPerUnit    int       `json:"qty_per_unit"`
	Priority      int       `json:"priority"`
	Active        bool      `json:"active"`
	RowOrder      int       `json:"row_order"`
	CreatedAt     time.Time `json:"created_at"`
}

// Line is the resolver's view of one order line.
type Line struct {
	ProductName string
	Properties  map[string]string
}

// ErrNoMatch indicates no active rule matches the line.
var ErrNoMatch = errors.New("mapping: no rule matches")

// Property keys arrive free-text from the order platform and vary by
// regional spelling. The synonym table maps each canonical key to the
// accepted spellings, checked in order.
var propertySynonyms = map[string][]string{
	"size":  {"Розмір", "Размер", "Форма", "size"},
	"color": {"Колір", "Цвет", "color", "metal_color"},
}

// PropertyValue extracts the canonical property from a free-text bag,
// tolerating synonymous key spellings. Keys compare case-insensitively
// after trimming.
func PropertyValue(props map[string]string, canonical string) string {
	synonyms, ok := propertySynonyms[canonical]
	if !ok {
		return ""
	}
	for _, key := range synonyms {
		for k, v := range props {
			if strings.EqualFold(strings.TrimSpace(k), key) {
				if trimmed := strings.TrimSpace(v); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
