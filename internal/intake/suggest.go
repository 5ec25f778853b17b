package intake

import (
	"strings"

	"github.com/timosh-design/blankstock/internal/catalog"
	"github.com/timosh-design/blankstock/internal/mapping"
)

// Address tags come through the order platform under a handful of
// Ukrainian names; anything else on the order (leashes, engraving
// add-ons) never consumes a blank.
var addressTagKeywords = []string{"адресник", "жетон", "медальон"}

// isAddressTag reports whether the product line consumes a blank at all.
func isAddressTag(productName string) bool {
	name := strings.ToLower(strings.TrimSpace(productName))
	for _, keyword := range addressTagKeywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}

var typeKeywords = []struct {
	keyword string
	t       catalog.BlankType
}{
	{"кістка", catalog.TypeBone},
	{"bone", catalog.TypeBone},
	{"бублик", catalog.TypeRing},
	{"ring", catalog.TypeRing},
	{"круглий", catalog.TypeRound},
	{"round", catalog.TypeRound},
	{"квітка", catalog.TypeFlower},
	{"хмарка", catalog.TypeCloud},
	{"серце", catalog.TypeHeart},
}

// suggestSKU guesses the most likely SKU for an unmapped line from
// keyword heuristics on the name and properties. Best effort only; an
// empty result means no guess.
func suggestSKU(line OrderLine) string {
	name := strings.ToLower(line.ProductName)
	props := strings.ToLower(flattenProps(line.Properties))

	var blankType catalog.BlankType
	for _, candidate := range typeKeywords {
		if strings.Contains(name, candidate.keyword) || strings.Contains(props, candidate.keyword) {
			blankType = candidate.t
			break
		}
	}
	if blankType == "" {
		if strings.Contains(name, "фігурний") {
			blankType = catalog.TypeHeart
		} else {
			return ""
		}
	}

	size := 25
	sizeStr := mapping.PropertyValue(line.Properties, "size")
	switch {
	case strings.Contains(sizeStr, "20"):
		size = 20
	case strings.Contains(sizeStr, "30"):
		size = 30
	}

	color := catalog.ColorGold
	colorStr := strings.ToLower(mapping.PropertyValue(line.Properties, "color"))
	if strings.Contains(colorStr, "срібло") || strings.Contains(colorStr, "silver") {
		color = catalog.ColorSilver
	}

	return catalog.BuildCode(blankType, size, color)
}

func flattenProps(props map[string]string) string {
	var sb strings.Builder
	for k, v := range props {
		sb.WriteString(k)
		sb.WriteByte(' ')
		sb.WriteString(v)
		sb.WriteByte(' ')
	}
	return sb.String()
}
