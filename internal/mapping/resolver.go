package mapping

// Resolve selects the best active rule whose (name, size, color) triple
// fully matches the line. A rule with an empty size or color property
// accepts any value. The highest priority wins; ties break on the lowest
// row order, so operators see first-listed-wins behavior rather than an
// accident of iteration order.
//
// Resolve is a pure function over the supplied rule set; caching and
// refresh of the rules is the caller's concern.
func Resolve(rules []Rule, line Line) (Rule, error) {
	name := normalize(line.ProductName)
	size := normalize(PropertyValue(line.Properties, "size"))
	color := normalize(PropertyValue(line.Properties, "color"))

	var best Rule
	found := false
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if normalize(rule.ProductName) != name {
			continue
		}
		ruleSize := normalize(rule.SizeProperty)
		if ruleSize != "" && ruleSize != size {
			continue
		}
		ruleColor := normalize(rule.ColorProperty)
		if ruleColor != "" && ruleColor != color {
			continue
		}
		if !found || better(rule, best) {
			best = rule
			found = true
		}
	}
	if !found {
		return Rule{}, ErrNoMatch
	}
	return best, nil
}

// ResolveByName is the degraded name-only match. It ignores size and
// color entirely, which risks attributing consumption to the wrong
// variant; the intake layer decides whether to use it and must log the
// fallback distinctly.
func ResolveByName(rules []Rule, productName string) (Rule, error) {
	name := normalize(productName)
	var best Rule
	found := false
	for _, rule := range rules {
		if !rule.Active || normalize(rule.ProductName) != name {
			continue
		}
		if !found || better(rule, best) {
			best = rule
			found = true
		}
	}
	if !found {
		return Rule{}, ErrNoMatch
	}
	return best, nil
}

func better(a, b Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.RowOrder < b.RowOrder
}
