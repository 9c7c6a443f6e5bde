// Package pricing holds the pure cart, coupon and points arithmetic used at
// checkout. Nothing here touches storage.
package pricing

import (
	"github.com/fairyhunter13/kiosk-order-system/internal/model"
)

// Aggregate merges cart entries with the same product, options and per-unit
// price into billable lines, summing quantities. Output keeps first-seen order.
// Entries recorded at different per-unit prices stay on separate lines.
func Aggregate(entries []model.CartEntry) []model.LineItem {
	lines := make([]model.LineItem, 0, len(entries))
	index := make(map[lineKey]int, len(entries))

	for _, e := range entries {
		if e.Quantity <= 0 {
			continue
		}
		key := mergeKey(e)
		if i, ok := index[key]; ok {
			lines[i].Quantity += e.Quantity
			continue
		}

		index[key] = len(lines)
		lines = append(lines, model.LineItem{
			ProductID:       e.ProductID,
			ProductName:     e.ProductName,
			UnitPrice:       e.UnitPrice,
			OptionSurcharge: e.OptionSurcharge,
			Quantity:        e.Quantity,
			SelectedOptions: copyOptions(e.SelectedOptions),
		})
	}
	return lines
}

// Subtotal sums the line totals.
func Subtotal(lines []model.LineItem) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.TotalPrice()
	}
	return sum
}

// lineKey identifies entries that bill as one line.
type lineKey struct {
	productID string
	options   string
	unitTotal int64
}

func mergeKey(e model.CartEntry) lineKey {
	return lineKey{
		productID: e.ProductID,
		options:   model.CanonicalOptions(e.SelectedOptions),
		unitTotal: e.UnitTotal(),
	}
}

func copyOptions(opts map[string]string) map[string]string {
	if opts == nil {
		return nil
	}
	out := make(map[string]string, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}
