package model

import (
	"sort"
	"strconv"
	"strings"
)

// CartEntry is a single add-to-cart event, recorded with the per-unit price
// in effect when the item was added.
type CartEntry struct {
	ProductID       string            `json:"product_id" validate:"required,notblank,max=255"`
	ProductName     string            `json:"product_name" validate:"required,notblank,max=255"`
	UnitPrice       int64             `json:"unit_price" validate:"gte=0"`
	OptionSurcharge int64             `json:"option_surcharge" validate:"gte=0"`
	Quantity        int64             `json:"quantity" validate:"gte=1"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
}

// UnitTotal is the per-unit price including option surcharges.
func (e CartEntry) UnitTotal() int64 {
	return e.UnitPrice + e.OptionSurcharge
}

// LineItem is a billable, merged cart line.
type LineItem struct {
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name"`
	UnitPrice       int64             `json:"unit_price"`
	OptionSurcharge int64             `json:"option_surcharge"`
	Quantity        int64             `json:"quantity"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
}

// UnitTotal is the per-unit price including option surcharges.
func (l LineItem) UnitTotal() int64 {
	return l.UnitPrice + l.OptionSurcharge
}

// TotalPrice is (unitPrice + optionSurcharge) * quantity.
func (l LineItem) TotalPrice() int64 {
	return l.UnitTotal() * l.Quantity
}

// Options renders the selected options as sorted "name: value" labels.
func (l LineItem) Options() []string {
	return OptionLabels(l.SelectedOptions)
}

// OptionLabels renders an option map as sorted "name: value" labels.
func OptionLabels(opts map[string]string) []string {
	labels := make([]string, 0, len(opts))
	for name, value := range opts {
		labels = append(labels, name+": "+value)
	}
	sort.Strings(labels)
	return labels
}

// CanonicalOptions serializes an option map independent of map iteration
// order. Names and values are length-prefixed, so distinct maps never
// serialize to the same string whatever characters they contain.
func CanonicalOptions(opts map[string]string) string {
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		writeField(&b, name)
		writeField(&b, opts[name])
	}
	return b.String()
}

func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
