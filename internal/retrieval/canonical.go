// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

package retrieval

import "strings"

// NoItemsLabel stands in for the item list when a receipt has none.
const NoItemsLabel = "General goods"

// Canonicalize renders the fields that carry semantic meaning into the
// single sentence that gets embedded. Equal inputs always produce equal
// text, so stored and query vectors come from the same template.
func Canonicalize(merchant, category string, items []string) string {
	list := strings.Join(items, ", ")
	if list == "" {
		list = NoItemsLabel
	}

	var b strings.Builder
	b.Grow(len(merchant) + len(category) + len(list) + 28)
	b.WriteString("Expense at ")
	b.WriteString(merchant)
	b.WriteString(" for ")
	b.WriteString(category)
	b.WriteString(". Items: ")
	b.WriteString(list)
	return b.String()
}
