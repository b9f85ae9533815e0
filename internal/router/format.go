package router

import (
	"fmt"
	"math"
	"strings"

	"github.com/nidhogg/giffly/internal/catalog"
	"github.com/nidhogg/giffly/internal/recommend"
	"github.com/nidhogg/giffly/internal/scoring"
)

// FormatResult renders a recommendation result as a chat reply.
func FormatResult(res *recommend.Result) string {
	if res == nil {
		return ""
	}
	if !res.Success {
		return res.Error
	}
	if len(res.Products) == 0 {
		return res.Message
	}

	var buf strings.Builder
	buf.WriteString(res.Message)
	for i, rp := range res.Products {
		fmt.Fprintf(&buf, "\n%d. %s, %s (совпадение %d%%)", i+1, rp.Product.Name, FormatPrice(rp.Product.Price), rp.Relevance)
		if rp.BudgetMatch != nil && !*rp.BudgetMatch {
			buf.WriteString(" *сверх бюджета*")
		}
	}
	return buf.String()
}

// FormatProducts renders a numbered product list, under title when it is
// not empty.
func FormatProducts(title string, products []catalog.Product) string {
	lines := make([]string, 0, len(products)+1)
	if title != "" {
		lines = append(lines, title)
	}
	for i, p := range products {
		lines = append(lines, fmt.Sprintf("%d. %s, %s", i+1, p.Name, FormatPrice(p.Price)))
	}
	return strings.Join(lines, "\n")
}

// FormatPrice prints a catalog price in roubles, dropping zero kopecks.
// Unparseable prices are shown as stored.
func FormatPrice(price string) string {
	v, err := scoring.ParsePrice(price)
	if err != nil {
		return price
	}
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f ₽", v)
	}
	return fmt.Sprintf("%.2f ₽", v)
}
