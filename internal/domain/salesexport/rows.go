package salesexport

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Header is the column row of the report
var Header = []string{
	"Auftragsnummer",
	"Auftragsdatum",
	"Vertriebsweg",
	"Land",
	"PLZ",
	"Anzahl Positionen",
	"Nettobetrag",
	"Shop/Marktplatz",
	"Artikel",
	"Positionen",
	"Währung",
}

// Row is one order of the report with its positions folded in
type Row struct {
	OrderNumber   string
	OrderDate     time.Time
	Channel       string
	Country       string
	PostalCode    string
	PositionCount int
	NetTotal      decimal.Decimal
	Marketplace   string
	Articles      string
	Positions     string
	Currency      string
}

// Record renders the row in Header order
func (r Row) Record() []string {
	date := ""
	if !r.OrderDate.IsZero() {
		date = r.OrderDate.Format(time.DateOnly)
	}
	return []string{
		r.OrderNumber,
		date,
		r.Channel,
		r.Country,
		r.PostalCode,
		strconv.Itoa(r.PositionCount),
		r.NetTotal.StringFixed(2),
		r.Marketplace,
		r.Articles,
		r.Positions,
		r.Currency,
	}
}

// BuildRows joins orders with their passing positions. Orders without a
// passing position are left out. Rows are sorted by date, then number.
func BuildRows(orders []Order, positions []Position, w Window, rules Rules) []Row {
	byOrder := make(map[string][]Position)
	for _, p := range positions {
		if p.OrderNumber == "" || !rules.PositionPasses(p, w) {
			continue
		}
		byOrder[p.OrderNumber] = append(byOrder[p.OrderNumber], p)
	}

	rows := make([]Row, 0, len(byOrder))
	for _, o := range orders {
		if o.Number == "" || !rules.OrderPasses(o, w) {
			continue
		}
		lines := byOrder[o.Number]
		if len(lines) == 0 {
			continue
		}
		rows = append(rows, buildRow(o, lines))
	}

	slices.SortStableFunc(rows, func(a, b Row) int {
		return cmp.Or(a.OrderDate.Compare(b.OrderDate), cmp.Compare(a.OrderNumber, b.OrderNumber))
	})
	return rows
}

func buildRow(o Order, lines []Position) Row {
	currency := cmp.Or(o.Currency, lines[0].Currency, "EUR")
	row := Row{
		OrderNumber:   o.Number,
		OrderDate:     o.Date,
		Channel:       o.Channel,
		Country:       o.Country,
		PostalCode:    o.PostalCode,
		PositionCount: len(lines),
		NetTotal:      decimal.Zero,
		Marketplace:   cmp.Or(o.Marketplace, o.Channel),
		Currency:      currency,
	}

	var names, snippets []string
	for _, p := range lines {
		row.NetTotal = row.NetTotal.Add(p.NetAmount())
		if p.ArticleName != "" && !slices.Contains(names, p.ArticleName) {
			names = append(names, p.ArticleName)
		}
		snippets = append(snippets, positionSnippet(p))
	}
	slices.Sort(names)
	row.NetTotal = row.NetTotal.Round(2)
	row.Articles = strings.Join(names, ", ")
	row.Positions = strings.Join(snippets, " | ")
	return row
}

func positionSnippet(p Position) string {
	parts := []string{
		fmt.Sprintf("%s: %s", cmp.Or(p.ArticleNumber, "-"), p.ArticleName),
		"Menge " + p.Quantity.StringFixed(2),
		"Preis " + p.EffectiveUnitPrice().StringFixed(2),
	}
	if p.GrossValue.IsPositive() {
		parts = append(parts, "Brutto "+p.GrossValue.StringFixed(2))
	}
	if p.Status != "" {
		parts = append(parts, "Status "+p.Status)
	}
	return strings.Join(parts, ", ")
}
