package salesexport

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReportingWindow(t *testing.T) {
	tests := []struct {
		name   string
		ref    string
		offset int
		start  string
		end    string
	}{
		{"two weeks back from a Monday", "2025-01-20", 2, "2025-01-06", "2025-01-12"},
		{"two weeks back from a Sunday", "2025-01-26", 2, "2025-01-06", "2025-01-12"},
		{"crosses the year boundary", "2025-01-08", 2, "2024-12-23", "2024-12-29"},
		{"current week", "2025-03-13", 0, "2025-03-10", "2025-03-16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ReportingWindow(date(tt.ref).Add(15*time.Hour), tt.offset)
			assert.Equal(t, date(tt.start), w.Start)
			assert.Equal(t, date(tt.end), w.End)
			assert.Equal(t, time.Monday, w.Start.Weekday())
		})
	}
}

func TestResolveWindow(t *testing.T) {
	now := date("2025-01-20")
	start, end := date("2025-02-03"), date("2025-02-09")

	w, err := ResolveWindow(&start, &end, now, DefaultOffsetWeeks)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03..2025-02-09", w.String())

	w, err = ResolveWindow(&start, nil, now, DefaultOffsetWeeks)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03..2025-02-09", w.String())

	w, err = ResolveWindow(nil, &end, now, DefaultOffsetWeeks)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03..2025-02-09", w.String())

	w, err = ResolveWindow(nil, nil, now, DefaultOffsetWeeks)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06..2025-01-12", w.String())

	_, err = ResolveWindow(&end, &start, now, DefaultOffsetWeeks)
	assert.Error(t, err)
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: date("2025-01-06"), End: date("2025-01-12")}
	assert.True(t, w.Contains(date("2025-01-06")))
	assert.True(t, w.Contains(date("2025-01-12").Add(23*time.Hour)))
	assert.False(t, w.Contains(date("2025-01-13")))
	assert.False(t, w.Contains(date("2025-01-05")))
	assert.True(t, w.Contains(time.Time{}))
}

func basePosition() Position {
	return Position{
		OrderNumber:   "A-100",
		Date:          date("2025-01-07"),
		Channel:       DefaultChannels[0],
		Status:        "abgeschlossen",
		ArticleNumber: "SKU-1",
		ArticleName:   "Ferramol Schneckenkorn",
		Quantity:      dec("1"),
		UnitPrice:     dec("2.50"),
	}
}

func TestRules_PositionPasses(t *testing.T) {
	rules := DefaultRules()
	w := Window{Start: date("2025-01-06"), End: date("2025-01-12")}

	require.True(t, rules.PositionPasses(basePosition(), w))

	tests := []struct {
		name   string
		mutate func(p *Position)
	}{
		{"excluded brand with umlaut", func(p *Position) { p.ArticleName = "Imprägnol Spray" }},
		{"excluded brand upper case", func(p *Position) { p.ArticleName = "WENCO Pflege" }},
		{"unknown channel", func(p *Position) { p.Channel = "Wholesale" }},
		{"open status", func(p *Position) { p.Status = "offen" }},
		{"missing article number", func(p *Position) { p.ArticleNumber = "-" }},
		{"free item", func(p *Position) { p.UnitPrice = decimal.Zero }},
		{"outside window", func(p *Position) { p.Date = date("2025-01-13") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePosition()
			tt.mutate(&p)
			assert.False(t, rules.PositionPasses(p, w))
		})
	}

	t.Run("english completed status", func(t *testing.T) {
		p := basePosition()
		p.Status = "COMPLETED"
		assert.True(t, rules.PositionPasses(p, w))
	})

	t.Run("price derived from net value", func(t *testing.T) {
		p := basePosition()
		p.UnitPrice = decimal.Zero
		p.NetValue = dec("7.50")
		p.Quantity = dec("3")
		assert.True(t, rules.PositionPasses(p, w))
		assert.Equal(t, "2.50", p.EffectiveUnitPrice().StringFixed(2))
	})
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "impragnol spray", NormalizeToken("Imprägnol Spray"))
	assert.Equal(t, "dunger", NormalizeToken("Dünger"))
	assert.Equal(t, "", NormalizeToken(""))
}

func TestBuildRows_AggregatesPositions(t *testing.T) {
	w := Window{Start: date("2025-01-06"), End: date("2025-01-12")}
	orders := []Order{
		{Number: "A-101", Date: date("2025-01-08"), Channel: DefaultChannels[1], Country: "AT", PostalCode: "6020"},
		{Number: "A-100", Date: date("2025-01-07"), Channel: DefaultChannels[0], Country: "DE", PostalCode: "12345", Currency: "EUR"},
		{Number: "A-102", Date: date("2025-01-07"), Channel: DefaultChannels[0]},
		{Number: "A-103", Date: date("2025-01-07"), Channel: "Wholesale"},
	}

	first := basePosition()
	first.ArticleName = "Garden Tool"
	first.UnitPrice = dec("10.00")
	first.Quantity = dec("2")
	second := basePosition()
	second.ArticleNumber = "SKU-2"
	second.ArticleName = "Soil Mix"
	second.UnitPrice = dec("5.00")
	second.GrossValue = dec("5.95")
	blocked := basePosition()
	blocked.ArticleName = "Roundup Unkrautfrei"
	austrian := basePosition()
	austrian.OrderNumber = "A-101"
	austrian.Channel = DefaultChannels[1]
	austrian.NetValue = dec("4.20")
	austrian.Currency = "EUR"
	wholesale := basePosition()
	wholesale.OrderNumber = "A-103"
	wholesale.Channel = "Wholesale"

	rows := BuildRows(orders, []Position{first, second, blocked, austrian, wholesale}, w, DefaultRules())
	require.Len(t, rows, 2)

	row := rows[0]
	assert.Equal(t, "A-100", row.OrderNumber)
	assert.Equal(t, 2, row.PositionCount)
	assert.Equal(t, "25.00", row.NetTotal.StringFixed(2))
	assert.Equal(t, "Garden Tool, Soil Mix", row.Articles)
	assert.Contains(t, row.Positions, "SKU-1: Garden Tool, Menge 2.00, Preis 10.00")
	assert.Contains(t, row.Positions, "Brutto 5.95")
	assert.Equal(t, DefaultChannels[0], row.Marketplace)

	record := row.Record()
	require.Len(t, record, len(Header))
	assert.Equal(t, []string{"A-100", "2025-01-07", DefaultChannels[0], "DE", "12345", "2", "25.00"}, record[:7])
	assert.Equal(t, "EUR", record[10])

	assert.Equal(t, "A-101", rows[1].OrderNumber)
	assert.Equal(t, "4.20", rows[1].NetTotal.StringFixed(2))
	assert.Equal(t, "EUR", rows[1].Currency)
}
