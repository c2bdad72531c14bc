package weclapp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
	"github.com/shopspring/decimal"
)

// entity is one decoded weclapp record. Field names differ between
// endpoints and API versions, so every accessor tries a list of keys.
type entity map[string]any

// str returns the first non-empty value among keys. Nested objects
// contribute their name or value field.
func (e entity) str(keys ...string) string {
	for _, key := range keys {
		if s := stringValue(e[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case map[string]any:
		if s := stringValue(t["name"]); s != "" {
			return s
		}
		return stringValue(t["value"])
	}
	return ""
}

// dec returns the first positive amount among keys
func (e entity) dec(keys ...string) decimal.Decimal {
	for _, key := range keys {
		if d := decimalValue(e[key]); d.IsPositive() {
			return d
		}
	}
	return decimal.Zero
}

// firstDec returns the first non-zero amount among keys
func (e entity) firstDec(keys ...string) decimal.Decimal {
	for _, key := range keys {
		if d := decimalValue(e[key]); !d.IsZero() {
			return d
		}
	}
	return decimal.Zero
}

func decimalValue(v any) decimal.Decimal {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// date returns the first parseable date among keys. weclapp sends epoch
// milliseconds; ISO dates and timestamps are accepted too.
func (e entity) date(keys ...string) time.Time {
	for _, key := range keys {
		if t, ok := parseDate(e[key]); ok {
			return t
		}
	}
	return time.Time{}
}

func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case json.Number:
		ms, err := t.Int64()
		if err != nil || ms <= 0 {
			return time.Time{}, false
		}
		return salesexport.Day(time.UnixMilli(ms).UTC()), true
	case string:
		text, _, _ := strings.Cut(strings.TrimSpace(t), "T")
		d, err := time.Parse(time.DateOnly, text)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}
	return time.Time{}, false
}

var (
	channelKeys     = []string{"distributionChannelName", "salesChannelName", "shopName", "marketplace", "marketplaceName"}
	orderNumberKeys = []string{"orderNumber", "number", "documentNumber", "salesOrderNumber"}
	dateKeys        = []string{"orderDate", "docDate", "createdDate", "deliveryDate"}
)

func toOrder(e entity) salesexport.Order {
	return salesexport.Order{
		Number:      e.str(orderNumberKeys...),
		Date:        e.date(dateKeys...),
		Channel:     e.str(channelKeys...),
		Country:     e.str("shipToCountry", "country"),
		PostalCode:  e.str("shipToZip", "zip"),
		Marketplace: e.str("marketplace", "marketplaceName", "shopName", "salesChannelName"),
		Currency:    e.str("currency"),
	}
}

func toPosition(e entity) salesexport.Position {
	return salesexport.Position{
		OrderNumber:   e.str(orderNumberKeys...),
		Date:          e.date(dateKeys...),
		Channel:       e.str(channelKeys...),
		Status:        e.str("status", "statusName"),
		ArticleNumber: e.str("articleNumber", "productNumber", "sku", "itemNumber"),
		ArticleName:   e.str("articleName", "productName"),
		Quantity:      e.dec("quantity", "orderedQuantity", "amount"),
		UnitPrice:     e.dec("unitPriceNet", "unitPrice", "unitPriceGross", "price"),
		NetValue:      e.firstDec("netValue", "netAmount"),
		GrossValue:    e.firstDec("grossValue", "grossAmount"),
		Currency:      e.str("currency"),
	}
}
