package salesexport

import (
	"slices"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// StatusCompleted is the ERP status of a delivered and closed position
const StatusCompleted = "abgeschlossen"

// DefaultChannels are the distribution channels the report covers
var DefaultChannels = []string{
	"Shop DE netto",
	"Shop AT netto",
	"Shop DE brutto",
	"Shop AT brutto",
	"Ebay brutto",
	"Otto brutto",
	"Kaufland brutto",
	"Kaufland netto",
	"Amazon FBA brutto",
	"Amazon FBM brutto",
	"bol.com netto",
	"bol.com brutto",
}

// DefaultExcludedKeywords drop third-party brands from the report. They are
// matched against the normalized article name.
var DefaultExcludedKeywords = []string{
	"impragnol",
	"impraegnol",
	"bb",
	"sneakerasers",
	"heitmann",
	"wenco",
	"roundup",
	"bootbananas",
}

var completedMarkers = []string{"abgeschlossen", "completed"}

// Rules decide which orders and positions enter the report
type Rules struct {
	Channels         []string
	ExcludedKeywords []string
	MinUnitPrice     decimal.Decimal
	// PositionStatus is requested from the ERP; positions are checked
	// locally against completedMarkers as well.
	PositionStatus string
}

// DefaultRules returns the rules of the weekly report
func DefaultRules() Rules {
	return Rules{
		Channels:         slices.Clone(DefaultChannels),
		ExcludedKeywords: slices.Clone(DefaultExcludedKeywords),
		MinUnitPrice:     decimal.RequireFromString("0.01"),
		PositionStatus:   StatusCompleted,
	}
}

// AllowsChannel reports whether channel is covered. Channel names match
// exactly.
func (r Rules) AllowsChannel(channel string) bool {
	return channel != "" && slices.Contains(r.Channels, channel)
}

// OrderPasses reports whether an order header belongs in the report
func (r Rules) OrderPasses(o Order, w Window) bool {
	return r.AllowsChannel(o.Channel) && w.Contains(o.Date)
}

// PositionPasses reports whether a position counts towards its order
func (r Rules) PositionPasses(p Position, w Window) bool {
	if !r.AllowsChannel(p.Channel) {
		return false
	}
	if status := NormalizeToken(p.Status); status != "" && !containsAny(status, completedMarkers) {
		return false
	}
	if number := strings.TrimSpace(p.ArticleNumber); number == "" || number == "-" {
		return false
	}
	if name := strings.TrimSpace(p.ArticleName); name != "" && !r.ArticleAllowed(name) {
		return false
	}
	if p.EffectiveUnitPrice().LessThan(r.MinUnitPrice) {
		return false
	}
	return w.Contains(p.Date)
}

// ArticleAllowed reports whether name contains none of the excluded keywords
func (r Rules) ArticleAllowed(name string) bool {
	normalized := NormalizeToken(name)
	for _, kw := range r.ExcludedKeywords {
		if kw = NormalizeToken(strings.TrimSpace(kw)); kw != "" && strings.Contains(normalized, kw) {
			return false
		}
	}
	return true
}

// NormalizeToken folds s to lower-case ASCII, dropping diacritics and any
// character without an ASCII base form.
func NormalizeToken(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
