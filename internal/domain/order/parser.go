package order

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	phraseNewOrder          = "Пора делать заказ!"
	phraseReceived          = "был оприходован"
	phraseDispatchedSubject = "Заказ отправлен"
	phraseCreated           = "создан"

	markerSiteAt  = "в ресторане"
	markerSiteFor = "для ресторана"
)

var (
	orderNumberPattern    = regexp.MustCompile(`^[0-9]+(?:-[0-9]+)*$`)
	deliveryClausePattern = regexp.MustCompile(`\((?:поставка|доставка)\s+([^)]*)\)`)
	deliveryOpenPattern   = regexp.MustCompile(`\s*\((?:поставка|доставка)\s`)

	siteStops = []string{" ожидает", " был оприходован", " оприходован", " создан", " #", "\n"}
)

// Parser maps raw message text to at most one Event.
type Parser struct {
	suppliers *SupplierCatalog
}

func NewParser(suppliers *SupplierCatalog) *Parser {
	if suppliers == nil {
		suppliers = NewSupplierCatalog(DefaultSuppliers)
	}
	return &Parser{suppliers: suppliers}
}

func (p *Parser) Suppliers() *SupplierCatalog {
	return p.suppliers
}

// Parse returns ErrNotOrderMessage when no shape matches and an
// ErrIncompleteOrder-wrapped error naming the first missing field when a
// shape matches but cannot be fully extracted.
func (p *Parser) Parse(text string) (Event, error) {
	raw := text
	text = normalizeSpaces(text)
	kind, ok := Classify(text)
	if !ok {
		return Event{}, ErrNotOrderMessage
	}

	orderNumber, ok := extractOrderNumber(text)
	if !ok {
		return Event{}, incomplete("order_number")
	}

	ev := Event{
		Kind:        kind,
		OrderNumber: orderNumber,
		RawText:     raw,
	}

	supplier, supplierOK := p.suppliers.Match(text)
	date, dateErr := extractDeliveryDate(text)

	switch kind {
	case KindNewOrderRequested:
		if !supplierOK {
			return Event{}, incomplete("supplier")
		}
		if dateErr != nil {
			return Event{}, dateErr
		}
	case KindOrderReceived:
		if dateErr != nil {
			return Event{}, dateErr
		}
	}
	if !supplierOK {
		supplier = extractFreeTextSupplier(text)
	}
	ev.Supplier = supplier
	// Dispatched notices may omit the delivery clause.
	if dateErr == nil {
		ev.DeliveryDate = date
	}

	site, ok := extractSite(text)
	if !ok {
		return Event{}, incomplete("site")
	}
	ev.Site = site

	return ev, nil
}

// Classify reports which lifecycle shape text has, by its key phrases.
func Classify(text string) (Kind, bool) {
	switch {
	case strings.Contains(text, phraseNewOrder):
		return KindNewOrderRequested, true
	case strings.Contains(text, phraseReceived):
		return KindOrderReceived, true
	case strings.Contains(text, phraseDispatchedSubject):
		return KindOrderDispatched, true
	case strings.Contains(text, markerSiteFor) && strings.Contains(text, phraseCreated):
		return KindOrderDispatched, true
	default:
		return "", false
	}
}

func extractOrderNumber(text string) (string, bool) {
	idx := strings.Index(text, "#")
	if idx < 0 {
		return "", false
	}
	rest := text[idx+1:]
	if end := strings.IndexFunc(rest, isSpace); end >= 0 {
		rest = rest[:end]
	}
	token := strings.TrimRight(rest, ".,;:!")
	if !orderNumberPattern.MatchString(token) {
		return "", false
	}
	return token, true
}

func extractDeliveryDate(text string) (Date, error) {
	match := deliveryClausePattern.FindStringSubmatch(text)
	if match == nil {
		return Date{}, incomplete("delivery_date")
	}
	date, err := ParseDate(match[1])
	if err != nil {
		return Date{}, incomplete("delivery_date")
	}
	return date, nil
}

func extractSite(text string) (string, bool) {
	start := -1
	for _, marker := range []string{markerSiteAt, markerSiteFor} {
		if idx := strings.Index(text, marker); idx >= 0 && (start < 0 || idx < start) {
			start = idx + len(marker)
		}
	}
	if start < 0 {
		return "", false
	}

	rest := text[start:]
	end := len(rest)
	for _, stop := range siteStops {
		if idx := strings.Index(rest, stop); idx >= 0 && idx < end {
			end = idx
		}
	}

	site := NormalizeSite(rest[:end])
	if site == "" {
		return "", false
	}
	return site, true
}

// extractFreeTextSupplier takes the text between the order token and the
// delivery clause, for suppliers missing from the catalog.
func extractFreeTextSupplier(text string) string {
	idx := strings.Index(text, "#")
	if idx < 0 {
		return ""
	}
	rest := text[idx+1:]
	end := strings.IndexFunc(rest, isSpace)
	if end < 0 {
		return ""
	}
	rest = rest[end:]

	loc := deliveryOpenPattern.FindStringIndex(rest)
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(rest[:loc[0]])
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

// normalizeSpaces turns non-breaking and other exotic spaces into plain
// spaces so the stop phrases match. Line breaks are kept.
func normalizeSpaces(text string) string {
	return strings.Map(func(r rune) rune {
		if r != '\n' && r != '\r' && r != '\t' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
}
