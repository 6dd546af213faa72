package order

import (
	"fmt"
	"strings"
	"time"
)

type AlertMode string

const (
	AlertModeDueToday      AlertMode = "due_today"
	AlertModeUpdatedWithin AlertMode = "updated_within"

	DefaultAlertHeader = "Накладные не приняты"
	DefaultAlertWindow = time.Hour
)

func ParseAlertMode(value string) (AlertMode, error) {
	switch AlertMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", AlertModeDueToday:
		return AlertModeDueToday, nil
	case AlertModeUpdatedWithin:
		return AlertModeUpdatedWithin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlertMode, value)
	}
}

// AlertPolicy decides which open orders belong to the current alert cycle.
type AlertPolicy struct {
	Mode     AlertMode
	Window   time.Duration
	Location *time.Location
}

func (p AlertPolicy) Admits(r Record, now time.Time) bool {
	if r.Damaged || r.Status.Terminal() {
		return false
	}

	switch p.Mode {
	case AlertModeUpdatedWithin:
		window := p.Window
		if window <= 0 {
			window = DefaultAlertWindow
		}
		if r.LastUpdatedAt.IsZero() {
			return false
		}
		return !r.LastUpdatedAt.Before(now.Add(-window))
	default:
		loc := p.Location
		if loc == nil {
			loc = time.Local
		}
		return r.DeliveryDate == DateOf(now.In(loc))
	}
}

type AlertBatch struct {
	Supplier     string   `json:"supplier"`
	DeliveryDate Date     `json:"delivery_date"`
	Sites        []string `json:"sites"`
}

type batchKey struct {
	supplier string
	date     Date
}

// Aggregate groups admitted records by supplier and delivery date. Groups and
// the sites inside them keep first-seen order; sites are distinct.
func Aggregate(records []Record, now time.Time, policy AlertPolicy) []AlertBatch {
	var batches []AlertBatch
	index := make(map[batchKey]int)
	seenSites := make(map[batchKey]map[string]struct{})

	for _, record := range records {
		if !policy.Admits(record, now) {
			continue
		}

		key := batchKey{supplier: strings.TrimSpace(record.Supplier), date: record.DeliveryDate}
		pos, ok := index[key]
		if !ok {
			pos = len(batches)
			index[key] = pos
			seenSites[key] = make(map[string]struct{})
			batches = append(batches, AlertBatch{Supplier: key.supplier, DeliveryDate: key.date})
		}

		site := NormalizeSite(record.Site)
		if _, dup := seenSites[key][site]; dup {
			continue
		}
		seenSites[key][site] = struct{}{}
		batches[pos].Sites = append(batches[pos].Sites, site)
	}
	return batches
}

// FormatBatch renders one alert: header, supplier, date, then one site per line.
func FormatBatch(header string, batch AlertBatch) string {
	if strings.TrimSpace(header) == "" {
		header = DefaultAlertHeader
	}
	lines := make([]string, 0, 3+len(batch.Sites))
	lines = append(lines, header, batch.Supplier, batch.DeliveryDate.String())
	lines = append(lines, batch.Sites...)
	return strings.Join(lines, "\n")
}
