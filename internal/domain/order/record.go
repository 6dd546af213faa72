package order

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusDispatched Status = "dispatched"
	StatusReceived   Status = "received"
)

// Processed markers written onto ingestion rows.
const (
	MarkerChecked = "#checked"
	MarkerSkipped = "#skipped"
	MarkerInvalid = "#invalid"
)

func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusNew:
		return StatusNew, nil
	case StatusDispatched:
		return StatusDispatched, nil
	case StatusReceived:
		return StatusReceived, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
}

func (s Status) Terminal() bool {
	return s == StatusReceived
}

func (s Status) rank() int {
	switch s {
	case StatusNew:
		return 1
	case StatusDispatched:
		return 2
	case StatusReceived:
		return 3
	default:
		return 0
	}
}

// Record is one persisted order line. RowIndex is an opaque handle owned by
// the store adapter. Damaged rows had an undecodable date or status; they
// still occupy their key but are never updated, listed or alerted.
type Record struct {
	RowIndex      int       `json:"-"`
	OrderNumber   string    `json:"order_number"`
	Supplier      string    `json:"supplier"`
	DeliveryDate  Date      `json:"delivery_date"`
	Site          string    `json:"site"`
	Status        Status    `json:"status"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Damaged       bool      `json:"-"`
}

func (r Record) Key() Key {
	return NewKey(r.OrderNumber, r.Site)
}

// NewRecord builds the record created by a NewOrderRequested event.
func NewRecord(ev Event, now time.Time) Record {
	return Record{
		OrderNumber:   strings.TrimSpace(ev.OrderNumber),
		Supplier:      strings.TrimSpace(ev.Supplier),
		DeliveryDate:  ev.DeliveryDate,
		Site:          NormalizeSite(ev.Site),
		Status:        StatusNew,
		LastUpdatedAt: now,
	}
}

// RawMessage is one inbound message row of the ingestion table.
type RawMessage struct {
	RowIndex   int
	Source     string
	Identity   string
	Text       string
	ReceivedAt time.Time
	Marker     string
}

func (m RawMessage) Processed() bool {
	return strings.TrimSpace(m.Marker) != ""
}
