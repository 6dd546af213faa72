package order

import "strings"

// Kind names the lifecycle transition a message describes.
type Kind string

const (
	KindNewOrderRequested Kind = "new_order_requested"
	KindOrderDispatched   Kind = "order_dispatched"
	KindOrderReceived     Kind = "order_received"
)

// Key identifies one order line: the same order number recurs per site.
type Key struct {
	OrderNumber string
	Site        string
}

func NewKey(orderNumber string, site string) Key {
	return Key{
		OrderNumber: strings.TrimSpace(orderNumber),
		Site:        NormalizeSite(site),
	}
}

// NormalizeSite trims and collapses inner whitespace.
func NormalizeSite(site string) string {
	return strings.Join(strings.Fields(site), " ")
}

type Event struct {
	Kind         Kind   `json:"kind" yaml:"kind"`
	OrderNumber  string `json:"order_number" yaml:"order_number"`
	Supplier     string `json:"supplier,omitempty" yaml:"supplier,omitempty"`
	DeliveryDate Date   `json:"delivery_date,omitempty" yaml:"delivery_date,omitempty"`
	Site         string `json:"site" yaml:"site"`
	RawText      string `json:"raw_text" yaml:"raw_text"`
}

func (e Event) Key() Key {
	return NewKey(e.OrderNumber, e.Site)
}
