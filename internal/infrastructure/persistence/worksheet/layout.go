// Package worksheet maps order records and inbound messages onto the
// positional columns of a ports.TableStore. No other package knows the
// column layout.
package worksheet

import (
	"strings"
	"time"

	"orderbot/internal/domain/order"
)

const (
	DefaultMessagesTable = "Сообщения"
	DefaultOrdersTable   = "Utro"

	timeLayout = "2006-01-02 15:04:05"
)

// Ingestion table columns.
const (
	messageColSource = iota + 1
	messageColIdentity
	messageColText
	messageColReceivedAt
	messageColMarker
)

var messagesHeader = []string{"Источник", "ID", "Текст", "Время", "Отметка"}

// Orders table columns, as laid out by the original sheet.
const (
	orderColNumber = iota + 1
	orderColSupplier
	orderColDate
	orderColSite
	orderColStatus
	orderColUpdatedAt
)

var ordersHeader = []string{"Номер заказа", "Поставщик", "Дата", "Объект", "Статус", "Время"}

const legacyReceivedLabel = "#checked"

var statusLabels = map[order.Status]string{
	order.StatusNew:        "Новый",
	order.StatusDispatched: "Отправлен",
	order.StatusReceived:   "Получен",
}

// StatusLabel returns the sheet label of a status.
func StatusLabel(status order.Status) string {
	return statusLabels[status]
}

// parseStatusLabel reads a status cell. An empty cell is a fresh order;
// "#checked" is what older deployments wrote for received orders.
func parseStatusLabel(value string) (order.Status, error) {
	value = strings.TrimSpace(value)
	switch value {
	case "":
		return order.StatusNew, nil
	case legacyReceivedLabel:
		return order.StatusReceived, nil
	}
	for status, label := range statusLabels {
		if strings.EqualFold(label, value) {
			return status, nil
		}
	}
	return order.ParseStatus(value)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timeLayout)
}

func parseTime(value string, loc *time.Location) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func cellsOf(width int) []string {
	return make([]string, width)
}
