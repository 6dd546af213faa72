package orderconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/usecase/orders"
)

const maxAuditLines = 8

// OrderService is the part of orders.Service the console drives.
type OrderService interface {
	ListOrders(ctx context.Context, filter orders.OrderFilter) ([]order.Record, error)
	PreviewAlerts(ctx context.Context) ([]order.AlertBatch, error)
	IngestOnce(ctx context.Context) (orders.IngestResult, error)
	AlertOnce(ctx context.Context, opts orders.AlertOptions) (orders.AlertResult, error)
	FormatAlert(batch order.AlertBatch) string
}

type Options struct {
	StatusFilter    string
	RefreshInterval time.Duration
}

var statusCycle = []order.Status{"", order.StatusNew, order.StatusDispatched, order.StatusReceived}

type ordersModel struct {
	ctx             context.Context
	service         OrderService
	refreshInterval time.Duration

	filterIndex   int
	records       []order.Record
	batches       []order.AlertBatch
	selectedIndex int
	showAlerts    bool
	status        string
	auditLogs     []string
}

type ordersLoadedMsg struct {
	records []order.Record
	batches []order.AlertBatch
	err     error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action string
	result string
	err    error
}

func NewOrdersModel(ctx context.Context, service OrderService, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	filterIndex := 0
	want := order.Status(strings.ToLower(strings.TrimSpace(options.StatusFilter)))
	for i, status := range statusCycle {
		if status == want {
			filterIndex = i
		}
	}

	return &ordersModel{
		ctx:             ctx,
		service:         service,
		refreshInterval: interval,
		filterIndex:     filterIndex,
		status:          "loading",
	}
}

func (m *ordersModel) filter() order.Status {
	return statusCycle[m.filterIndex]
}

func (m *ordersModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *ordersModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case ordersLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.records = msg.records
		m.batches = msg.batches
		if m.selectedIndex >= len(m.records) {
			m.selectedIndex = len(m.records) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("%d orders, %d alert batches", len(m.records), len(m.batches))
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.result, nil)
		}
		return m, m.loadCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		case "f":
			m.filterIndex = (m.filterIndex + 1) % len(statusCycle)
			m.selectedIndex = 0
			return m, m.loadCmd()
		case "tab":
			m.showAlerts = !m.showAlerts
			return m, nil
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.records)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "i":
			m.status = "ingesting"
			return m, m.ingestCmd()
		case "a":
			m.status = "sending alerts"
			return m, m.alertCmd()
		}
	}
	return m, nil
}

func (m *ordersModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Orders Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("status=%s refresh=%s", firstNonEmpty(string(m.filter()), "all"), m.refreshInterval)))
	builder.WriteString("\n\n")

	if m.showAlerts {
		builder.WriteString(sectionStyle.Render("Alert Preview"))
		builder.WriteString("\n")
		if len(m.batches) == 0 {
			builder.WriteString(dimStyle.Render("- nothing to alert"))
			builder.WriteString("\n")
		}
		for _, batch := range m.batches {
			builder.WriteString(m.service.FormatAlert(batch))
			builder.WriteString("\n\n")
		}
	} else {
		builder.WriteString(sectionStyle.Render("Orders"))
		builder.WriteString("\n")
		if len(m.records) == 0 {
			builder.WriteString(dimStyle.Render("- no orders"))
			builder.WriteString("\n")
		}
		for index, record := range m.records {
			line := formatRecord(record)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	if len(m.auditLogs) > 0 {
		builder.WriteString(sectionStyle.Render("Audit Log"))
		builder.WriteString("\n")
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line + "\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  f filter  tab alerts  g refresh  i ingest  a send alerts  q quit"))
	return builder.String()
}

func (m *ordersModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *ordersModel) loadCmd() tea.Cmd {
	filter := orders.OrderFilter{Status: m.filter()}
	return func() tea.Msg {
		records, err := m.service.ListOrders(m.ctx, filter)
		if err != nil {
			return ordersLoadedMsg{err: err}
		}
		batches, err := m.service.PreviewAlerts(m.ctx)
		if err != nil {
			return ordersLoadedMsg{err: err}
		}
		return ordersLoadedMsg{records: records, batches: batches}
	}
}

func (m *ordersModel) ingestCmd() tea.Cmd {
	return func() tea.Msg {
		result, err := m.service.IngestOnce(m.ctx)
		if err != nil {
			return actionDoneMsg{action: "ingest", err: err}
		}
		return actionDoneMsg{
			action: "ingest",
			result: fmt.Sprintf("checked=%d skipped=%d invalid=%d", result.Checked, result.Skipped, result.Invalid),
		}
	}
}

func (m *ordersModel) alertCmd() tea.Cmd {
	return func() tea.Msg {
		result, err := m.service.AlertOnce(m.ctx, orders.AlertOptions{})
		if err != nil {
			return actionDoneMsg{action: "alert", err: err}
		}
		return actionDoneMsg{
			action: "alert",
			result: fmt.Sprintf("sent=%d failed=%d", result.Sent, len(result.Failed)),
		}
	}
}

func (m *ordersModel) appendAuditLog(action string, result string, err error) {
	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05"), action, result)
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}

	attrs := []slog.Attr{slog.String("action", action), slog.String("result", result)}
	if err != nil {
		logging.Error(m.ctx, "console action failed", append(attrs, slog.String("err", err.Error()))...)
		return
	}
	logging.Info(m.ctx, "console action", attrs...)
}

func formatRecord(record order.Record) string {
	return fmt.Sprintf("#%s [%s] %s %s %s",
		record.OrderNumber,
		record.Status,
		record.DeliveryDate,
		record.Supplier,
		record.Site,
	)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
