package orders

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"orderbot/internal/domain/order"
	"orderbot/internal/infrastructure/persistence/sqlite/model"
	"orderbot/internal/infrastructure/persistence/sqlite/tablestore"
	sqliteuow "orderbot/internal/infrastructure/persistence/sqlite/uow"
	"orderbot/internal/infrastructure/persistence/worksheet"
	"orderbot/internal/ports"
)

const (
	textNewOrder   = "Пора делать заказ! Заказ #20250-609-0358 Сити ООО (поставка 25-09-2025) в ресторане DP+GHD Ярославский-06 ожидает подтверждения"
	textDispatched = "Заказ для ресторана DP+GHD Ярославский-06 #20250-609-0358 создан"
	textReceived   = "Заказ #20250-609-0358 Сити ООО (поставка 25-09-2025) в ресторане DP+GHD Ярославский-06 был оприходован"
	textMalformed  = "Пора делать заказ! Заказ # Сити ООО в ресторане DP+GHD Ярославский-06 ожидает подтверждения"
	textUndated    = "Заказ #20250-609-0358 Сити ООО в ресторане DP+GHD Ярославский-06 был оприходован"
	alertChannel   = "@alerts"
)

var testNow = time.Date(2025, 9, 25, 9, 0, 0, 0, time.UTC)

type sentMessage struct {
	channel string
	text    string
}

type recordingNotifier struct {
	sent   []sentMessage
	failOn string
}

func (n *recordingNotifier) Send(_ context.Context, channelID string, text string) error {
	if n.failOn != "" && strings.Contains(text, n.failOn) {
		return errors.New("bot API unavailable")
	}
	n.sent = append(n.sent, sentMessage{channel: channelID, text: text})
	return nil
}

type fixture struct {
	svc      *Service
	store    *tablestore.TableStore
	messages *worksheet.MessageRepository
	orders   *worksheet.OrderRepository
	notifier *recordingNotifier
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "orders.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	store := tablestore.NewTableStore(db, sqliteuow.NewUnitOfWork(db))
	messages := worksheet.NewMessageRepository(store, "", time.UTC)
	orders := worksheet.NewOrderRepository(store, "", time.UTC)
	ctx := context.Background()
	if err := messages.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure messages: %v", err)
	}
	if err := orders.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure orders: %v", err)
	}

	notifier := &recordingNotifier{}
	svc := NewService(messages, orders, notifier, order.NewParser(order.NewSupplierCatalog(order.DefaultSuppliers)), Options{
		AlertChannel: alertChannel,
		Policy:       order.AlertPolicy{Mode: order.AlertModeDueToday, Location: time.UTC},
		Clock:        func() time.Time { return testNow },
	})
	return &fixture{svc: svc, store: store, messages: messages, orders: orders, notifier: notifier}
}

func (f *fixture) addMessage(t *testing.T, text string) {
	t.Helper()
	if err := f.messages.AppendMessage(context.Background(), order.RawMessage{
		Source:     "test",
		Identity:   text,
		Text:       text,
		ReceivedAt: testNow,
	}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
}

func (f *fixture) listOrders(t *testing.T) []order.Record {
	t.Helper()
	records, err := f.svc.ListOrders(context.Background(), OrderFilter{})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	return records
}

func (f *fixture) markers(t *testing.T) []string {
	t.Helper()
	msgs, err := f.messages.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Marker)
	}
	return out
}

func TestOrderLifecycleScenario(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.addMessage(t, textNewOrder)
	result, err := f.svc.IngestOnce(ctx)
	if err != nil {
		t.Fatalf("IngestOnce(new) error = %v", err)
	}
	if result.Checked != 1 || result.Outcomes[order.OutcomeCreated] != 1 {
		t.Fatalf("IngestOnce(new) = %+v", result)
	}
	records := f.listOrders(t)
	if len(records) != 1 || records[0].Status != order.StatusNew || records[0].Supplier != "Сити ООО" {
		t.Fatalf("records after new = %+v", records)
	}

	f.addMessage(t, textDispatched)
	if _, err := f.svc.IngestOnce(ctx); err != nil {
		t.Fatalf("IngestOnce(dispatched) error = %v", err)
	}
	records = f.listOrders(t)
	if len(records) != 1 || records[0].Status != order.StatusDispatched {
		t.Fatalf("records after dispatch = %+v", records)
	}

	alerts, err := f.svc.AlertOnce(ctx, AlertOptions{})
	if err != nil {
		t.Fatalf("AlertOnce() error = %v", err)
	}
	if alerts.Sent != 1 || len(f.notifier.sent) != 1 {
		t.Fatalf("AlertOnce() = %+v, sent %+v", alerts, f.notifier.sent)
	}
	want := "Накладные не приняты\nСити ООО\n25-09-2025\nDP+GHD Ярославский-06"
	if f.notifier.sent[0].text != want || f.notifier.sent[0].channel != alertChannel {
		t.Fatalf("alert = %+v", f.notifier.sent[0])
	}

	f.addMessage(t, textReceived)
	if _, err := f.svc.IngestOnce(ctx); err != nil {
		t.Fatalf("IngestOnce(received) error = %v", err)
	}
	records = f.listOrders(t)
	if records[0].Status != order.StatusReceived {
		t.Fatalf("records after receipt = %+v", records)
	}

	alerts, err = f.svc.AlertOnce(ctx, AlertOptions{})
	if err != nil {
		t.Fatalf("AlertOnce(after receipt) error = %v", err)
	}
	if len(alerts.Batches) != 0 || len(f.notifier.sent) != 1 {
		t.Fatalf("AlertOnce(after receipt) = %+v", alerts)
	}

	for i, marker := range f.markers(t) {
		if marker != order.MarkerChecked {
			t.Fatalf("marker[%d] = %q", i, marker)
		}
	}
}

func TestIngestOnceSameCycleCreateThenDispatch(t *testing.T) {
	f := setupFixture(t)
	f.addMessage(t, textNewOrder)
	f.addMessage(t, textDispatched)

	result, err := f.svc.IngestOnce(context.Background())
	if err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}
	if result.Outcomes[order.OutcomeCreated] != 1 || result.Outcomes[order.OutcomeUpdated] != 1 {
		t.Fatalf("IngestOnce() = %+v", result)
	}
	records := f.listOrders(t)
	if len(records) != 1 || records[0].Status != order.StatusDispatched {
		t.Fatalf("records = %+v", records)
	}
}

func TestIngestOnceIsIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addMessage(t, textNewOrder)

	if _, err := f.svc.IngestOnce(ctx); err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}
	result, err := f.svc.IngestOnce(ctx)
	if err != nil {
		t.Fatalf("IngestOnce(again) error = %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("IngestOnce(again) scanned = %d", result.Scanned)
	}

	// The same text arriving as a new row is a duplicate, not a new order.
	f.addMessage(t, textNewOrder)
	result, err = f.svc.IngestOnce(ctx)
	if err != nil {
		t.Fatalf("IngestOnce(repeat) error = %v", err)
	}
	if result.Outcomes[order.OutcomeDuplicate] != 1 {
		t.Fatalf("IngestOnce(repeat) = %+v", result)
	}
	if records := f.listOrders(t); len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
}

func TestIngestOnceMarkerPolicy(t *testing.T) {
	f := setupFixture(t)
	f.addMessage(t, "Доброе утро, коллеги")
	f.addMessage(t, textMalformed)
	f.addMessage(t, textReceived)

	result, err := f.svc.IngestOnce(context.Background())
	if err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}
	if result.Skipped != 1 || result.Invalid != 1 || result.Checked != 1 {
		t.Fatalf("IngestOnce() = %+v", result)
	}
	if result.Outcomes[order.OutcomeAnomaly] != 1 {
		t.Fatalf("received without order should be an anomaly: %+v", result)
	}

	want := []string{order.MarkerSkipped, order.MarkerInvalid, order.MarkerChecked}
	got := f.markers(t)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("markers = %v, want %v", got, want)
		}
	}
	if records := f.listOrders(t); len(records) != 0 {
		t.Fatalf("no record may be created, got %+v", records)
	}
}

func TestIngestOnceUndatedReceiptLeavesRecordUntouched(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addMessage(t, textNewOrder)
	f.addMessage(t, textDispatched)
	if _, err := f.svc.IngestOnce(ctx); err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}

	f.addMessage(t, textUndated)
	result, err := f.svc.IngestOnce(ctx)
	if err != nil {
		t.Fatalf("IngestOnce(undated) error = %v", err)
	}
	if result.Invalid != 1 || result.Checked != 0 {
		t.Fatalf("IngestOnce(undated) = %+v", result)
	}

	records := f.listOrders(t)
	if len(records) != 1 || records[0].Status != order.StatusDispatched {
		t.Fatalf("records = %+v", records)
	}
	markers := f.markers(t)
	if got := markers[len(markers)-1]; got != order.MarkerInvalid {
		t.Fatalf("marker = %q, want %q", got, order.MarkerInvalid)
	}
}

func TestIngestOnceDamagedRowBlocksSecondCreate(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	damaged := []string{"20250-609-0358", "Сити ООО", "25.09.2025", "DP+GHD Ярославский-06", "Новый", ""}
	if err := f.store.AppendRow(ctx, worksheet.DefaultOrdersTable, damaged); err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}

	f.addMessage(t, textNewOrder)
	f.addMessage(t, textDispatched)
	result, err := f.svc.IngestOnce(ctx)
	if err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}
	if result.Outcomes[order.OutcomeDuplicate] != 2 || result.Outcomes[order.OutcomeCreated] != 0 {
		t.Fatalf("IngestOnce() = %+v", result)
	}

	rows, err := f.store.ReadAllRows(ctx, worksheet.DefaultOrdersTable)
	if err != nil {
		t.Fatalf("ReadAllRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Cell(5) != "Новый" {
		t.Fatalf("order rows = %+v", rows)
	}
	if records := f.listOrders(t); len(records) != 0 {
		t.Fatalf("damaged rows must not be listed, got %+v", records)
	}
}

func TestApplyMatchesOnOrderNumberAndSite(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for _, site := range []string{"Site A", "Site B"} {
		ev := order.Event{
			Kind:         order.KindNewOrderRequested,
			OrderNumber:  "1-1",
			Supplier:     "Сити ООО",
			DeliveryDate: order.Date{Year: 2025, Month: time.September, Day: 25},
			Site:         site,
		}
		if _, err := f.svc.Apply(ctx, ev); err != nil {
			t.Fatalf("Apply(new %s) error = %v", site, err)
		}
	}

	applied, err := f.svc.Apply(ctx, order.Event{Kind: order.KindOrderReceived, OrderNumber: "1-1", Site: "  Site   B "})
	if err != nil {
		t.Fatalf("Apply(received) error = %v", err)
	}
	if applied.Outcome != order.OutcomeUpdated || applied.Rows != 1 {
		t.Fatalf("Apply(received) = %+v", applied)
	}

	records := f.listOrders(t)
	if records[0].Status != order.StatusNew || records[1].Status != order.StatusReceived {
		t.Fatalf("records = %+v", records)
	}

	// Dispatch after receipt never moves status back.
	applied, err = f.svc.Apply(ctx, order.Event{Kind: order.KindOrderDispatched, OrderNumber: "1-1", Site: "Site B"})
	if err != nil {
		t.Fatalf("Apply(dispatched) error = %v", err)
	}
	if applied.Outcome != order.OutcomeDuplicate {
		t.Fatalf("Apply(dispatched) = %+v", applied)
	}
}

type flakyMessages struct {
	ports.MessageRepository
	failMarks int
}

func (m *flakyMessages) MarkProcessed(ctx context.Context, msg order.RawMessage, marker string) error {
	if m.failMarks > 0 {
		m.failMarks--
		return errors.New("sheets quota exceeded")
	}
	return m.MessageRepository.MarkProcessed(ctx, msg, marker)
}

func TestIngestOnceStoreFailureLeavesRowForRetry(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addMessage(t, textNewOrder)

	flaky := &flakyMessages{MessageRepository: f.messages, failMarks: 1}
	svc := NewService(flaky, f.orders, f.notifier, nil, Options{Clock: func() time.Time { return testNow }})

	if _, err := svc.IngestOnce(ctx); err == nil {
		t.Fatalf("IngestOnce() expected error")
	}
	if got := f.markers(t); got[0] != "" {
		t.Fatalf("row must stay unmarked, marker = %q", got[0])
	}
	if records := f.listOrders(t); len(records) != 1 {
		t.Fatalf("records after failed cycle = %+v", records)
	}

	result, err := svc.IngestOnce(ctx)
	if err != nil {
		t.Fatalf("IngestOnce(retry) error = %v", err)
	}
	if result.Outcomes[order.OutcomeDuplicate] != 1 {
		t.Fatalf("IngestOnce(retry) = %+v", result)
	}
	if records := f.listOrders(t); len(records) != 1 {
		t.Fatalf("retry must not duplicate the record: %+v", records)
	}
	if got := f.markers(t); got[0] != order.MarkerChecked {
		t.Fatalf("marker after retry = %q", got[0])
	}
}

func TestAlertOnceIsolatesFailures(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for _, ev := range []order.Event{
		{Kind: order.KindNewOrderRequested, OrderNumber: "1", Supplier: "Сити ООО", Site: "Site A"},
		{Kind: order.KindNewOrderRequested, OrderNumber: "2", Supplier: "ООО МясПродукт", Site: "Site A"},
		{Kind: order.KindNewOrderRequested, OrderNumber: "3", Supplier: "Сити ООО", Site: "Site B"},
	} {
		ev.DeliveryDate = order.DateOf(testNow)
		if _, err := f.svc.Apply(ctx, ev); err != nil {
			t.Fatalf("Apply(%s) error = %v", ev.OrderNumber, err)
		}
	}

	f.notifier.failOn = "Сити ООО"
	result, err := f.svc.AlertOnce(ctx, AlertOptions{})
	if err != nil {
		t.Fatalf("AlertOnce() error = %v", err)
	}
	if len(result.Batches) != 2 || result.Sent != 1 || len(result.Failed) != 1 {
		t.Fatalf("AlertOnce() = %+v", result)
	}
	if result.Failed[0].Batch.Supplier != "Сити ООО" || len(result.Failed[0].Batch.Sites) != 2 {
		t.Fatalf("failed batch = %+v", result.Failed[0].Batch)
	}
	if !strings.Contains(f.notifier.sent[0].text, "ООО МясПродукт") {
		t.Fatalf("sent = %+v", f.notifier.sent)
	}
}

func TestAlertOnceDryRunAndEmpty(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	result, err := f.svc.AlertOnce(ctx, AlertOptions{})
	if err != nil {
		t.Fatalf("AlertOnce(empty) error = %v", err)
	}
	if len(result.Batches) != 0 || len(f.notifier.sent) != 0 {
		t.Fatalf("AlertOnce(empty) = %+v", result)
	}

	f.addMessage(t, textNewOrder)
	if _, err := f.svc.IngestOnce(ctx); err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}
	result, err = f.svc.AlertOnce(ctx, AlertOptions{DryRun: true})
	if err != nil {
		t.Fatalf("AlertOnce(dry run) error = %v", err)
	}
	if len(result.Batches) != 1 || result.Sent != 0 || len(f.notifier.sent) != 0 {
		t.Fatalf("AlertOnce(dry run) = %+v", result)
	}
}

type fakeSource struct {
	batches [][]ports.InboundMessage
	seen    [][]ports.InboundMessage
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Fetch(context.Context) ([]ports.InboundMessage, error) {
	if len(s.batches) == 0 {
		return nil, nil
	}
	next := s.batches[0]
	s.batches = s.batches[1:]
	return next, nil
}

func (s *fakeSource) MarkSeen(_ context.Context, msgs []ports.InboundMessage) error {
	s.seen = append(s.seen, msgs)
	return nil
}

func TestPullSourceDedupesByIdentity(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	first := ports.InboundMessage{Source: "fake", Identity: "tg:-100:1", Text: textNewOrder, ReceivedAt: testNow}
	second := ports.InboundMessage{Source: "fake", Identity: "tg:-100:2", Text: textDispatched}
	src := &fakeSource{batches: [][]ports.InboundMessage{
		{first, first},
		{first, second},
	}}

	result, err := f.svc.PullSource(ctx, src)
	if err != nil {
		t.Fatalf("PullSource() error = %v", err)
	}
	if result.Appended != 1 || result.Duplicates != 1 {
		t.Fatalf("PullSource() = %+v", result)
	}
	result, err = f.svc.PullSource(ctx, src)
	if err != nil {
		t.Fatalf("PullSource(again) error = %v", err)
	}
	if result.Appended != 1 || result.Duplicates != 1 {
		t.Fatalf("PullSource(again) = %+v", result)
	}
	if len(src.seen) != 2 {
		t.Fatalf("MarkSeen calls = %d", len(src.seen))
	}

	msgs, err := f.messages.ListMessages(ctx)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[1].Identity != "tg:-100:2" || !msgs[1].ReceivedAt.Equal(testNow) {
		t.Fatalf("messages = %+v", msgs)
	}

	if _, err := f.svc.IngestOnce(ctx); err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}
	if records := f.listOrders(t); len(records) != 1 || records[0].Status != order.StatusDispatched {
		t.Fatalf("records = %+v", records)
	}
}

type failingAppend struct {
	ports.MessageRepository
}

func (failingAppend) AppendMessage(context.Context, order.RawMessage) error {
	return errors.New("spreadsheet unavailable")
}

func TestPullSourceAppendFailureSkipsMarkSeen(t *testing.T) {
	f := setupFixture(t)
	svc := NewService(failingAppend{MessageRepository: f.messages}, f.orders, nil, nil, Options{})
	src := &fakeSource{batches: [][]ports.InboundMessage{{{Identity: "gmail:1", Text: "x"}}}}

	if _, err := svc.PullSource(context.Background(), src); err == nil {
		t.Fatalf("PullSource() expected error")
	}
	if len(src.seen) != 0 {
		t.Fatalf("MarkSeen must not run after a failed append")
	}
}

func TestListOrdersFilter(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addMessage(t, textNewOrder)
	if _, err := f.svc.IngestOnce(ctx); err != nil {
		t.Fatalf("IngestOnce() error = %v", err)
	}

	got, err := f.svc.ListOrders(ctx, OrderFilter{Status: order.StatusReceived})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListOrders(received) = %+v", got)
	}
	got, err = f.svc.ListOrders(ctx, OrderFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("ListOrders(open) error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListOrders(open) = %+v", got)
	}
}

func TestServiceRejectsNilContext(t *testing.T) {
	f := setupFixture(t)
	if _, err := f.svc.IngestOnce(nil); err == nil {
		t.Fatalf("IngestOnce(nil) expected error")
	}
}
