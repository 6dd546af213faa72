package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orderbot/internal/domain/order"
	"orderbot/internal/infrastructure/metrics"
	"orderbot/internal/usecase/orders"
)

type MockOrderReader struct {
	mock.Mock
}

func (m *MockOrderReader) ListOrders(ctx context.Context, filter orders.OrderFilter) ([]order.Record, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Record), args.Error(1)
}

func (m *MockOrderReader) PreviewAlerts(ctx context.Context) ([]order.AlertBatch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.AlertBatch), args.Error(1)
}

func (m *MockOrderReader) FormatAlert(batch order.AlertBatch) string {
	return order.FormatBatch("", batch)
}

var testDate = order.Date{Year: 2025, Month: time.September, Day: 25}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	h := NewHandler(new(MockOrderReader), nil).Router()

	rec := serve(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListOrdersWithStatusFilter(t *testing.T) {
	reader := new(MockOrderReader)
	records := []order.Record{{
		OrderNumber:  "20250-609-0358",
		Supplier:     "Сити ООО",
		DeliveryDate: testDate,
		Site:         "DP+GHD Ярославский-06",
		Status:       order.StatusDispatched,
	}}
	reader.On("ListOrders", mock.Anything, orders.OrderFilter{Status: order.StatusDispatched}).Return(records, nil)

	rec := serve(t, NewHandler(reader, nil).Router(), "/orders?status=dispatched")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Orders []map[string]any `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Orders, 1)
	assert.Equal(t, "25-09-2025", body.Orders[0]["delivery_date"])
	assert.Equal(t, "dispatched", body.Orders[0]["status"])
	reader.AssertExpectations(t)
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	reader := new(MockOrderReader)

	rec := serve(t, NewHandler(reader, nil).Router(), "/orders?status=lost")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	reader.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
}

func TestListOrdersStoreFailure(t *testing.T) {
	reader := new(MockOrderReader)
	reader.On("ListOrders", mock.Anything, orders.OrderFilter{}).Return(nil, errors.New("sheets down"))

	rec := serve(t, NewHandler(reader, nil).Router(), "/orders")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sheets down")
}

func TestPreviewAlertsIncludesText(t *testing.T) {
	reader := new(MockOrderReader)
	reader.On("PreviewAlerts", mock.Anything).Return([]order.AlertBatch{
		{Supplier: "Сити ООО", DeliveryDate: testDate, Sites: []string{"Site A", "Site B"}},
	}, nil)

	rec := serve(t, NewHandler(reader, nil).Router(), "/alerts/preview")
	require.Equal(t, http.StatusOK, rec.Code)

	var body AlertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Batches, 1)
	assert.Equal(t, "Накладные не приняты\nСити ООО\n25-09-2025\nSite A\nSite B", body.Batches[0].Text)
	assert.Equal(t, []string{"Site A", "Site B"}, body.Batches[0].Sites)
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	h := NewHandler(new(MockOrderReader), m).Router()

	serve(t, h, "/healthz")
	rec := serve(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `orderbot_http_requests_total{handler="healthz",method="GET",status="200"} 1`)
}
