package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ordertrack-backend/services/tracker/watch"

	"github.com/stretchr/testify/require"
)

type ordersBackend struct {
	mu       sync.Mutex
	received []map[string]any
	server   *httptest.Server
}

func newOrdersBackend(t *testing.T) *ordersBackend {
	t.Helper()
	b := &ordersBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/orders":
			var body map[string]any
			err := json.NewDecoder(r.Body).Decode(&body)
			require.NoError(t, err)
			b.mu.Lock()
			b.received = append(b.received, body)
			b.mu.Unlock()
			fmt.Fprint(w, `{"status":"created"}`)
		case "/api/employees":
			fmt.Fprint(w, `[{"id":1,"name":"Алиса","telegram":"@alisa"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *ordersBackend) Received() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any{}, b.received...)
}

func TestScanExtractsAndDelivers(t *testing.T) {
	backend := newOrdersBackend(t)
	service := setupTestService(t, backend.server.URL)

	service.Scan(context.Background(), watch.Snapshot{
		HTML:       historyPageHtml,
		ReceivedAt: time.Now(),
	})

	// deliveries are dispatched on their own goroutines. the live path
	// stops at the first priority selector hit, so only the table row is
	// delivered and the loose card is left for an explicit backfill
	require.Eventually(t, func() bool {
		return len(backend.Received()) == 1
	}, time.Second*5, time.Millisecond*10)

	order := backend.Received()[0]
	require.Equal(t, "1234567890123456", order["order_id"])
	require.Equal(t, "emp-1", order["employee_id"])
	require.Equal(t, "bybit", order["platform"])
	require.Equal(t, "main", order["account_name"])
	require.Equal(t, "USDT/RUB", order["symbol"])
	require.Equal(t, "sell", order["side"])
	require.Equal(t, "filled", order["status"])

	require.Eventually(t, func() bool {
		return service.ledger.Size() == 1
	}, time.Second*5, time.Millisecond*10)
}

func TestScanInactiveWithoutEmployee(t *testing.T) {
	backend := newOrdersBackend(t)
	service := setupTestService(t, backend.server.URL)
	err := service.UpdateSettings(context.Background(), Settings{
		Endpoint:        backend.server.URL,
		TrackingEnabled: true,
	})
	require.NoError(t, err)

	service.Scan(context.Background(), watch.Snapshot{
		HTML:       historyPageHtml,
		ReceivedAt: time.Now(),
	})
	require.Empty(t, backend.Received())
}

func TestScanPicksUpSettingsSwap(t *testing.T) {
	backend := newOrdersBackend(t)
	service := setupTestService(t, backend.server.URL)
	err := service.UpdateSettings(context.Background(), Settings{
		Endpoint:        backend.server.URL,
		EmployeeID:      "emp-1",
		TrackingEnabled: false,
	})
	require.NoError(t, err)

	snapshot := watch.Snapshot{HTML: historyPageHtml, ReceivedAt: time.Now()}
	service.Scan(context.Background(), snapshot)
	require.Empty(t, backend.Received())

	// re-enabling takes effect on the very next cycle
	err = service.UpdateSettings(context.Background(), Settings{
		Endpoint:        backend.server.URL,
		EmployeeID:      "emp-1",
		TrackingEnabled: true,
	})
	require.NoError(t, err)

	service.Scan(context.Background(), snapshot)
	require.Eventually(t, func() bool {
		return len(backend.Received()) == 1
	}, time.Second*5, time.Millisecond*10)
}

func TestRunTracksSnapshots(t *testing.T) {
	backend := newOrdersBackend(t)
	service := setupTestService(t, backend.server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := make(chan watch.Snapshot)
	done := make(chan struct{})
	go func() {
		service.Run(ctx, snapshots)
		close(done)
	}()

	snapshots <- watch.Snapshot{HTML: historyPageHtml, ReceivedAt: time.Now()}

	require.Eventually(t, func() bool {
		return service.Status().SnapshotsSeen == 1
	}, time.Second*5, time.Millisecond*10)
	require.Eventually(t, func() bool {
		status := service.Status()
		return status.HasSnapshot && status.DeliveredOrders == 1
	}, time.Second*5, time.Millisecond*10)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("run loop did not stop on context cancellation")
	}
}

func TestPresenterSwapBetweenTypes(t *testing.T) {
	backend := newOrdersBackend(t)
	service := setupTestService(t, backend.server.URL)

	// the default and the page-session presenter are different concrete
	// types, swapping between them must work repeatedly
	require.IsType(t, SlogPresenter{}, service.Presenter())

	captured := &capturePresenter{}
	service.SetPresenter(captured)
	service.Presenter().Notify(context.Background(), NotifyInfo, "page connected")
	require.Len(t, captured.All(), 1)

	service.ClearPresenter()
	require.IsType(t, SlogPresenter{}, service.Presenter())

	service.SetPresenter(captured)
	service.Presenter().Notify(context.Background(), NotifyInfo, "page reconnected")
	require.Len(t, captured.All(), 2)
}

func TestEmployees(t *testing.T) {
	backend := newOrdersBackend(t)
	service := setupTestService(t, backend.server.URL)

	employees, err := service.Employees(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Employee{{ID: 1, Name: "Алиса", Telegram: "@alisa"}}, employees)
}
