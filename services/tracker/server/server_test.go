package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ordertrack-backend/lib/testutil"
	"ordertrack-backend/services/tracker"
	trackerdb "ordertrack-backend/services/tracker/db"
	"ordertrack-backend/services/tracker/watch"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const historyPageHtml = `
<html><body>
<table>
	<tr><th>Монета</th><th>Тип</th><th>Статус</th></tr>
	<tr>
		<td>ID1234567890123456</td>
		<td>Продажа</td>
		<td>USDT/RUB</td>
		<td>137,0000 USDT</td>
		<td>83,75 RUB</td>
		<td>Завершено</td>
	</tr>
</table>
</body></html>`

type fakeBackend struct {
	mu     sync.Mutex
	orders int
	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/orders":
			b.mu.Lock()
			b.orders++
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

func (b *fakeBackend) Orders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orders
}

func setupServer(t *testing.T, backendURL string) (*tracker.Service, *httptest.Server) {
	t.Helper()

	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "tracker.server",
		DbSchema: trackerdb.Schema,
	})
	t.Cleanup(cleanup)

	service, err := tracker.NewService(context.Background(), res.DB)
	require.NoError(t, err)
	err = service.UpdateSettings(context.Background(), tracker.Settings{
		Endpoint:        backendURL,
		EmployeeID:      "emp-1",
		AccountLabel:    "main",
		TrackingEnabled: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	debounce := watch.NewDebouncer(time.Millisecond * 20)
	go debounce.Run(ctx)
	go service.Run(ctx, debounce.Snapshots())

	mux := http.NewServeMux()
	New(service, debounce).Register(mux)
	daemon := httptest.NewServer(mux)
	t.Cleanup(daemon.Close)

	return service, daemon
}

func TestSettingsEndpoints(t *testing.T) {
	backend := newFakeBackend(t)
	_, daemon := setupServer(t, backend.server.URL)

	res, err := http.Get(daemon.URL + "/api/settings")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var settings tracker.Settings
	require.NoError(t, json.NewDecoder(res.Body).Decode(&settings))
	require.Equal(t, "emp-1", settings.EmployeeID)
	require.True(t, settings.TrackingEnabled)

	settings.AccountLabel = "desk-2"
	body, err := json.Marshal(settings)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, daemon.URL+"/api/settings", strings.NewReader(string(body)))
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var updated tracker.Settings
	require.NoError(t, json.NewDecoder(res.Body).Decode(&updated))
	require.Equal(t, "desk-2", updated.AccountLabel)
}

func TestPutSettingsMalformedBody(t *testing.T) {
	backend := newFakeBackend(t)
	_, daemon := setupServer(t, backend.server.URL)

	req, err := http.NewRequest(http.MethodPut, daemon.URL+"/api/settings", strings.NewReader("{not json"))
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestBackfillWithoutSnapshot(t *testing.T) {
	backend := newFakeBackend(t)
	_, daemon := setupServer(t, backend.server.URL)

	res, err := http.Post(daemon.URL+"/api/backfill", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestPageSocketDrivesDelivery(t *testing.T) {
	backend := newFakeBackend(t)
	service, daemon := setupServer(t, backend.server.URL)

	wsURL := "ws" + strings.TrimPrefix(daemon.URL, "http") + "/ws/page"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	err = conn.WriteJSON(map[string]string{"type": "snapshot", "html": historyPageHtml})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return backend.Orders() == 1
	}, time.Second*5, time.Millisecond*10)
	require.Eventually(t, func() bool {
		return service.Status().DeliveredOrders == 1
	}, time.Second*5, time.Millisecond*10)

	// the connectivity probe and the delivery both push a banner back
	// over the socket
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second*5)))
	var msg struct {
		Type    string `json:"type"`
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "notification", msg.Type)

	// with the page still open, the same snapshot scans again but the
	// order is already in the ledger
	err = conn.WriteJSON(map[string]string{"type": "snapshot", "html": historyPageHtml})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return service.Status().SnapshotsSeen == 2
	}, time.Second*5, time.Millisecond*10)
	require.Equal(t, 1, backend.Orders())
}

func TestEmployeesProxy(t *testing.T) {
	backend := newFakeBackend(t)
	_, daemon := setupServer(t, backend.server.URL)

	res, err := http.Get(daemon.URL + "/api/employees")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var employees []tracker.Employee
	require.NoError(t, json.NewDecoder(res.Body).Decode(&employees))
	require.Equal(t, []tracker.Employee{{ID: 1, Name: "Алиса", Telegram: "@alisa"}}, employees)
}

func TestStatusEndpoint(t *testing.T) {
	backend := newFakeBackend(t)
	_, daemon := setupServer(t, backend.server.URL)

	res, err := http.Get(daemon.URL + "/api/status")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var status tracker.Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	require.True(t, status.TrackingEnabled)
	require.True(t, status.EmployeeConfigured)
	require.False(t, status.HasSnapshot)
}
