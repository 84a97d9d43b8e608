package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pizzaservice/internal/auth"
	"pizzaservice/internal/metrics"
	"pizzaservice/internal/shared"
)

const testServerName = "pizzaservice test"

var (
	keysOnce sync.Once
	testKeys *shared.KeyMaterial
)

func testAuthority(t *testing.T) *auth.Authority {
	t.Helper()
	keysOnce.Do(func() {
		km, err := shared.GenerateKeyMaterial(2048)
		if err != nil {
			panic(err)
		}
		testKeys = km
	})
	a, err := auth.NewAuthority(testServerName, testKeys)
	require.NoError(t, err)
	return a
}

// fakeStore keeps orders in memory.
type fakeStore struct {
	mu      sync.Mutex
	catalog map[int64]shared.ReceiptLine
	orders  map[int64]shared.OrderForm
	nextID  int64
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		catalog: map[int64]shared.ReceiptLine{
			1: {PizzaID: 1, Description: "Margherita", Price: 7.5},
			2: {PizzaID: 2, Description: "Salami", Price: 8.5},
		},
		orders: map[int64]shared.OrderForm{},
		nextID: 1,
	}
}

func (f *fakeStore) PlaceOrder(ctx context.Context, form shared.OrderForm) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	id := f.nextID
	f.nextID++
	f.orders[id] = form
	return id, nil
}

func (f *fakeStore) Receipt(ctx context.Context, orderID int64) (*shared.ReceiptData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	form, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	rows := make([]shared.ReceiptLine, 0, len(form.PizzaIDs))
	for _, id := range form.PizzaIDs {
		rows = append(rows, f.catalog[id])
	}
	return &shared.ReceiptData{
		Address:   form.Address,
		Name:      form.Name,
		Timestamp: "2026-01-01 12:00:00",
		Lines:     aggregateLines(rows),
	}, nil
}

func (f *fakeStore) PizzaIDs(ctx context.Context) (map[int64]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ids := make(map[int64]struct{}, len(f.catalog))
	for id := range f.catalog {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func newTestAPI(t *testing.T, store Store) *API {
	t.Helper()
	static, err := OpenStaticRoot(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { static.Close() })
	return &API{
		Store:     store,
		Auth:      testAuthority(t),
		Static:    static,
		Responder: Responder{ServerName: testServerName},
		Metrics:   metrics.NewCollector(""),
	}
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	require.NotNil(t, res)
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	return string(b)
}

func jsonUnmarshal(body string, v any) error {
	return json.Unmarshal([]byte(body), v)
}
