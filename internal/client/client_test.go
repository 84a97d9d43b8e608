package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzaservice/internal/auth"
	"pizzaservice/internal/shared"
)

func newAuthority(t *testing.T) *auth.Authority {
	t.Helper()
	km, err := shared.GenerateKeyMaterial(2048)
	require.NoError(t, err)
	a, err := auth.NewAuthority("test", km)
	require.NoError(t, err)
	return a
}

func TestPlaceOrder(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, shared.ContentTypeForm, r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", shared.ContentTypeJWT)
		_, _ = w.Write([]byte("h.p.s"))
	}))
	defer srv.Close()

	token, err := New(srv.URL+"/", time.Second).PlaceOrder(context.Background(), shared.OrderForm{
		Name: "Ada", Address: "Main St & 1", PizzaIDs: []int64{2, 2, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "h.p.s", token)
	assert.Equal(t, "Ada", got.Get("name"))
	assert.Equal(t, "Main St & 1", got.Get("address"))
	assert.Equal(t, []string{"2", "2", "5"}, got["pizza_id"])
}

func TestPlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad pizza_id", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).PlaceOrder(context.Background(), shared.OrderForm{Name: "a", Address: "b", PizzaIDs: []int64{9}})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "bad pizza_id", se.Body)
}

func TestReceiptUsesTokenAudience(t *testing.T) {
	a := newAuthority(t)
	token, err := a.Issue(42)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/receipt", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("order_id"))
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", shared.ContentTypeJSON)
		_, _ = io.WriteString(w, `{"address":"b","name":"a","timestamp":"t","order_items":[{"id":"1","price":"7.5","count":"2","description":"Margherita"}]}`)
	}))
	defer srv.Close()

	doc, err := New(srv.URL, time.Second).Receipt(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Name)
	require.Len(t, doc.OrderItems, 1)
	assert.Equal(t, "2", doc.OrderItems[0].Count)
}

func TestReceiptBadToken(t *testing.T) {
	_, err := New("http://127.0.0.1:1", time.Second).Receipt(context.Background(), "not-a-token")
	assert.Error(t, err)
}
