package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzaservice/internal/shared"
)

// roundTrip serializes res the way a connection does and parses it back as
// a client would.
func roundTrip(t *testing.T, res *http.Response) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, res.Write(&buf))
	got, err := http.ReadResponse(bufio.NewReader(&buf), nil)
	require.NoError(t, err)
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	return got, string(body)
}

func TestResponderHeaders(t *testing.T) {
	b := Responder{ServerName: "pizzaservice v0.1"}

	res, body := roundTrip(t, b.BadRequest("insufficient form data"))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "pizzaservice v0.1", res.Header.Get("Server"))
	assert.Equal(t, "text/plain", res.Header.Get("Content-Type"))
	assert.Equal(t, int64(len(body)), res.ContentLength)
	assert.True(t, res.Close)
	assert.Equal(t, "insufficient form data\n", body)

	res, _ = roundTrip(t, b.Unauthorized("invalid token provided"))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Bearer", res.Header.Get("WWW-Authenticate"))

	res, body = roundTrip(t, b.NotFound("/nope"))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "resource not found: '/nope'\n", body)

	res, body = roundTrip(t, b.Token("a.b.c"))
	assert.Equal(t, shared.ContentTypeJWT, res.Header.Get("Content-Type"))
	assert.Equal(t, "a.b.c", body)

	res, body = roundTrip(t, b.Index())
	assert.Equal(t, http.StatusNotImplemented, res.StatusCode)
	assert.Equal(t, "text/html", res.Header.Get("Content-Type"))
	assert.Contains(t, body, "There is no frontend")
}

func TestReceiptJSONEscapesArbitraryText(t *testing.T) {
	data := &shared.ReceiptData{
		Address:   "Line 1\nLine \"2\" \\ <b>&</b>\t\u0001",
		Name:      "Zoë   ☃",
		Timestamp: "2026-10-18 09:30:00",
		Lines: []shared.ReceiptLine{
			{PizzaID: 1, Description: "Margherita", Count: 2, Price: 7.5},
			{PizzaID: 4, Description: `Quattro "Formaggi"`, Count: 1, Price: 9.9},
			{PizzaID: 3, Description: "Funghi", Count: 1, Price: 8},
		},
	}

	_, body := roundTrip(t, Responder{}.ReceiptJSON(data))

	var doc shared.ReceiptDocument
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	assert.Equal(t, data.Address, doc.Address)
	assert.Equal(t, data.Name, doc.Name)
	assert.Equal(t, data.Timestamp, doc.Timestamp)
	assert.Equal(t, []shared.ReceiptItemJSON{
		{ID: "1", Price: "7.5", Count: "2", Description: "Margherita"},
		{ID: "4", Price: "9.9", Count: "1", Description: `Quattro "Formaggi"`},
		{ID: "3", Price: "8", Count: "1", Description: "Funghi"},
	}, doc.OrderItems)
}

func TestReceiptJSONFieldOrder(t *testing.T) {
	body, err := encodeReceipt(&shared.ReceiptData{
		Address: "a", Name: "n", Timestamp: "t",
		Lines: []shared.ReceiptLine{{PizzaID: 2, Description: "d", Count: 1, Price: 8.5}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"address":"a","name":"n","timestamp":"t","order_items":[{"id":"2","price":"8.5","count":"1","description":"d"}]}`,
		strings.TrimSpace(string(body)))
}

func TestReceiptJSONEmptyItems(t *testing.T) {
	body, err := encodeReceipt(&shared.ReceiptData{})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"order_items":[]`)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "7.5", formatPrice(7.5))
	assert.Equal(t, "8", formatPrice(8))
	assert.Equal(t, "9.99", formatPrice(9.99))
	assert.Equal(t, "12.3457", formatPrice(12.345678))
}
