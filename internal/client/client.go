// Package client talks to a running pizza service: it places orders and
// redeems the returned tokens for receipts.
package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pizzaservice/internal/auth"
	"pizzaservice/internal/shared"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

// StatusError is returned for any non-200 reply. Body is the server's
// reason line.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return "server replied " + strconv.Itoa(e.Status) + ": " + e.Body
}

type Client struct {
	ServerURL string
	HTTP      *http.Client
}

func New(serverURL string, timeout time.Duration) *Client {
	return &Client{
		ServerURL: strings.TrimRight(serverURL, "/"),
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// PlaceOrder submits the order form and returns the token the server
// issued for it.
func (c *Client) PlaceOrder(ctx context.Context, form shared.OrderForm) (string, error) {
	values := url.Values{
		shared.FormName:    {form.Name},
		shared.FormAddress: {form.Address},
	}
	for _, id := range form.PizzaIDs {
		values.Add(shared.FormPizzaID, strconv.FormatInt(id, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerURL+"/order", strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", shared.ContentTypeForm)

	body, err := c.do(req)
	if err != nil {
		return "", errors.Wrap(err, "place order")
	}
	return strings.TrimSpace(string(body)), nil
}

// Receipt redeems token. The order id is read from the token's audience,
// the server does the actual verification.
func (c *Client) Receipt(ctx context.Context, token string) (*shared.ReceiptDocument, error) {
	orderID, err := auth.UnverifiedAudience(token)
	if err != nil {
		return nil, err
	}

	u := c.ServerURL + "/receipt?" + url.Values{"order_id": {orderID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "receipt for order %s", orderID)
	}
	var doc shared.ReceiptDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(err, "decode receipt")
	}
	return &doc, nil
}

// PubKey fetches the server's PEM-encoded verification key.
func (c *Client) PubKey(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerURL+"/pubkey", nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return b, nil
}
