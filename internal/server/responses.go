package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"pizzaservice/internal/shared"
)

const indexPage = `<!DOCTYPE html>
<html><head><title>oops</title></head>
<body><p>There is no frontend. Read the api reference for usage information.</p></body>
</html>
`

// Responder builds the closed set of responses the server writes. Every
// response names the server, carries an exact Content-Length and closes the
// connection.
type Responder struct {
	ServerName string
}

func (b Responder) base(status int, contentType string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			"Server":       {b.ServerName},
			"Content-Type": {contentType},
		},
		Close: true,
	}
}

func withBody(res *http.Response, body []byte) *http.Response {
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	return res
}

func (b Responder) text(status int, reason string) *http.Response {
	return withBody(b.base(status, "text/plain"), []byte(reason+"\n"))
}

func (b Responder) BadRequest(reason string) *http.Response {
	return b.text(http.StatusBadRequest, reason)
}

func (b Responder) Unauthorized(reason string) *http.Response {
	res := b.text(http.StatusUnauthorized, reason)
	res.Header.Set("WWW-Authenticate", "Bearer")
	return res
}

func (b Responder) ServerError(reason string) *http.Response {
	return b.text(http.StatusInternalServerError, reason)
}

func (b Responder) NotFound(target string) *http.Response {
	return b.text(http.StatusNotFound, "resource not found: '"+target+"'")
}

// StaticFile streams body; the caller hands over ownership of body.
func (b Responder) StaticFile(name string, body io.ReadCloser, size int64) *http.Response {
	res := b.base(http.StatusOK, contentTypeFor(name))
	res.Body = body
	res.ContentLength = size
	return res
}

func (b Responder) PubKey(pem []byte) *http.Response {
	return withBody(b.base(http.StatusOK, "text/plain"), pem)
}

func (b Responder) Token(token string) *http.Response {
	return withBody(b.base(http.StatusOK, shared.ContentTypeJWT), []byte(token))
}

func (b Responder) ReceiptJSON(data *shared.ReceiptData) *http.Response {
	body, err := encodeReceipt(data)
	if err != nil {
		return b.ServerError("error rendering receipt")
	}
	return withBody(b.base(http.StatusOK, shared.ContentTypeJSON), body)
}

// Index is the placeholder page for GET / when no static index exists.
func (b Responder) Index() *http.Response {
	return withBody(b.base(http.StatusNotImplemented, "text/html"), []byte(indexPage))
}

// encodeReceipt renders the receipt document. The encoder escapes every
// string, so name and address can hold arbitrary text.
func encodeReceipt(data *shared.ReceiptData) ([]byte, error) {
	doc := shared.ReceiptDocument{
		Address:    data.Address,
		Name:       data.Name,
		Timestamp:  data.Timestamp,
		OrderItems: make([]shared.ReceiptItemJSON, 0, len(data.Lines)),
	}
	for _, l := range data.Lines {
		doc.OrderItems = append(doc.OrderItems, shared.ReceiptItemJSON{
			ID:          strconv.FormatInt(l.PizzaID, 10),
			Price:       formatPrice(l.Price),
			Count:       strconv.FormatInt(l.Count, 10),
			Description: l.Description,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatPrice prints at most six significant digits, trailing zeros
// dropped: 7.5 -> "7.5", 8 -> "8".
func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'g', 6, 64)
}
