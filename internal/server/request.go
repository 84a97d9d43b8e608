package server

import (
	"bufio"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"pizzaservice/internal/shared"
)

// Sentinel values of QueryParams.OrderID.
const (
	OrderIDAbsent    int64 = -1
	OrderIDMalformed int64 = -2
)

// maxHeaderBytes bounds the request line plus headers, maxBodySize the
// body that follows.
const (
	maxHeaderBytes = 1 << 20
	maxBodySize    = 2 << 20
)

var (
	errHeaderTooLarge = errors.New("request header too large")
	errBodyTooLarge   = errors.New("body too large")
)

// readLimit is an io.LimitedReader that fails with err instead of EOF, so
// an oversized request is reported as malformed rather than truncated.
type readLimit struct {
	r   io.Reader
	n   int64
	err error
}

func (l *readLimit) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, l.err
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

// requestReader reads a single request from a connection, charging the
// header phase and the body phase against separate budgets.
type requestReader struct {
	lim *readLimit
	br  *bufio.Reader
}

func newRequestReader(r io.Reader) *requestReader {
	lim := &readLimit{r: r}
	return &requestReader{lim: lim, br: bufio.NewReaderSize(lim, 8192)}
}

type QueryParams struct {
	OrderID int64
	Debug   bool
}

// Request is one fully read client request.
type Request struct {
	Method string
	Target string
	Path   string
	Query  QueryParams
	Header http.Header
	Body   []byte
}

// read reads one complete request (headers and body).
func (rr *requestReader) read() (*Request, error) {
	rr.lim.n, rr.lim.err = maxHeaderBytes, errHeaderTooLarge
	hr, err := http.ReadRequest(rr.br)
	if err != nil {
		return nil, err
	}
	// Bytes already buffered were charged to the header budget.
	rr.lim.n, rr.lim.err = maxBodySize+1, errBodyTooLarge
	body, err := io.ReadAll(io.LimitReader(hr.Body, maxBodySize+1))
	hr.Body.Close()
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySize {
		return nil, errBodyTooLarge
	}

	return &Request{
		Method: hr.Method,
		Target: hr.RequestURI,
		Path:   hr.URL.Path,
		Query:  parseQuery(hr.URL.RawQuery),
		Header: hr.Header,
		Body:   body,
	}, nil
}

// isTransportError separates socket failures from requests the parser
// rejected as malformed.
func isTransportError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

// parseQuery extracts order_id and debug. Keys match case-insensitively and
// the last occurrence wins.
func parseQuery(rawQuery string) QueryParams {
	q := QueryParams{OrderID: OrderIDAbsent}
	if rawQuery == "" {
		return q
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		switch {
		case strings.EqualFold(key, "order_id"):
			id, err := strconv.ParseInt(val, 10, 64)
			if err != nil || id < 0 {
				q.OrderID = OrderIDMalformed
				continue
			}
			q.OrderID = id
		case strings.EqualFold(key, "debug"):
			if strings.EqualFold(val, "true") {
				q.Debug = true
			}
		}
	}
	return q
}

// parseOrderForm decodes an urlencoded order body. Unknown keys are
// ignored and pizza ids that are not integers are skipped.
func parseOrderForm(body []byte) shared.OrderForm {
	// ParseQuery keeps every well-formed pair even when it reports an error.
	values, _ := url.ParseQuery(string(body))

	form := shared.OrderForm{
		Name:    values.Get(shared.FormName),
		Address: values.Get(shared.FormAddress),
	}
	for _, raw := range values[shared.FormPizzaID] {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}
		form.PizzaIDs = append(form.PizzaIDs, id)
	}
	return form
}

func isFormContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == shared.ContentTypeForm
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header.
func bearerToken(h http.Header) (string, bool) {
	scheme, token, ok := strings.Cut(h.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
