package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	api := newTestAPI(t, newFakeStore())
	rt := NewRouter(api)

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{http.MethodGet, "/pubkey", http.StatusOK, ""},
		{http.MethodGet, "/receipt", http.StatusBadRequest, "no or invalid order_id provided\n"},
		{http.MethodPost, "/order", http.StatusBadRequest, "form data missing\n"},
		{http.MethodGet, "/", http.StatusNotImplemented, ""},
		{http.MethodGet, "/missing.css", http.StatusNotFound, "resource not found: '/missing.css'\n"},
		{http.MethodPost, "/pubkey", http.StatusNotFound, "resource not found: '/pubkey'\n"},
		{http.MethodPost, "/", http.StatusNotFound, "resource not found: '/'\n"},
		{http.MethodPut, "/order", http.StatusBadRequest, "invalid request method\n"},
		{http.MethodDelete, "/", http.StatusBadRequest, "invalid request method\n"},
		{http.MethodGet, "*", http.StatusBadRequest, "invalid request target\n"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := &Request{
				Method: tt.method,
				Target: tt.path,
				Path:   tt.path,
				Query:  QueryParams{OrderID: OrderIDAbsent},
				Header: http.Header{},
			}
			res := rt.Route(req)(context.Background(), req)
			assert.Equal(t, tt.status, res.StatusCode)
			body := readBody(t, res)
			if tt.body != "" {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}
