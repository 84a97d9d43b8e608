package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Router picks the handler for a request. chi does the path matching; the
// handler itself is run later by the connection, so routing never writes.
type Router struct {
	mux       *chi.Mux
	responder Responder
}

// routeSlot is the ResponseWriter handed to chi. Matched routes store
// their handler in it instead of writing.
type routeSlot struct {
	header  http.Header
	handler HandlerFunc
}

func (s *routeSlot) Header() http.Header         { return s.header }
func (s *routeSlot) Write(b []byte) (int, error) { return len(b), nil }
func (s *routeSlot) WriteHeader(int)             {}

func NewRouter(api *API) *Router {
	rt := &Router{mux: chi.NewRouter(), responder: api.Responder}

	rt.mux.Get("/pubkey", rt.bind(api.PubKey))
	rt.mux.Get("/receipt", rt.bind(api.Receipt))
	rt.mux.Get("/*", rt.bind(api.StaticFile))
	rt.mux.Post("/order", rt.bind(api.Order))
	rt.mux.Post("/*", rt.bind(api.NotFound))
	rt.mux.NotFound(rt.bind(api.NotFound))
	rt.mux.MethodNotAllowed(rt.bind(api.NotFound))
	return rt
}

func (rt *Router) bind(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := w.(*routeSlot); ok {
			slot.handler = h
		}
	}
}

// Route dispatches on method first, then on path.
func (rt *Router) Route(req *Request) HandlerFunc {
	switch req.Method {
	case http.MethodGet, http.MethodPost:
	default:
		return rt.reject("invalid request method")
	}
	if !strings.HasPrefix(req.Path, "/") {
		return rt.reject("invalid request target")
	}

	slot := &routeSlot{header: http.Header{}}
	rt.mux.ServeHTTP(slot, &http.Request{
		Method: req.Method,
		URL:    &url.URL{Path: req.Path},
		Header: http.Header{},
	})
	if slot.handler == nil {
		return rt.reject("invalid request target")
	}
	return slot.handler
}

func (rt *Router) reject(reason string) HandlerFunc {
	return func(context.Context, *Request) *http.Response {
		return rt.responder.BadRequest(reason)
	}
}
