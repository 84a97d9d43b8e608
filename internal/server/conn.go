package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pizzaservice/internal/logging"
)

type connState int

const (
	stateAccepted connState = iota
	stateReading
	stateFailed
	stateRouting
	stateHandling
	stateResponding
	stateClosed
	stateDeadlineExceeded
)

var connStateNames = [...]string{
	stateAccepted:         "accepted",
	stateReading:          "reading",
	stateFailed:           "failed",
	stateRouting:          "routing",
	stateHandling:         "handling",
	stateResponding:       "responding",
	stateClosed:           "closed",
	stateDeadlineExceeded: "deadline_exceeded",
}

func (s connState) String() string {
	if int(s) < len(connStateNames) {
		return connStateNames[s]
	}
	return "unknown"
}

// conn drives one client socket from accept to close. It is owned by the
// goroutine running serve; nothing else touches it except the deadline,
// which may close rwc at any time.
type conn struct {
	srv   *Server
	rwc   net.Conn
	rr    *requestReader
	log   *zap.Logger
	state connState
}

func newConn(srv *Server, rwc net.Conn, id string) *conn {
	return &conn{
		srv: srv,
		rwc: rwc,
		rr:  newRequestReader(rwc),
		log: srv.log.With(zap.String("conn", id), zap.Stringer("remote", rwc.RemoteAddr())),
	}
}

func (c *conn) setState(s connState) {
	c.state = s
	c.srv.metrics.State(s.String())
	c.log.Debug("state", zap.Stringer("state", s))
}

// serve runs the whole state machine. Exactly one response is written
// unless the deadline fires first, in which case none is.
func (c *conn) serve(ctx context.Context) {
	c.srv.metrics.ConnectionOpened()
	defer c.srv.metrics.ConnectionClosed()
	defer c.rwc.Close()
	c.setState(stateAccepted)

	ctx, cancel := context.WithTimeout(ctx, c.srv.deadline)
	defer cancel()
	stopDeadline := context.AfterFunc(ctx, func() { c.rwc.Close() })
	ctx = logging.WithContext(ctx, c.log)

	res := c.process(ctx)
	if ctx.Err() != nil {
		closeBody(res)
		c.expired()
		return
	}

	c.setState(stateResponding)
	werr := res.Write(c.rwc)
	closeBody(res)
	if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	if !stopDeadline() {
		c.expired()
		return
	}
	if werr != nil {
		c.log.Warn("write response", zap.Error(werr))
	} else {
		c.srv.metrics.Response(res.StatusCode)
	}
	c.setState(stateClosed)
}

// process reads, routes and handles one request and returns the response
// to write, or nil if the deadline interrupted it.
func (c *conn) process(ctx context.Context) *http.Response {
	c.setState(stateReading)
	req, err := c.rr.read()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.setState(stateFailed)
		if isTransportError(err) {
			c.log.Warn("read request", zap.Error(err))
			return c.srv.responder.ServerError(err.Error())
		}
		c.log.Info("malformed request", zap.Error(err))
		return c.srv.responder.BadRequest(err.Error())
	}
	c.log.Info("request", zap.String("method", req.Method), zap.String("target", req.Target))

	c.setState(stateRouting)
	h := c.srv.router.Route(req)

	c.setState(stateHandling)
	start := time.Now()
	res := c.handle(ctx, h, req)
	c.srv.metrics.ObserveHandle(time.Since(start))
	return res
}

func (c *conn) handle(ctx context.Context, h HandlerFunc, req *Request) (res *http.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panic", zap.Any("panic", r), zap.String("target", req.Target))
			res = c.srv.responder.ServerError("internal error")
		}
	}()
	res = h(ctx, req)
	if res == nil {
		res = c.srv.responder.ServerError("internal error")
	}
	return res
}

func (c *conn) expired() {
	c.srv.metrics.DeadlineExceeded()
	c.log.Info("deadline exceeded, closing without response", zap.Stringer("state", c.state))
	c.setState(stateDeadlineExceeded)
}

func closeBody(res *http.Response) {
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
}
