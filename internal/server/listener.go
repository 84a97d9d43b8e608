package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pizzaservice/internal/metrics"
	"pizzaservice/internal/shared"
)

type Options struct {
	// Deadline bounds each connection from accept to close.
	Deadline time.Duration

	// AcceptRate limits accepted connections per second. Zero disables
	// the limit.
	AcceptRate  float64
	AcceptBurst int
}

// Server accepts connections and runs one conn per socket. Every
// connection carries exactly one request and one response.
type Server struct {
	router    *Router
	responder Responder
	log       *zap.Logger
	metrics   *metrics.Collector
	deadline  time.Duration
	limiter   *rate.Limiter

	// activeConnections lets Serve drain in-flight connections before
	// returning.
	activeConnections sync.WaitGroup
}

func NewServer(router *Router, responder Responder, log *zap.Logger, m *metrics.Collector, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewCollector("")
	}
	s := &Server{
		router:    router,
		responder: responder,
		log:       log,
		metrics:   m,
		deadline:  opts.Deadline,
	}
	if s.deadline <= 0 {
		s.deadline = shared.DefaultDeadline
	}
	if opts.AcceptRate > 0 {
		burst := opts.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.AcceptRate), burst)
	}
	return s
}

// ListenAndServe binds addr over TCP and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then closes ln and waits
// for active connections. Connections already accepted keep running until
// they finish or hit their deadline.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("listening", zap.Stringer("addr", ln.Addr()), zap.Duration("deadline", s.deadline))

	var backoff time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
		}
		rwc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			backoff = nextAcceptBackoff(backoff)
			s.log.Error("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		c := newConn(s, rwc, uuid.NewString())
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			c.serve(context.WithoutCancel(ctx))
		}()
	}

	s.activeConnections.Wait()
	s.log.Info("listener stopped")
	return nil
}

// Accept errors such as EMFILE tend to persist; retry after 5ms, doubling
// up to 1s, the same schedule net/http uses.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

func nextAcceptBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}
