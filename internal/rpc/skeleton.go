package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/distfs/distfs/internal/dfserr"
	"github.com/distfs/distfs/internal/metrics"
)

// Handler dispatches one decoded RPC call's arguments to the service
// implementation and returns the (gob-registered) reply value.
type Handler func(ctx context.Context, args []any) (any, error)

// Skeleton is the server side of the RPC substrate: it binds a TCP
// listener, accepts connections, and spawns one worker per connection
// that reads a single framed request, dispatches it through the
// handler table, and writes a single framed reply.
//
// Construction validates that handlers covers exactly the expected
// method set for the interface being served (see NewSkeleton), so a
// Skeleton for a malformed interface description fails at construction
// time rather than at first call, satisfying spec §4.5's "Remote
// interface contract."
type Skeleton struct {
	iface    string
	handlers map[string]Handler

	// OnListenError is invoked on a top-level Accept error. Returning
	// true resumes the accept loop; false shuts it down. The default
	// (nil) always resumes, since transient accept errors (e.g. a
	// momentarily exhausted file descriptor table) should not bring
	// down the server.
	OnListenError func(error) bool
	// OnServiceError observes a per-connection dispatch error. It does
	// not control the accept loop.
	OnServiceError func(err error, peer net.Addr)

	mu      sync.Mutex
	ln      net.Listener
	running bool
	closeCh chan struct{}
	wg      sync.WaitGroup
	onStop  sync.Once
}

// NewSkeleton constructs a Skeleton for the named interface, dispatching
// to handlers. methods lists every method the interface declares; any
// name present in handlers but absent from methods, or vice versa,
// panics immediately — the "fails deterministically at construction
// time" the spec calls for when a remote interface's contract is
// violated.
func NewSkeleton(iface string, methods []string, handlers map[string]Handler) *Skeleton {
	want := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		want[m] = struct{}{}
	}
	for m := range handlers {
		if _, ok := want[m]; !ok {
			panic("rpc: " + iface + ": handler for undeclared method " + m)
		}
	}
	for m := range want {
		if _, ok := handlers[m]; !ok {
			panic("rpc: " + iface + ": missing handler for declared method " + m)
		}
	}
	return &Skeleton{iface: iface, handlers: handlers}
}

// Start binds addr (an ephemeral port if empty or ending in ":0") and
// begins accepting connections in a background goroutine. A second
// Start before a matching Stop fails with dfserr.InvalidState.
func (s *Skeleton) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return dfserr.New(dfserr.InvalidState, "skeleton %s already started", s.iface)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return dfserr.Wrap(dfserr.RPC, err, "listen "+s.iface)
	}
	s.ln = ln
	s.running = true
	s.closeCh = make(chan struct{})
	s.onStop = sync.Once{}
	go s.acceptLoop(ln, s.closeCh)
	return nil
}

// Addr returns the bound listener address, or nil if not started.
func (s *Skeleton) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Skeleton) acceptLoop(ln net.Listener, closeCh chan struct{}) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-closeCh:
				return
			default:
			}
			resume := true
			if s.OnListenError != nil {
				resume = s.OnListenError(err)
			}
			if !resume {
				return
			}
			continue
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Skeleton) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	ctx := context.Background()
	var req request
	if err := readFrame(conn, &req); err != nil {
		s.serviceError(err, conn.RemoteAddr())
		return
	}
	start := time.Now()
	rep := s.dispatch(ctx, req)
	outcome := "ok"
	if rep.Err != nil {
		outcome = "error"
	}
	metrics.RPCCalls.WithLabelValues(req.Method, outcome).Inc()
	metrics.RPCLatency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err := writeFrame(conn, &rep); err != nil {
		s.serviceError(err, conn.RemoteAddr())
	}
}

func (s *Skeleton) dispatch(ctx context.Context, req request) reply {
	ctx, span := tracer.Start(ctx, "rpc."+req.Method, trace.WithAttributes(
		attribute.String("rpc.iface", s.iface),
	))
	defer span.End()

	h, ok := s.handlers[req.Method]
	if !ok {
		err := dfserr.New(dfserr.RPC, "%s: unknown method %q", s.iface, req.Method)
		span.SetStatus(codes.Error, err.Error())
		return reply{Err: err}
	}
	v, err := h(ctx, req.Args)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		var de *dfserr.Error
		if errors.As(err, &de) {
			return reply{Err: de}
		}
		return reply{Err: dfserr.Wrap(dfserr.RPC, err, s.iface+"."+req.Method)}
	}
	return reply{Value: v}
}

func (s *Skeleton) serviceError(err error, peer net.Addr) {
	if s.OnServiceError != nil {
		s.OnServiceError(err, peer)
		return
	}
	slog.Default().Warn("rpc service error", "iface", s.iface, "peer", peer, "err", err)
}

// Stop instructs the listener to stop accepting, waits for every
// in-flight worker to finish its single request/reply, and invokes
// onStopped (if non-nil) exactly once. Stop on a not-running Skeleton
// fails with dfserr.InvalidState.
func (s *Skeleton) Stop(onStopped func()) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return dfserr.New(dfserr.InvalidState, "skeleton %s not running", s.iface)
	}
	close(s.closeCh)
	ln := s.ln
	s.running = false
	s.mu.Unlock()

	// Unblocks Accept immediately; any connection already accepted
	// keeps running to completion via s.wg.
	ln.Close()
	s.wg.Wait()

	s.onStop.Do(func() {
		if onStopped != nil {
			onStopped()
		}
	})
	return nil
}
