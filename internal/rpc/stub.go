package rpc

import (
	"context"
	"fmt"
	"hash/fnv"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/distfs/distfs/internal/dfserr"
)

// tracer is resolved lazily from the global otel TracerProvider, which
// defaults to a no-op implementation — tracing is a seam (SPEC_FULL.md
// §1.1), not a mandatory dependency for a correct build.
var tracer = otel.Tracer("github.com/distfs/distfs/internal/rpc")

const (
	// DefaultDialTimeout bounds how long a Stub waits to connect.
	DefaultDialTimeout = 5 * time.Second
	// DefaultReadTimeout bounds how long a Stub waits for a reply.
	DefaultReadTimeout = 30 * time.Second
)

// Stub is the client side of the RPC substrate: a lightweight, typed
// proxy that dials a fresh TCP connection per call, writes one framed
// request, and reads one framed reply.
//
// Two Stubs are Equal iff they target the same interface and the same
// network endpoint (spec §4.5 "Stub identity"); Hash is consistent
// with Equal so Stubs can key a map for connection-identity purposes
// without colliding across interfaces that happen to share an
// endpoint.
type Stub struct {
	// Iface names the remote interface this stub targets (e.g.
	// "coordinator.ClientService"), used for identity and logging.
	Iface string
	// Endpoint is the "host:port" the stub dials.
	Endpoint string

	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// NewStub constructs a Stub with the package's default timeouts.
func NewStub(iface, endpoint string) Stub {
	return Stub{
		Iface:       iface,
		Endpoint:    endpoint,
		DialTimeout: DefaultDialTimeout,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Equal reports stub identity per spec §4.5.
func (s Stub) Equal(o Stub) bool {
	return s.Iface == o.Iface && s.Endpoint == o.Endpoint
}

// Hash is consistent with Equal.
func (s Stub) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s", s.Iface, s.Endpoint)
	return h.Sum64()
}

// String includes the endpoint, per spec §4.5.
func (s Stub) String() string {
	return fmt.Sprintf("%s@%s", s.Iface, s.Endpoint)
}

// Call dials Endpoint, sends a request for method with args, and
// returns the reply's decoded value. Typed per-interface stub
// wrappers (internal/clientservice, internal/registration,
// internal/storage) type-assert the
// returned value to the concrete reply type each method promises. If
// the peer replied with an error, Call returns it directly (already a
// *dfserr.Error, satisfying errors.As). Any connection or protocol
// failure is reported as dfserr.RPC.
func (s Stub) Call(ctx context.Context, method string, args []any) (any, error) {
	ctx, span := tracer.Start(ctx, "rpc."+method, trace.WithAttributes(
		attribute.String("rpc.iface", s.Iface),
		attribute.String("rpc.endpoint", s.Endpoint),
	))
	defer span.End()

	v, err := s.call(ctx, method, args)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

func (s Stub) call(ctx context.Context, method string, args []any) (any, error) {
	dialer := net.Dialer{Timeout: s.dialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", s.Endpoint)
	if err != nil {
		return nil, dfserr.Wrap(dfserr.RPC, err, s.Iface+"."+method+": dial "+s.Endpoint)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	} else {
		conn.SetDeadline(time.Now().Add(s.readTimeout()))
	}

	if err := writeFrame(conn, &request{Method: method, Args: args}); err != nil {
		return nil, dfserr.Wrap(dfserr.RPC, err, s.Iface+"."+method+": write request")
	}

	var rep reply
	if err := readFrame(conn, &rep); err != nil {
		return nil, dfserr.Wrap(dfserr.RPC, err, s.Iface+"."+method+": read reply")
	}
	if rep.Err != nil {
		return nil, rep.Err
	}
	return rep.Value, nil
}

func (s Stub) dialTimeout() time.Duration {
	if s.DialTimeout > 0 {
		return s.DialTimeout
	}
	return DefaultDialTimeout
}

func (s Stub) readTimeout() time.Duration {
	if s.ReadTimeout > 0 {
		return s.ReadTimeout
	}
	return DefaultReadTimeout
}
