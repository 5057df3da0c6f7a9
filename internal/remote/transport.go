package remote

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/billvsme/langchain/internal/eventbus"
	"github.com/billvsme/langchain/internal/events"
)

// Caller is the transport surface a remote unit depends on. Transport is
// the production implementation; tests substitute their own.
type Caller interface {
	Call(ctx context.Context, method protoreflect.MethodDescriptor, req *dynamicpb.Message) (*dynamicpb.Message, error)
	OpenStream(ctx context.Context, method protoreflect.MethodDescriptor, req *dynamicpb.Message) (StreamReceiver, error)
}

// StreamReceiver reads messages from a server stream. Recv returns io.EOF
// at the end of the stream. Close releases the stream early.
type StreamReceiver interface {
	Recv() (*dynamicpb.Message, error)
	Close() error
}

// Transport is a gRPC transport with per-endpoint connection pooling and
// deadline propagation.
type Transport struct {
	opts *Options

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	closed atomic.Bool
}

func NewTransport(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{
		opts:  o,
		pools: make(map[string]*connPool),
	}
}

var _ Caller = (*Transport)(nil)

func (t *Transport) Call(ctx context.Context, method protoreflect.MethodDescriptor, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	service := string(method.Parent().FullName())
	fullMethod := fmt.Sprintf("/%s/%s", service, method.Name())

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "x-langchain-service", service)

	endpoint, cc, err := t.pickConn(ctx, service)
	if err != nil {
		return nil, err
	}
	defer t.returnConn(endpoint, cc)

	start := time.Now()
	eventbus.Publish(ctx, events.RemoteCallStart{Service: service, Method: string(method.Name()), Target: endpoint})
	resp := dynamicpb.NewMessage(method.Output())
	err = cc.Invoke(ctx, fullMethod, req, resp)
	eventbus.Publish(ctx, events.RemoteCallFinish{
		Service:  service,
		Method:   string(method.Name()),
		Target:   endpoint,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *Transport) OpenStream(ctx context.Context, method protoreflect.MethodDescriptor, req *dynamicpb.Message) (StreamReceiver, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	service := string(method.Parent().FullName())
	fullMethod := fmt.Sprintf("/%s/%s", service, method.Name())
	ctx = metadata.AppendToOutgoingContext(ctx, "x-langchain-service", service)

	endpoint, cc, err := t.pickConn(ctx, service)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	desc := &grpc.StreamDesc{StreamName: string(method.Name()), ServerStreams: true}
	cs, err := cc.NewStream(streamCtx, desc, fullMethod)
	if err != nil {
		cancel()
		t.returnConn(endpoint, cc)
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		cancel()
		t.returnConn(endpoint, cc)
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		t.returnConn(endpoint, cc)
		return nil, err
	}
	start := time.Now()
	eventbus.Publish(ctx, events.RemoteCallStart{Service: service, Method: string(method.Name()), Target: endpoint})
	return &grpcStream{
		cs:     cs,
		output: method.Output(),
		cancel: cancel,
		release: func(err error) {
			eventbus.Publish(ctx, events.RemoteCallFinish{
				Service:  service,
				Method:   string(method.Name()),
				Target:   endpoint,
				Code:     status.Code(err),
				Err:      err,
				Duration: time.Since(start),
			})
			t.returnConn(endpoint, cc)
		},
	}, nil
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	t.pools = map[string]*connPool{}
	return nil
}

type grpcStream struct {
	cs       grpc.ClientStream
	output   protoreflect.MessageDescriptor
	cancel   context.CancelFunc
	release  func(error)
	released atomic.Bool
}

func (s *grpcStream) Recv() (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(s.output)
	if err := s.cs.RecvMsg(msg); err != nil {
		if err == io.EOF {
			s.done(nil)
			return nil, io.EOF
		}
		s.done(err)
		return nil, err
	}
	return msg, nil
}

func (s *grpcStream) Close() error {
	s.cancel()
	s.done(nil)
	return nil
}

func (s *grpcStream) done(err error) {
	if s.released.Swap(true) {
		return
	}
	s.release(err)
}

// ---------------- connection pooling ----------------

type connPool struct {
	endpoint string
	opts     *Options
	conns    chan *grpc.ClientConn
	closed   atomic.Bool
}

func newConnPool(endpoint string, opts *Options) *connPool {
	n := opts.MaxConnsPerEndpoint
	if n <= 0 {
		n = 2
	}
	return &connPool{
		endpoint: endpoint,
		opts:     opts,
		conns:    make(chan *grpc.ClientConn, n),
	}
}

func (p *connPool) get(ctx context.Context) (*grpc.ClientConn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case cc := <-p.conns:
		return cc, nil
	default:
		return grpc.DialContext(ctx, p.endpoint, p.opts.DialOptions...)
	}
}

func (p *connPool) put(cc *grpc.ClientConn) {
	if cc == nil || p.closed.Load() {
		if cc != nil {
			_ = cc.Close()
		}
		return
	}
	select {
	case p.conns <- cc:
	default:
		_ = cc.Close()
	}
}

func (p *connPool) close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.conns)
	for cc := range p.conns {
		_ = cc.Close()
	}
}

func (t *Transport) pickConn(ctx context.Context, service string) (string, *grpc.ClientConn, error) {
	if t.opts.Provider == nil {
		return "", nil, fmt.Errorf("remote: provider not configured")
	}
	endpoints, err := t.opts.Provider.Endpoints(ctx, service)
	if err != nil {
		return "", nil, err
	}
	endpoint := endpoints[rand.Intn(len(endpoints))]

	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		pool = t.pools[endpoint]
		if pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	cc, err := pool.get(ctx)
	if err != nil {
		return "", nil, err
	}
	return endpoint, cc, nil
}

func (t *Transport) returnConn(endpoint string, cc *grpc.ClientConn) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool != nil {
		pool.put(cc)
		return
	}
	_ = cc.Close()
}
