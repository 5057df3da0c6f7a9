// Package remote runs a unit served by another process over gRPC. The
// wire contract is the runtime-built RunnableService (see proto.go):
// inputs, outputs and per-call configuration all travel as
// google.protobuf.Struct, so the host side can be implemented in any
// toolchain without sharing generated code.
//
// A Unit is rebuildable: its endpoint and per-call timeout are
// constructor-level fields, so a configurable wrapper can retarget it at
// call time.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/billvsme/langchain/internal/runnable"
)

// Unit invokes a remotely served runnable.
type Unit struct {
	caller      Caller
	ownedCaller bool
	desc        *Descriptors

	endpoint string
	timeout  time.Duration

	transportOpts []Option
}

// UnitOption configures a Unit at construction time.
type UnitOption func(*Unit)

// WithCaller substitutes the transport, bypassing endpoint-based dialing.
func WithCaller(c Caller) UnitOption {
	return func(u *Unit) { u.caller = c }
}

// WithTimeout bounds every call issued by this unit.
func WithTimeout(d time.Duration) UnitOption {
	return func(u *Unit) { u.timeout = d }
}

// WithTransportOptions forwards options to the transport the unit builds
// for its endpoint. Ignored when a caller is substituted.
func WithTransportOptions(opts ...Option) UnitOption {
	return func(u *Unit) { u.transportOpts = opts }
}

// NewUnit builds a remote unit for the given endpoint.
func NewUnit(endpoint string, opts ...UnitOption) (*Unit, error) {
	desc, err := BuildDescriptors()
	if err != nil {
		return nil, err
	}
	u := &Unit{desc: desc, endpoint: endpoint}
	for _, f := range opts {
		f(u)
	}
	if u.caller == nil {
		u.caller = u.dialTransport()
		u.ownedCaller = true
	}
	return u, nil
}

func (u *Unit) dialTransport() *Transport {
	opts := append([]Option{
		WithProvider(NewStaticEndpoints(map[string][]string{
			ServiceName: {u.endpoint},
		})),
	}, u.transportOpts...)
	return NewTransport(opts...)
}

// Close releases the transport, when the unit owns it.
func (u *Unit) Close() error {
	if !u.ownedCaller {
		return nil
	}
	if t, ok := u.caller.(*Transport); ok {
		return t.Close()
	}
	return nil
}

var _ runnable.Rebuildable[*structpb.Struct, *structpb.Struct] = (*Unit)(nil)
var _ runnable.FieldDeclarer = (*Unit)(nil)

func (u *Unit) Invoke(ctx context.Context, input *structpb.Struct, config *runnable.Config) (*structpb.Struct, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}
	req, err := u.invokeRequest(input, config)
	if err != nil {
		return nil, err
	}
	resp, err := u.caller.Call(ctx, u.desc.Invoke, req)
	if err != nil {
		return nil, err
	}
	return structField(resp, "output")
}

func (u *Unit) AInvoke(ctx context.Context, input *structpb.Struct, config *runnable.Config) *runnable.Future[*structpb.Struct] {
	return runnable.GoFuture(func() (*structpb.Struct, error) {
		return u.Invoke(ctx, input, config)
	})
}

// Batch sends the whole batch as a single RPC; the host fans out on its
// side and reports per-item failures positionally.
func (u *Unit) Batch(ctx context.Context, inputs []*structpb.Struct, configs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[*structpb.Struct], error) {
	cfgs, err := runnable.ConfigList(configs, len(inputs))
	if err != nil {
		return nil, err
	}
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	in := u.desc.Batch.Input()
	req := dynamicpb.NewMessage(in)
	items := req.Mutable(in.Fields().ByName("items")).List()
	for i, input := range inputs {
		item, err := u.invokeRequest(input, cfgs[i])
		if err != nil {
			return nil, err
		}
		items.Append(protoreflect.ValueOfMessage(item))
	}
	req.Set(in.Fields().ByName("return_exceptions"), protoreflect.ValueOfBool(opts.ReturnExceptions))

	resp, err := u.caller.Call(ctx, u.desc.Batch, req)
	if err != nil {
		return nil, err
	}

	// Decode with the response's own descriptors; the caller may have
	// built the reply from an independent descriptor set.
	resultsFd := resp.Descriptor().Fields().ByName("results")
	if resultsFd == nil {
		return nil, fmt.Errorf("remote: message %s has no field %q", resp.Descriptor().FullName(), "results")
	}
	list := resp.Get(resultsFd).List()
	if list.Len() != len(inputs) {
		return nil, fmt.Errorf("remote: host returned %d results for %d inputs", list.Len(), len(inputs))
	}
	results := make([]runnable.Result[*structpb.Struct], len(inputs))
	for i := 0; i < list.Len(); i++ {
		item := list.Get(i).Message()
		if msg := item.Get(item.Descriptor().Fields().ByName("error")).String(); msg != "" {
			itemErr := fmt.Errorf("%w: %s", ErrRemote, msg)
			if !opts.ReturnExceptions {
				return nil, itemErr
			}
			results[i] = runnable.Result[*structpb.Struct]{Err: itemErr}
			continue
		}
		v, err := structField(item, "output")
		if err != nil {
			return nil, err
		}
		results[i] = runnable.Result[*structpb.Struct]{Value: v}
	}
	return results, nil
}

// ABatch is the same single RPC as Batch; the host owns the fan-out
// either way.
func (u *Unit) ABatch(ctx context.Context, inputs []*structpb.Struct, configs []*runnable.Config, opts runnable.BatchOptions) ([]runnable.Result[*structpb.Struct], error) {
	return u.Batch(ctx, inputs, configs, opts)
}

func (u *Unit) Stream(ctx context.Context, input *structpb.Struct, config *runnable.Config) (*runnable.Stream[*structpb.Struct], error) {
	req, err := u.invokeRequest(input, config)
	if err != nil {
		return nil, err
	}
	recv, err := u.caller.OpenStream(ctx, u.desc.Stream, req)
	if err != nil {
		return nil, err
	}
	s := runnable.StreamFunc(func() (*structpb.Struct, bool, error) {
		msg, err := recv.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, false, nil
			}
			return nil, false, err
		}
		chunk, err := structField(msg, "chunk")
		if err != nil {
			return nil, false, err
		}
		return chunk, true, nil
	})
	return s.OnClose(recv.Close), nil
}

func (u *Unit) Transform(ctx context.Context, input *runnable.Stream[*structpb.Struct], config *runnable.Config) (*runnable.Stream[*structpb.Struct], error) {
	return runnable.MapStream(input, func(chunk *structpb.Struct) (*structpb.Struct, error) {
		return u.Invoke(ctx, chunk, config)
	}), nil
}

func (u *Unit) ConfigSpecs() []runnable.FieldSpec { return nil }

func (u *Unit) Fields() map[string]any {
	return map[string]any{
		"endpoint": u.endpoint,
		"timeout":  u.timeout,
	}
}

func (u *Unit) Rebuild(overrides map[string]any) (runnable.Runnable[*structpb.Struct, *structpb.Struct], error) {
	next := &Unit{
		caller:        u.caller,
		desc:          u.desc,
		endpoint:      u.endpoint,
		timeout:       u.timeout,
		transportOpts: u.transportOpts,
	}
	redial := false
	for name, v := range overrides {
		switch name {
		case "endpoint":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("endpoint: expected string, got %T", v)
			}
			if s != next.endpoint {
				next.endpoint = s
				redial = true
			}
		case "timeout":
			d, err := asDuration(v)
			if err != nil {
				return nil, fmt.Errorf("timeout: %w", err)
			}
			next.timeout = d
		default:
			return nil, fmt.Errorf("%w: %q", runnable.ErrUnknownField, name)
		}
	}
	// An endpoint override only reroutes a unit that dialed its own
	// transport; a substituted caller keeps its own routing.
	if redial && u.ownedCaller {
		next.caller = next.dialTransport()
		next.ownedCaller = true
	}
	return next, nil
}

func (u *Unit) FieldDecl(name string) (runnable.FieldDecl, bool) {
	switch name {
	case "endpoint":
		return runnable.FieldDecl{Description: "Host address (host:port) serving the unit", Annotation: "string"}, true
	case "timeout":
		return runnable.FieldDecl{Description: "Per-call deadline", Annotation: "duration"}, true
	}
	return runnable.FieldDecl{}, false
}

func asDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		return time.ParseDuration(d)
	default:
		return 0, fmt.Errorf("expected duration or string, got %T", v)
	}
}

// invokeRequest encodes one input and its config as an InvokeRequest.
func (u *Unit) invokeRequest(input *structpb.Struct, config *runnable.Config) (*dynamicpb.Message, error) {
	in := u.desc.Invoke.Input()
	req := dynamicpb.NewMessage(in)
	if input != nil {
		req.Set(in.Fields().ByName("input"), protoreflect.ValueOfMessage(input.ProtoReflect()))
	}
	cfg, err := EncodeConfig(config)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		req.Set(in.Fields().ByName("config"), protoreflect.ValueOfMessage(cfg.ProtoReflect()))
	}
	return req, nil
}

// EncodeConfig renders a per-call config as a Struct for the wire. A nil
// config encodes to nil.
func EncodeConfig(config *runnable.Config) (*structpb.Struct, error) {
	if config == nil {
		return nil, nil
	}
	m := map[string]any{}
	if config.RunName != "" {
		m["run_name"] = config.RunName
	}
	if len(config.Tags) > 0 {
		tags := make([]any, len(config.Tags))
		for i, t := range config.Tags {
			tags[i] = t
		}
		m["tags"] = tags
	}
	if len(config.Metadata) > 0 {
		m["metadata"] = config.Metadata
	}
	if len(config.Configurable) > 0 {
		m["configurable"] = config.Configurable
	}
	if config.MaxConcurrency > 0 {
		m["max_concurrency"] = config.MaxConcurrency
	}
	if len(m) == 0 {
		return nil, nil
	}
	return structpb.NewStruct(m)
}

// structField extracts a google.protobuf.Struct field from a dynamic
// message. Dynamic messages materialize nested messages dynamically, so
// the value is re-encoded into the concrete type.
func structField(msg protoreflect.Message, name protoreflect.Name) (*structpb.Struct, error) {
	fd := msg.Descriptor().Fields().ByName(name)
	if fd == nil {
		return nil, fmt.Errorf("remote: message %s has no field %q", msg.Descriptor().FullName(), name)
	}
	if !msg.Has(fd) {
		return nil, nil
	}
	inner := msg.Get(fd).Message().Interface()
	if s, ok := inner.(*structpb.Struct); ok {
		return s, nil
	}
	b, err := proto.Marshal(inner)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := proto.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
