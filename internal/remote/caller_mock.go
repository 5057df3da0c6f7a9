package remote

import (
	"context"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// mockCaller fakes a RunnableService host. Invoke echoes the input with a
// "served_by" marker; an input carrying a "fail" key fails with its value
// as the message. Stream yields the input N times.
type mockCaller struct {
	desc   *Descriptors
	chunks int

	mu      sync.Mutex
	methods []string
	configs []*structpb.Struct
}

func newMockCaller(desc *Descriptors) *mockCaller {
	return &mockCaller{desc: desc, chunks: 2}
}

func (m *mockCaller) record(method protoreflect.MethodDescriptor, req protoreflect.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods = append(m.methods, string(method.Name()))
	if fd := req.Descriptor().Fields().ByName("config"); fd != nil && req.Has(fd) {
		cfg, _ := structField(req, "config")
		m.configs = append(m.configs, cfg)
	}
}

func (m *mockCaller) serve(input *structpb.Struct) (*structpb.Struct, error) {
	if input != nil {
		if v, ok := input.Fields["fail"]; ok {
			return nil, fmt.Errorf("%s", v.GetStringValue())
		}
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"served_by": structpb.NewStringValue("mock"),
	}}
	if input != nil {
		for k, v := range input.Fields {
			out.Fields[k] = v
		}
	}
	return out, nil
}

func (m *mockCaller) Call(ctx context.Context, method protoreflect.MethodDescriptor, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	m.record(method, req)
	switch method.Name() {
	case "Invoke":
		input, err := structField(req, "input")
		if err != nil {
			return nil, err
		}
		out, err := m.serve(input)
		if err != nil {
			return nil, err
		}
		resp := dynamicpb.NewMessage(m.desc.Invoke.Output())
		resp.Set(resp.Descriptor().Fields().ByName("output"), protoreflect.ValueOfMessage(out.ProtoReflect()))
		return resp, nil

	case "Batch":
		in := req.Descriptor()
		items := req.Get(in.Fields().ByName("items")).List()

		out := m.desc.Batch.Output()
		resultDesc := out.Fields().ByName("results").Message()
		resp := dynamicpb.NewMessage(out)
		results := resp.Mutable(out.Fields().ByName("results")).List()
		for i := 0; i < items.Len(); i++ {
			input, err := structField(items.Get(i).Message(), "input")
			if err != nil {
				return nil, err
			}
			result := dynamicpb.NewMessage(resultDesc)
			v, err := m.serve(input)
			if err != nil {
				result.Set(resultDesc.Fields().ByName("error"), protoreflect.ValueOfString(err.Error()))
			} else {
				result.Set(resultDesc.Fields().ByName("output"), protoreflect.ValueOfMessage(v.ProtoReflect()))
			}
			results.Append(protoreflect.ValueOfMessage(result))
		}
		return resp, nil
	}
	return nil, fmt.Errorf("mock: unexpected method %s", method.Name())
}

func (m *mockCaller) OpenStream(ctx context.Context, method protoreflect.MethodDescriptor, req *dynamicpb.Message) (StreamReceiver, error) {
	m.record(method, req)
	input, err := structField(req, "input")
	if err != nil {
		return nil, err
	}
	out, err := m.serve(input)
	if err != nil {
		return nil, err
	}
	return &mockStream{desc: m.desc, chunk: out, remaining: m.chunks}, nil
}

type mockStream struct {
	desc      *Descriptors
	chunk     *structpb.Struct
	remaining int
	closed    bool
}

func (s *mockStream) Recv() (*dynamicpb.Message, error) {
	if s.closed || s.remaining == 0 {
		return nil, io.EOF
	}
	s.remaining--
	msg := dynamicpb.NewMessage(s.desc.Stream.Output())
	msg.Set(msg.Descriptor().Fields().ByName("chunk"), protoreflect.ValueOfMessage(s.chunk.ProtoReflect()))
	return msg, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}
