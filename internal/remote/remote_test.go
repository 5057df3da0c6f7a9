package remote

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/billvsme/langchain/internal/runnable"
)

func newMockUnit(t *testing.T, opts ...UnitOption) (*Unit, *mockCaller) {
	t.Helper()
	desc, err := BuildDescriptors()
	require.NoError(t, err)
	mock := newMockCaller(desc)
	u, err := NewUnit("unused:0", append([]UnitOption{WithCaller(mock)}, opts...)...)
	require.NoError(t, err)
	return u, mock
}

func input(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestBuildDescriptors(t *testing.T) {
	desc, err := BuildDescriptors()
	require.NoError(t, err)
	assert.Equal(t, ServiceName, string(desc.Service.FullName()))
	require.NotNil(t, desc.Invoke)
	require.NotNil(t, desc.Batch)
	require.NotNil(t, desc.Stream)
	assert.True(t, desc.Stream.IsStreamingServer())
	assert.Equal(t, "google.protobuf.Struct",
		string(desc.Invoke.Input().Fields().ByName("input").Message().FullName()))
}

func TestRender(t *testing.T) {
	desc, err := BuildDescriptors()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Render(desc, &buf))
	out := buf.String()
	assert.Contains(t, out, "service RunnableService")
	assert.Contains(t, out, "rpc Invoke")
	assert.Contains(t, out, "google.protobuf.Struct")
}

func TestUnit_Invoke_RoundTrip(t *testing.T) {
	u, mock := newMockUnit(t)

	out, err := u.Invoke(context.Background(), input(t, map[string]any{"prompt": "hi"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Fields["prompt"].GetStringValue())
	assert.Equal(t, "mock", out.Fields["served_by"].GetStringValue())
	assert.Equal(t, []string{"Invoke"}, mock.methods)
}

func TestUnit_Invoke_SendsConfig(t *testing.T) {
	u, mock := newMockUnit(t)

	cfg := &runnable.Config{
		RunName:      "trial",
		Configurable: map[string]any{"temperature": 0.2},
	}
	_, err := u.Invoke(context.Background(), input(t, map[string]any{"prompt": "hi"}), cfg)
	require.NoError(t, err)

	require.Len(t, mock.configs, 1)
	wire := mock.configs[0]
	assert.Equal(t, "trial", wire.Fields["run_name"].GetStringValue())
	configurable := wire.Fields["configurable"].GetStructValue()
	require.NotNil(t, configurable)
	assert.Equal(t, 0.2, configurable.Fields["temperature"].GetNumberValue())
}

func TestUnit_Batch_SingleRPCInOrder(t *testing.T) {
	u, mock := newMockUnit(t)

	inputs := []*structpb.Struct{
		input(t, map[string]any{"n": 1.0}),
		input(t, map[string]any{"n": 2.0}),
	}
	results, err := u.Batch(context.Background(), inputs, nil, runnable.BatchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1.0, results[0].Value.Fields["n"].GetNumberValue())
	assert.Equal(t, 2.0, results[1].Value.Fields["n"].GetNumberValue())
	assert.Equal(t, []string{"Batch"}, mock.methods, "the whole batch is one RPC")
}

func TestUnit_Batch_DecodesForeignDescriptorResponse(t *testing.T) {
	u, mock := newMockUnit(t)

	// The caller replies with messages built from its own descriptor set;
	// decoding must resolve fields through the response, never through the
	// unit's build.
	require.NotSame(t, u.desc, mock.desc)

	results, err := u.Batch(context.Background(),
		[]*structpb.Struct{input(t, map[string]any{"n": 7.0})},
		nil, runnable.BatchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 7.0, results[0].Value.Fields["n"].GetNumberValue())
}

func TestUnit_Batch_RemoteFailure(t *testing.T) {
	u, _ := newMockUnit(t)

	inputs := []*structpb.Struct{
		input(t, map[string]any{"n": 1.0}),
		input(t, map[string]any{"fail": "no capacity"}),
	}

	_, err := u.Batch(context.Background(), inputs, nil, runnable.BatchOptions{})
	require.ErrorIs(t, err, ErrRemote)

	results, err := u.Batch(context.Background(), inputs, nil, runnable.BatchOptions{ReturnExceptions: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.ErrorIs(t, results[1].Err, ErrRemote)
	assert.ErrorContains(t, results[1].Err, "no capacity")
}

func TestUnit_Batch_ConfigLengthMismatch(t *testing.T) {
	u, _ := newMockUnit(t)

	_, err := u.Batch(context.Background(),
		[]*structpb.Struct{input(t, map[string]any{"n": 1.0})},
		[]*runnable.Config{nil, nil},
		runnable.BatchOptions{})
	require.ErrorIs(t, err, runnable.ErrConfigLengthMismatch)
}

func TestUnit_Stream(t *testing.T) {
	u, mock := newMockUnit(t)
	mock.chunks = 3

	s, err := u.Stream(context.Background(), input(t, map[string]any{"prompt": "hi"}), nil)
	require.NoError(t, err)
	chunks, err := runnable.Collect(s)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "hi", chunks[0].Fields["prompt"].GetStringValue())
}

func TestUnit_Rebuild(t *testing.T) {
	u, _ := newMockUnit(t)

	rebuilt, err := u.Rebuild(map[string]any{
		"endpoint": "other:50051",
		"timeout":  "250ms",
	})
	require.NoError(t, err)

	ru := rebuilt.(*Unit)
	assert.Equal(t, "other:50051", ru.endpoint)
	assert.Equal(t, 250*time.Millisecond, ru.timeout)

	// The original is untouched.
	assert.Equal(t, "unused:0", u.endpoint)
	assert.Equal(t, time.Duration(0), u.timeout)

	_, err = u.Rebuild(map[string]any{"port": 1})
	require.ErrorIs(t, err, runnable.ErrUnknownField)

	_, err = u.Rebuild(map[string]any{"timeout": 3})
	require.Error(t, err)
}

func TestEncodeConfig(t *testing.T) {
	s, err := EncodeConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = EncodeConfig(&runnable.Config{})
	require.NoError(t, err)
	assert.Nil(t, s, "an empty config stays off the wire")

	s, err = EncodeConfig(&runnable.Config{
		RunName:        "r",
		Tags:           []string{"t"},
		Metadata:       map[string]any{"k": "v"},
		Configurable:   map[string]any{"temp": 0.5},
		MaxConcurrency: 3,
	})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "r", s.Fields["run_name"].GetStringValue())
	assert.Equal(t, "t", s.Fields["tags"].GetListValue().Values[0].GetStringValue())
	assert.Equal(t, "v", s.Fields["metadata"].GetStructValue().Fields["k"].GetStringValue())
	assert.Equal(t, 0.5, s.Fields["configurable"].GetStructValue().Fields["temp"].GetNumberValue())
	assert.Equal(t, 3.0, s.Fields["max_concurrency"].GetNumberValue())
}
