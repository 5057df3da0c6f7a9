package runnable

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper(ctx context.Context, input int, config *Config) (string, error) {
	return strconv.Itoa(input * 2), nil
}

func TestFunc_Invoke(t *testing.T) {
	f := NewFunc("double", upper)
	out, err := f.Invoke(context.Background(), 21, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, "double", f.Name())
}

func TestFunc_Batch_Sequential(t *testing.T) {
	f := NewFunc("double", upper)
	results, err := f.Batch(context.Background(), []int{1, 2, 3}, nil, BatchOptions{})
	require.NoError(t, err)
	values, err := Values(results)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "6"}, values)
}

func TestFunc_Batch_FirstErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	f := NewFunc("flaky", func(ctx context.Context, input int, config *Config) (int, error) {
		calls++
		if input == 2 {
			return 0, boom
		}
		return input, nil
	})
	_, err := f.Batch(context.Background(), []int{1, 2, 3}, nil, BatchOptions{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "sequential batch stops at the failure")
}

func TestFunc_Batch_ReturnExceptions(t *testing.T) {
	boom := errors.New("boom")
	f := NewFunc("flaky", func(ctx context.Context, input int, config *Config) (int, error) {
		if input == 2 {
			return 0, boom
		}
		return input, nil
	})
	results, err := f.Batch(context.Background(), []int{1, 2, 3}, nil, BatchOptions{ReturnExceptions: true})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Value)
	require.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, 3, results[2].Value)
}

func TestFunc_ABatch_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0
	f := NewFunc("slow", func(ctx context.Context, input int, config *Config) (int, error) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inflight--
		mu.Unlock()
		return input, nil
	})

	cfg := &Config{MaxConcurrency: 2}
	results, err := f.ABatch(context.Background(), []int{1, 2, 3, 4, 5}, []*Config{cfg}, BatchOptions{})
	require.NoError(t, err)
	values, err := Values(results)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, values)
	assert.LessOrEqual(t, peak, 2)
}

func TestFunc_Stream_SingleChunk(t *testing.T) {
	f := NewFunc("double", upper)
	s, err := f.Stream(context.Background(), 5, nil)
	require.NoError(t, err)
	out, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, out)
}

func TestFunc_Transform(t *testing.T) {
	f := NewFunc("double", upper)
	out, err := f.Transform(context.Background(), StreamOf(1, 2), nil)
	require.NoError(t, err)
	got, err := Collect(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, got)
}
