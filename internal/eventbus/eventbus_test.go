package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ N int }
type pong struct{ N int }

func TestPublish_DispatchesByType(t *testing.T) {
	Use(New())
	defer Use(nil)

	var pings, pongs []int
	defer Subscribe(func(ctx context.Context, e ping) { pings = append(pings, e.N) })()
	defer Subscribe(func(ctx context.Context, e pong) { pongs = append(pongs, e.N) })()

	Publish(context.Background(), ping{N: 1})
	Publish(context.Background(), pong{N: 2})
	Publish(context.Background(), ping{N: 3})

	assert.Equal(t, []int{1, 3}, pings)
	assert.Equal(t, []int{2}, pongs)
}

func TestUnsubscribe(t *testing.T) {
	Use(New())
	defer Use(nil)

	n := 0
	unsub := Subscribe(func(ctx context.Context, e ping) { n++ })
	Publish(context.Background(), ping{})
	unsub()
	Publish(context.Background(), ping{})

	assert.Equal(t, 1, n)
}

func TestPublish_NoBusInstalled(t *testing.T) {
	Use(nil)

	// Both must be safe no-ops.
	unsub := Subscribe(func(ctx context.Context, e ping) {})
	Publish(context.Background(), ping{})
	unsub()
}

func TestSubscribe_MultipleHandlersSameType(t *testing.T) {
	Use(New())
	defer Use(nil)

	a, b := 0, 0
	defer Subscribe(func(ctx context.Context, e ping) { a++ })()
	defer Subscribe(func(ctx context.Context, e ping) { b++ })()

	Publish(context.Background(), ping{})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
