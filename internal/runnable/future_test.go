package runnable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoFuture_Resolves(t *testing.T) {
	f := GoFuture(func() (int, error) { return 42, nil })
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	// A resolved future can be awaited again.
	v, err = f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFailedFuture(t *testing.T) {
	boom := errors.New("boom")
	_, err := FailedFuture[int](boom).Wait(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestFutureWait_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	f := GoFuture(func() (int, error) {
		<-release
		return 1, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The work itself was not cancelled: once released, the value is there.
	close(release)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
