package routine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RunsAndCollectsErrors(t *testing.T) {
	m := NewManager(4)

	var ran atomic.Int32
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		started := m.Go(context.Background(), "count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
		require.True(t, started)
	}
	require.True(t, m.Go(context.Background(), "fail", func(ctx context.Context) error { return boom }))

	err := m.Wait()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), ran.Load())
}

func TestManager_DropsWhenFull(t *testing.T) {
	m := NewManager(1)

	release := make(chan struct{})
	require.True(t, m.Go(context.Background(), "slow", func(ctx context.Context) error {
		<-release
		return nil
	}))

	assert.False(t, m.Go(context.Background(), "second", func(ctx context.Context) error { return nil }))

	close(release)
	require.NoError(t, m.Wait())
}

func TestManager_CanceledContext(t *testing.T) {
	m := NewManager(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, m.Go(ctx, "never", func(ctx context.Context) error {
		t.Error("task must not run")
		return nil
	}))
	require.NoError(t, m.Wait())
}

func TestManager_RecoversPanic(t *testing.T) {
	m := NewManager(1)

	require.True(t, m.Go(context.Background(), "panics", func(ctx context.Context) error {
		panic("unexpected")
	}))
	require.NoError(t, m.Wait())

	// the slot is released after a panic
	assert.True(t, m.Go(context.Background(), "after", func(ctx context.Context) error { return nil }))
	require.NoError(t, m.Wait())
}
