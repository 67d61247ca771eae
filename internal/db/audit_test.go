package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecordDoesNotBlockOnSlowWrites(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	written := make(chan AuthEvent, 4)

	a := NewAuditLog(nil, 30, 2)
	a.Write = func(_ context.Context, ev AuthEvent) error {
		written <- ev
		<-release
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	start := time.Now()
	require.NoError(t, a.Record(ctx, AuthEvent{KeyID: "K1"}))

	// The worker now holds K1 in a stalled write.
	select {
	case ev := <-written:
		assert.Equal(t, "K1", ev.KeyID)
		require.NotNil(t, ev.ExpiresAt)
		assert.WithinDuration(t, ev.CreatedAt.Add(30*24*time.Hour), *ev.ExpiresAt, time.Second)
	case <-time.After(time.Second):
		t.Fatal("event was not handed to the writer")
	}

	require.NoError(t, a.Record(ctx, AuthEvent{KeyID: "K2"}))
	require.NoError(t, a.Record(ctx, AuthEvent{KeyID: "K3"}))
	assert.ErrorIs(t, a.Record(ctx, AuthEvent{KeyID: "K4"}), ErrAuditQueueFull)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
