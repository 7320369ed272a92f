package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus()

	exact, err := bus.Subscribe(ctx, "ch:tx")
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx, "ch:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "ch:tx", []byte("a")))
	require.NoError(t, bus.Publish(ctx, "ch:balance", []byte("b")))

	assert.Equal(t, []byte("a"), <-exact)
	assert.Equal(t, []byte("a"), <-all)
	assert.Equal(t, []byte("b"), <-all)
	select {
	case msg := <-exact:
		t.Fatalf("unexpected message %q", msg)
	default:
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-exact
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestBus_Stream(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, bus.StreamAppend(ctx, "stream:tx", []byte(p)))
	}

	msgs, err := bus.StreamRead(ctx, "stream:tx", "0", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", string(msgs[0].Payload))

	rest, err := bus.StreamRead(ctx, "stream:tx", msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "three", string(rest[0].Payload))

	none, err := bus.StreamRead(ctx, "stream:missing", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
