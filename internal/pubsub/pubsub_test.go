package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPubSub(t *testing.T) (*PubSub, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, zap.NewNop()), client
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "org:org-1:events", EventChannel("org-1"))
	assert.Equal(t, "org:org-1:events:thumbnails", ThumbnailChannel("org-1"))
}

func TestPublishDeliversJSON(t *testing.T) {
	ps, client := newTestPubSub(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, EventChannel("org-1"))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	payload := map[string]string{"event_uuid": "evt-1", "type": "door_opened"}
	require.NoError(t, ps.Publish(ctx, EventChannel("org-1"), payload))

	select {
	case msg := <-sub.Channel():
		var decoded map[string]string
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
		assert.Equal(t, "evt-1", decoded["event_uuid"])
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublishUnmarshalableMessage(t *testing.T) {
	ps, _ := newTestPubSub(t)

	err := ps.Publish(context.Background(), EventChannel("org-1"), make(chan int))
	assert.Error(t, err)
}

func TestSubscriberCount(t *testing.T) {
	ps, client := newTestPubSub(t)
	ctx := context.Background()

	channel := ThumbnailChannel("org-1")
	assert.EqualValues(t, 0, ps.SubscriberCount(ctx, channel))

	sub := client.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 1, ps.SubscriberCount(ctx, channel))
}

func TestSubscriberCountDegradesOnError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ps := New(client, zap.NewNop())
	mr.Close()

	assert.EqualValues(t, 0, ps.SubscriberCount(context.Background(), EventChannel("org-1")))
}
