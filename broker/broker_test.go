package broker_test

import (
	"callnotify/broker"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	t.Run("given two subscribers when published then both receive in order", func(t *testing.T) {
		b := broker.New()
		first := b.Subscribe("webrtc")
		second := b.Subscribe("webrtc")

		for i := 0; i < 3; i++ {
			dropped, err := b.Publish("webrtc", i)
			require.NoError(t, err)
			assert.Zero(t, dropped)
		}

		for _, sub := range []interface{ Receive() <-chan any }{first, second} {
			for i := 0; i < 3; i++ {
				assert.Equal(t, i, <-sub.Receive())
			}
		}
	})

	t.Run("given unknown topic when published then return error", func(t *testing.T) {
		b := broker.New()
		_, err := b.Publish("missing", "hello")
		assert.ErrorIs(t, err, broker.ErrTopicNotFound)
	})

	t.Run("given full queue when published then message is dropped", func(t *testing.T) {
		b := broker.New()
		sub := b.Subscribe("webrtc")
		for i := 0; i < broker.DefaultQueueSize; i++ {
			_, err := b.Publish("webrtc", i)
			require.NoError(t, err)
		}
		dropped, err := b.Publish("webrtc", "overflow")
		require.NoError(t, err)
		assert.Equal(t, 1, dropped)
		assert.Equal(t, 0, <-sub.Receive())
	})
}

func TestUnsubscribe(t *testing.T) {
	b := broker.New()
	sub := b.Subscribe("webrtc")
	require.NoError(t, b.Unsubscribe("webrtc", sub))

	_, ok := <-sub.Receive()
	assert.False(t, ok)
	assert.False(t, sub.Send("late"))

	_, err := b.Publish("webrtc", "nobody")
	assert.ErrorIs(t, err, broker.ErrTopicNotFound)
	assert.ErrorIs(t, b.Unsubscribe("webrtc", sub), broker.ErrTopicNotFound)
}
