package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesTopicNotifications(t *testing.T) {
	b := New()
	defer b.Close()

	var got []Notification
	b.Subscribe(TopicCache, func(n Notification) {
		got = append(got, n)
	})

	b.Publish(TopicCache, "key-1")
	b.Publish(TopicStream, "open")

	require.Len(t, got, 1)
	assert.Equal(t, TopicCache, got[0].Topic)
	assert.Equal(t, "key-1", got[0].Payload)
}

func TestSubscribeAllReceivesEveryTopic(t *testing.T) {
	b := New()
	defer b.Close()

	var topics []string
	b.SubscribeAll(func(n Notification) {
		topics = append(topics, n.Topic)
	})

	b.Publish(TopicCache, "")
	b.Publish(TopicStream, "")
	b.Publish(TopicRegistry, "")

	assert.Equal(t, []string{TopicCache, TopicStream, TopicRegistry}, topics)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	count := 0
	unsub := b.Subscribe(TopicCache, func(Notification) { count++ })

	b.Publish(TopicCache, "")
	unsub()
	b.Publish(TopicCache, "")

	assert.Equal(t, 1, count)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New()

	count := 0
	b.Subscribe(TopicCache, func(Notification) { count++ })

	require.NoError(t, b.Close())
	b.Publish(TopicCache, "")

	assert.Zero(t, count)
}

func TestSubscribeAfterCloseReturnsNoopUnsub(t *testing.T) {
	b := New()
	require.NoError(t, b.Close())

	unsub := b.Subscribe(TopicCache, func(Notification) {})
	assert.NotPanics(t, unsub)
}
