package internal

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversOnlyToSubscribedTopics(t *testing.T) {
	hub := NewHub(8)
	a := hub.NewSubscriber()
	b := hub.NewSubscriber()

	hub.Subscribe(a, "trade/M1/S1")
	hub.Subscribe(b, "config/S2")

	n := hub.Publish("trade/M1/S1", []byte("trade/M1/S1 {}"))
	assert.Equal(t, 1, n)

	require.Len(t, a.C(), 1)
	assert.Equal(t, "trade/M1/S1 {}", string(<-a.C()))
	assert.Len(t, b.C(), 0)
}

func TestHub_PublishWithoutSubscribersIsDropped(t *testing.T) {
	hub := NewHub(8)
	assert.Equal(t, 0, hub.Publish("trade/M1/S1", []byte("x y")))

	// Suscribirse después no entrega lo publicado antes.
	sub := hub.NewSubscriber()
	hub.Subscribe(sub, "trade/M1/S1")
	assert.Len(t, sub.C(), 0)
}

func TestHub_PreservesOrderPerTopic(t *testing.T) {
	hub := NewHub(100)
	sub := hub.NewSubscriber()
	hub.Subscribe(sub, "trade/M1/S1")

	for i := 0; i < 50; i++ {
		hub.Publish("trade/M1/S1", []byte(fmt.Sprintf("trade/M1/S1 %d", i)))
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, fmt.Sprintf("trade/M1/S1 %d", i), string(<-sub.C()))
	}
}

func TestHub_FullQueueDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(2)
	sub := hub.NewSubscriber()
	hub.Subscribe(sub, "config/S1")

	for i := 0; i < 5; i++ {
		hub.Publish("config/S1", []byte("config/S1 {}"))
	}
	assert.Len(t, sub.C(), 2)
	assert.Equal(t, int64(3), sub.Dropped())
}

func TestHub_DeliveredCountExactAcrossTopics(t *testing.T) {
	hub := NewHub(16)
	sub := hub.NewSubscriber()
	hub.Subscribe(sub, "config/S1")
	hub.Subscribe(sub, "trade/M1/S1")

	var delivered atomic.Int64
	var wg sync.WaitGroup
	for _, topic := range []string{"config/S1", "trade/M1/S1"} {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				delivered.Add(int64(hub.Publish(topic, []byte(topic+" {}"))))
			}
		}(topic)
	}
	wg.Wait()

	assert.Equal(t, int64(len(sub.C())), delivered.Load())
	assert.Equal(t, int64(100)-delivered.Load(), sub.Dropped())
}

func TestHub_UnsubscribeAndRemove(t *testing.T) {
	hub := NewHub(8)
	sub := hub.NewSubscriber()

	hub.Subscribe(sub, "trade/M1/S1")
	hub.Subscribe(sub, "trade/M1/S1")
	hub.Subscribe(sub, "config/S1")
	assert.Equal(t, 1, hub.SubscriberCount("trade/M1/S1"))
	assert.ElementsMatch(t, []string{"trade/M1/S1", "config/S1"}, sub.Topics())

	hub.Unsubscribe(sub, "trade/M1/S1")
	assert.Equal(t, 0, hub.Publish("trade/M1/S1", []byte("a b")))

	hub.Remove(sub)
	assert.Equal(t, 0, hub.SubscriberCount("config/S1"))
	assert.Empty(t, sub.Topics())

	// Un suscriptor removido no vuelve a suscribirse.
	hub.Subscribe(sub, "config/S1")
	assert.Equal(t, 0, hub.SubscriberCount("config/S1"))
}
