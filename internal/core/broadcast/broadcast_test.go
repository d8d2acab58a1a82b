package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_SubscribeReplaysCurrentValue(t *testing.T) {
	c := New("initial")
	c.Publish("second")

	var got []string
	c.Subscribe(func(v string) { got = append(got, v) })

	require.Equal(t, []string{"second"}, got)
}

func TestChannel_PublishReachesEveryListenerInOrder(t *testing.T) {
	c := New(0)
	var calls []string
	c.Subscribe(func(v int) { calls = append(calls, "a") })
	c.Subscribe(func(v int) { calls = append(calls, "b") })
	calls = nil

	c.Publish(1)

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 1, c.Value())
}

func TestChannel_Unsubscribe(t *testing.T) {
	c := New(0)
	var got []int
	unsubscribe := c.Subscribe(func(v int) { got = append(got, v) })
	c.Publish(1)
	unsubscribe()
	unsubscribe()
	c.Publish(2)

	assert.Equal(t, []int{0, 1}, got)
	assert.Equal(t, 0, c.Len())
}

func TestChannel_ListenerMayUnsubscribeItself(t *testing.T) {
	c := New(0)
	var got []int
	var unsubscribe func()
	unsubscribe = c.Subscribe(func(v int) {
		got = append(got, v)
		if v == 1 && unsubscribe != nil {
			unsubscribe()
		}
	})
	c.Publish(1)
	c.Publish(2)

	assert.Equal(t, []int{0, 1}, got)
}

func TestChannel_ConcurrentPublishersDeliverSerially(t *testing.T) {
	c := New(0)
	var (
		mu      sync.Mutex
		running int
		maxSeen int
		count   int
	)
	c.Subscribe(func(int) {
		mu.Lock()
		running++
		if running > maxSeen {
			maxSeen = running
		}
		count++
		mu.Unlock()

		mu.Lock()
		running--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			c.Publish(v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 51, count)
}
