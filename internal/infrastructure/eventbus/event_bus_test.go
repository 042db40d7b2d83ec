package eventbus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/meetflow/backend/internal/domain/events"
	"github.com/stretchr/testify/assert"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var received atomic.Bool

	unsub := bus.Subscribe(events.UtteranceIngested, events.HandlerFunc(func(event events.Event) error {
		received.Store(true)
		return nil
	}))
	defer unsub()

	bus.Publish(&events.UtteranceEvent{
		MeetingID:   "m1",
		UtteranceID: 1,
		EventTime:   time.Now(),
	})

	// 等待异步处理
	time.Sleep(100 * time.Millisecond)

	assert.True(t, received.Load(), "handler should have received the event")
}

func TestEventBus_MultipleHandlers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var count atomic.Int32

	for i := 0; i < 3; i++ {
		unsub := bus.Subscribe(events.TopicFeedUpdated, events.HandlerFunc(func(event events.Event) error {
			count.Add(1)
			return nil
		}))
		defer unsub()
	}

	bus.Publish(&events.TopicFeedEvent{
		MeetingID: "m1",
		Reason:    "consolidation",
		EventTime: time.Now(),
	})

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(3), count.Load(), "all 3 handlers should have received the event")
}

func TestEventBus_Unsubscribe(t *testing.T) {
	t.Run("取消订阅后不再接收事件", func(t *testing.T) {
		bus := NewEventBus()
		defer bus.Close()

		var count atomic.Int32
		unsub := bus.Subscribe(events.TopicFeedUpdated, events.HandlerFunc(func(event events.Event) error {
			count.Add(1)
			return nil
		}))

		unsub()
		bus.Publish(&events.TopicFeedEvent{MeetingID: "m1", Reason: "consolidation", EventTime: time.Now()})

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(0), count.Load(), "unsubscribed handler should not fire")

		impl := bus.(*eventBusImpl)
		impl.mu.RLock()
		remaining := len(impl.handlers[events.TopicFeedUpdated])
		impl.mu.RUnlock()
		assert.Equal(t, 0, remaining, "subscription should be removed from the bus")
	})

	t.Run("只移除自己的订阅", func(t *testing.T) {
		bus := NewEventBus()
		defer bus.Close()

		var kept atomic.Int32
		handler := events.HandlerFunc(func(event events.Event) error {
			kept.Add(1)
			return nil
		})
		// 同一个处理器订阅两次，退订第一次不影响第二次
		unsubFirst := bus.Subscribe(events.TopicFeedUpdated, handler)
		unsubSecond := bus.Subscribe(events.TopicFeedUpdated, handler)
		defer unsubSecond()

		unsubFirst()
		bus.Publish(&events.TopicFeedEvent{MeetingID: "m1", Reason: "topic_change", EventTime: time.Now()})

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(1), kept.Load(), "the remaining subscription should still fire exactly once")
	})

	t.Run("重复退订安全", func(t *testing.T) {
		bus := NewEventBus()
		defer bus.Close()

		unsub := bus.Subscribe(events.RuntimeEvicted, events.HandlerFunc(func(event events.Event) error {
			return nil
		}))

		unsub()
		assert.NotPanics(t, func() { unsub() })
	})
}

func TestEventBus_SubscribeMultiple(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var count atomic.Int32

	unsub := bus.SubscribeMultiple(
		[]events.EventType{events.UtteranceIngested, events.TopicFeedUpdated},
		events.HandlerFunc(func(event events.Event) error {
			count.Add(1)
			return nil
		}),
	)
	defer unsub()

	bus.Publish(&events.UtteranceEvent{MeetingID: "m1", EventTime: time.Now()})
	bus.Publish(&events.TopicFeedEvent{MeetingID: "m1", Reason: "topic_change", EventTime: time.Now()})

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(2), count.Load())
}

func TestEventBus_PanicIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var survived atomic.Bool

	bus.Subscribe(events.UtteranceIngested, events.HandlerFunc(func(event events.Event) error {
		panic("handler exploded")
	}))
	bus.Subscribe(events.UtteranceIngested, events.HandlerFunc(func(event events.Event) error {
		survived.Store(true)
		return nil
	}))

	bus.Publish(&events.UtteranceEvent{MeetingID: "m1", EventTime: time.Now()})

	time.Sleep(100 * time.Millisecond)

	assert.True(t, survived.Load(), "panic in one handler should not affect others")
}

func TestEventBus_PublishAfterClose(t *testing.T) {
	bus := NewEventBus()

	var count atomic.Int32
	bus.Subscribe(events.UtteranceIngested, events.HandlerFunc(func(event events.Event) error {
		count.Add(1)
		return nil
	}))

	bus.Close()
	bus.Publish(&events.UtteranceEvent{MeetingID: "m1", EventTime: time.Now()})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load(), "closed bus should drop events")
}
