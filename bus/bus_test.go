package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	b := New()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Publish(Event{Kind: KindProposalsChanged})

	for _, ch := range []chan Event{a, c} {
		select {
		case ev := <-ch:
			assert.Equal(t, KindProposalsChanged, ev.Kind)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublish_NonBlockingWhenFull(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Kind: KindJobResult})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch := b.Subscribe(0)
	require.Equal(t, 1, b.SubscriberCount())
	assert.Equal(t, DefaultSubscriberBuffer, cap(ch))

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish(Event{Kind: KindStageMoved})
	assert.Len(t, ch, 0)
}

func TestNotify(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)

	b.Notify(SeverityWarning, "Screening", "requires human confirmation", map[string]any{"candidate_id": "c1"})

	ev := <-ch
	assert.Equal(t, KindNotification, ev.Kind)
	assert.Equal(t, SeverityWarning, ev.Severity)
	assert.Equal(t, "requires human confirmation", ev.Message)
	assert.Equal(t, map[string]any{"candidate_id": "c1"}, ev.Data)
}

func TestNilBus(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() {
		b.Publish(Event{Kind: KindNotification})
		b.Notify(SeverityInfo, "t", "m", nil)
	})
}
