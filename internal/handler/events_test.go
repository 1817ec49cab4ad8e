package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastidea/mastidea-server/internal/domain"
)

func TestPublishReachesSubscribers(t *testing.T) {
	hub := NewUpdateHub()
	ch := hub.Subscribe("idea-1")

	hub.Publish(domain.UpdateEvent{IdeaID: "idea-1", Type: domain.EventTitleUpdated, Payload: "new title"})

	select {
	case event := <-ch:
		assert.Equal(t, domain.EventTitleUpdated, event.Type)
		assert.Equal(t, "new title", event.Payload)
		assert.False(t, event.At.IsZero(), "publish must stamp the event time")
	default:
		t.Fatal("expected event on subscriber channel")
	}
}

func TestPublishIsScopedPerIdea(t *testing.T) {
	hub := NewUpdateHub()
	ch := hub.Subscribe("idea-1")

	hub.Publish(domain.UpdateEvent{IdeaID: "idea-2", Type: domain.EventProcessingDone})

	select {
	case <-ch:
		t.Fatal("subscriber of idea-1 must not see idea-2 events")
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewUpdateHub()
	ch := hub.Subscribe("idea-1")

	// Overfill the buffer; Publish must never block.
	for i := 0; i < cap(ch)+10; i++ {
		hub.Publish(domain.UpdateEvent{IdeaID: "idea-1", Type: domain.EventExpansionAdded})
	}
	assert.Len(t, ch, cap(ch))
}

func TestUnsubscribeLeavesChannelOpen(t *testing.T) {
	hub := NewUpdateHub()
	ch := hub.Subscribe("idea-1")
	hub.Unsubscribe("idea-1", ch)

	// The channel must stay open so a publish racing the unsubscribe can
	// never hit a closed channel; it just goes nowhere.
	select {
	case _, ok := <-ch:
		require.True(t, ok, "unsubscribed channel must not be closed")
		t.Fatal("unsubscribed channel should be empty")
	default:
	}

	hub.Publish(domain.UpdateEvent{IdeaID: "idea-1", Type: domain.EventProcessingDone})
	assert.Empty(t, ch, "events must not reach removed subscribers")
}

func TestUnsubscribeRemovesOnlyTargetChannel(t *testing.T) {
	hub := NewUpdateHub()
	first := hub.Subscribe("idea-1")
	second := hub.Subscribe("idea-1")
	hub.Unsubscribe("idea-1", first)

	hub.Publish(domain.UpdateEvent{IdeaID: "idea-1", Type: domain.EventTagsUpdated})
	assert.Empty(t, first)
	assert.Len(t, second, 1)
}
