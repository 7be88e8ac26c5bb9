package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(4)
	ch, cancel := b.Subscribe(context.Background(), "proj-1")
	defer cancel()

	b.Publish(Event{ProjectID: "proj-1", Type: EventPhaseStarted})

	select {
	case ev := <-ch:
		if ev.Type != EventPhaseStarted {
			t.Fatalf("type = %q", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishIgnoresOtherProjects(t *testing.T) {
	b := New(4)
	ch, cancel := b.Subscribe(context.Background(), "proj-1")
	defer cancel()

	b.Publish(Event{ProjectID: "proj-2", Type: EventPhaseStarted})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishDisconnectsSubscriberWhenBufferFull(t *testing.T) {
	b := New(1)
	ch, cancel := b.Subscribe(context.Background(), "proj-1")
	defer cancel()

	b.Publish(Event{ProjectID: "proj-1", Type: EventPhaseStarted})
	b.Publish(Event{ProjectID: "proj-1", Type: EventPhaseCompleted}) // buffer full: disconnects

	first := <-ch
	if first.Type != EventPhaseStarted {
		t.Fatalf("expected first event to survive, got %q", first.Type)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after full-buffer disconnect")
	}
	if n := b.SubscriberCount("proj-1"); n != 0 {
		t.Fatalf("subscriber count = %d, want 0 after disconnect", n)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New(4)
	ch, cancel := b.Subscribe(context.Background(), "proj-1")
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	if n := b.SubscriberCount("proj-1"); n != 0 {
		t.Fatalf("subscriber count = %d, want 0", n)
	}
}

func TestSubscribeContextCancellationReleasesSubscription(t *testing.T) {
	b := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "proj-1")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation to release subscription")
	}
}

func TestCloseReleasesAllSubscribers(t *testing.T) {
	b := New(4)
	ch1, _ := b.Subscribe(context.Background(), "proj-1")
	ch2, _ := b.Subscribe(context.Background(), "proj-1")

	b.Close("proj-1")

	for _, ch := range []<-chan Event{ch1, ch2} {
		if _, ok := <-ch; ok {
			t.Fatal("expected channel closed")
		}
	}
}
