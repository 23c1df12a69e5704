package broadcast

import (
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/MarketMind/internal/domain"
)

func TestPublish_FanOut(t *testing.T) {
	b := New(nil)
	runID := uuid.New()

	sub1 := b.Subscribe(runID)
	sub2 := b.Subscribe(runID)

	b.Publish(runID, domain.NewEvent(domain.EventKindProgress, runID, nil))

	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			if ev.Kind != domain.EventKindProgress {
				t.Errorf("sub %d: expected progress, got %s", i, ev.Kind)
			}
		default:
			t.Errorf("sub %d: expected event, got none", i)
		}
	}
}

func TestPublish_NoReplay(t *testing.T) {
	b := New(nil)
	runID := uuid.New()

	// Событие публикуется без подписчиков — просто теряется
	b.Publish(runID, domain.NewEvent(domain.EventKindProgress, runID, nil))

	// Поздний подписчик прошлых событий не видит
	sub := b.Subscribe(runID)

	select {
	case ev := <-sub.Events():
		t.Errorf("late subscriber must not receive past events, got %s", ev.Kind)
	default:
	}
}

func TestPublish_OtherRunNotDelivered(t *testing.T) {
	b := New(nil)
	runA := uuid.New()
	runB := uuid.New()

	sub := b.Subscribe(runA)

	b.Publish(runB, domain.NewEvent(domain.EventKindProgress, runB, nil))

	select {
	case ev := <-sub.Events():
		t.Errorf("subscriber of runA must not receive runB events, got %s", ev.Kind)
	default:
	}
}

func TestPublish_SlowSubscriberDropped(t *testing.T) {
	b := New(nil)
	runID := uuid.New()

	slow := b.Subscribe(runID)
	fast := b.Subscribe(runID)

	// Переполняем буфер slow-подписчика (он ничего не читает)
	for i := 0; i < defaultBufferSize+1; i++ {
		b.Publish(runID, domain.NewEvent(domain.EventKindProgress, runID, nil))

		// fast читает сразу
		select {
		case <-fast.Events():
		default:
			t.Fatalf("fast subscriber missed event %d", i)
		}
	}

	// slow отписан, его канал закрыт (после вычитки буфера)
	if got := b.SubscriberCount(runID); got != 1 {
		t.Errorf("expected 1 subscriber after drop, got %d", got)
	}

	drained := 0
	for range slow.Events() {
		drained++
	}
	if drained != defaultBufferSize {
		t.Errorf("expected %d buffered events, got %d", defaultBufferSize, drained)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := New(nil)
	runID := uuid.New()

	sub1 := b.Subscribe(runID)
	sub2 := b.Subscribe(runID)

	b.Unsubscribe(sub1)
	b.Unsubscribe(sub1) // повторный вызов — no-op

	if got := b.SubscriberCount(runID); got != 1 {
		t.Errorf("expected 1 subscriber, got %d", got)
	}

	// Оставшийся подписчик продолжает получать события
	b.Publish(runID, domain.NewEvent(domain.EventKindProgress, runID, nil))
	select {
	case <-sub2.Events():
	default:
		t.Error("remaining subscriber must still receive events")
	}
}

func TestCloseRun_ClosesAllSubscribers(t *testing.T) {
	b := New(nil)
	runID := uuid.New()

	sub1 := b.Subscribe(runID)
	sub2 := b.Subscribe(runID)

	b.CloseRun(runID)

	for i, sub := range []*Subscription{sub1, sub2} {
		if _, open := <-sub.Events(); open {
			t.Errorf("sub %d: expected closed channel", i)
		}
	}

	if got := b.SubscriberCount(runID); got != 0 {
		t.Errorf("expected 0 subscribers, got %d", got)
	}
}
