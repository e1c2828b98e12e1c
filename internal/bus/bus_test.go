package bus

import "testing"

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New[string]()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish("hello")

	select {
	case msg := <-a:
		if msg != "hello" {
			t.Fatalf("subscriber a got %q, want hello", msg)
		}
	default:
		t.Fatal("subscriber a received nothing")
	}
	select {
	case msg := <-c:
		if msg != "hello" {
			t.Fatalf("subscriber c got %q, want hello", msg)
		}
	default:
		t.Fatal("subscriber c received nothing")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New[int]()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Publish(42)
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unsubscribed channel received %d", v)
		}
	default:
	}
}

func TestFullSubscriberDroppedWithoutBlockingOthers(t *testing.T) {
	b := New[int]()
	slow := b.Subscribe()
	fast := b.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(i)
		select {
		case _, ok := <-fast:
			if !ok {
				t.Fatal("fast subscriber should not have been dropped")
			}
		default:
			t.Fatal("fast subscriber should have at least one buffered message")
		}
	}

	_, ok := <-slow
	for ok {
		_, ok = <-slow
	}
}
