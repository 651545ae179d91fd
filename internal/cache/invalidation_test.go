package cache

import (
	"context"
	"testing"
)

func TestBroker_PublishFanOut(t *testing.T) {
	b := NewBroker()
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	key := RoutingKey("merchant_1", "profile_1")
	if err := b.Publish(context.Background(), key); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, ch := range []<-chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			if len(msg.Keys) != 1 {
				t.Fatalf("subscriber %d: keys = %d, want 1", i, len(msg.Keys))
			}
			if msg.Keys[0].Key != "routing_config_merchant_1_profile_1" {
				t.Errorf("subscriber %d: key = %q", i, msg.Keys[0].Key)
			}
			if msg.Keys[0].Kind != KindRouting {
				t.Errorf("subscriber %d: kind = %q, want routing", i, msg.Keys[0].Kind)
			}
		default:
			t.Fatalf("subscriber %d: no message delivered", i)
		}
	}
}

func TestBroker_PublishNoKeysIsNoOp(t *testing.T) {
	b := NewBroker()
	ch, unsub := b.Subscribe()
	defer unsub()

	if err := b.Publish(context.Background()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %+v", msg)
	default:
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	ch, unsub := b.Subscribe()
	unsub()

	if err := b.Publish(context.Background(), AccountKey("merchant_1")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}
