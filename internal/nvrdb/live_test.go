package nvrdb

import "testing"

func TestLiveRegistrySubscribeUnsubscribe(t *testing.T) {
	r := newLiveRegistry()
	sub := r.Subscribe(1)
	if r.SubscriberCount(1) != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", r.SubscriberCount(1))
	}
	r.Unsubscribe(sub)
	if r.SubscriberCount(1) != 0 {
		t.Fatalf("SubscriberCount after unsubscribe = %d, want 0", r.SubscriberCount(1))
	}
}

func TestLiveRegistryPublishDelivers(t *testing.T) {
	r := newLiveRegistry()
	sub := r.Subscribe(1)
	defer r.Unsubscribe(sub)

	frag := LiveFragment{Recording: 7}
	r.Publish(1, frag)

	select {
	case got := <-sub.Recv():
		if got.Recording != 7 {
			t.Errorf("Recording = %d, want 7", got.Recording)
		}
	default:
		t.Fatal("expected a fragment to be queued")
	}
}

func TestLiveRegistryPublishIgnoresOtherStreams(t *testing.T) {
	r := newLiveRegistry()
	sub := r.Subscribe(1)
	defer r.Unsubscribe(sub)

	r.Publish(2, LiveFragment{Recording: 1})

	select {
	case <-sub.Recv():
		t.Fatal("subscriber for stream 1 should not see stream 2's fragment")
	default:
	}
}

func TestLiveRegistryOverflowDropsOldest(t *testing.T) {
	r := newLiveRegistry()
	sub := r.Subscribe(1)
	defer r.Unsubscribe(sub)

	for i := 0; i < liveFragmentQueueDepth+5; i++ {
		r.Publish(1, LiveFragment{Recording: int32(i)})
	}

	if len(sub.ch) != liveFragmentQueueDepth {
		t.Fatalf("queue length = %d, want %d", len(sub.ch), liveFragmentQueueDepth)
	}

	// The oldest entries should have been dropped: the first value read
	// back must be newer than the values that overflowed the queue.
	first := <-sub.Recv()
	if first.Recording < 5 {
		t.Errorf("expected oldest-drop to have discarded early fragments, got Recording=%d", first.Recording)
	}
}

func TestLiveRegistryMultipleSubscribersIndependent(t *testing.T) {
	r := newLiveRegistry()
	subA := r.Subscribe(1)
	subB := r.Subscribe(1)
	defer r.Unsubscribe(subA)
	defer r.Unsubscribe(subB)

	if r.SubscriberCount(1) != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", r.SubscriberCount(1))
	}

	r.Publish(1, LiveFragment{Recording: 42})
	for _, sub := range []*liveSubscription{subA, subB} {
		select {
		case got := <-sub.Recv():
			if got.Recording != 42 {
				t.Errorf("Recording = %d, want 42", got.Recording)
			}
		default:
			t.Error("expected both subscribers to receive the fragment")
		}
	}
}
