package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"testforge-agent/src/contracts"
)

func TestInMemoryPublishSubscribe(t *testing.T) {
	b := NewInMemoryBroker()
	defer b.Close()

	ctx := context.Background()
	ch, err := b.Subscribe(ctx, contracts.TopicGenerationEvents, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	event := contracts.GenerationEvent{
		RunID:        "run1",
		Stage:        contracts.StageTaskFinished,
		FunctionName: "add",
		Success:      true,
		Completed:    1,
		Total:        2,
	}
	payload, _ := json.Marshal(event)
	if err := b.Publish(ctx, contracts.TopicGenerationEvents, event.RunID, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		var got contracts.GenerationEvent
		if err := json.Unmarshal(msg.Value, &got); err != nil {
			t.Fatalf("payload not JSON: %v", err)
		}
		if got.FunctionName != "add" || got.Stage != contracts.StageTaskFinished {
			t.Errorf("event round trip lost fields: %+v", got)
		}
		if msg.Key != "run1" {
			t.Errorf("key = %q, want run1", msg.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestInMemoryMultipleSubscribers(t *testing.T) {
	b := NewInMemoryBroker()
	defer b.Close()

	ctx := context.Background()
	first, _ := b.Subscribe(ctx, "t", "")
	second, _ := b.Subscribe(ctx, "t", "")

	if err := b.Publish(ctx, "t", "", []byte("x")); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []<-chan Message{first, second} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the message", i)
		}
	}
}

func TestInMemoryOffsetsIncrease(t *testing.T) {
	b := NewInMemoryBroker()
	defer b.Close()

	ctx := context.Background()
	ch, _ := b.Subscribe(ctx, "t", "")

	for i := 0; i < 3; i++ {
		if err := b.Publish(ctx, "t", "", []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	for want := int64(0); want < 3; want++ {
		msg := <-ch
		if msg.Offset != want {
			t.Errorf("offset = %d, want %d", msg.Offset, want)
		}
	}
}

func TestInMemoryClosedBrokerRejectsPublish(t *testing.T) {
	b := NewInMemoryBroker()
	ch, _ := b.Subscribe(context.Background(), "t", "")

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(context.Background(), "t", "", []byte("x")); err == nil {
		t.Error("publish on closed broker succeeded")
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel not closed")
	}
}

func TestInMemorySubscriberCancellation(t *testing.T) {
	b := NewInMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "t", "")
	cancel()

	// The subscriber channel closes once the cancellation is observed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscriber channel never closed after cancellation")
		}
	}
}
