package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Message, 1)

	sub, err := bus.Subscribe(ctx, "sora.pool.run1.completed", func(msg *Message) []byte {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	err = bus.Publish(ctx, "sora.pool.run1.completed", []byte("hello"))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Data) != "hello" {
			t.Errorf("Expected 'hello', got %q", string(msg.Data))
		}
		if msg.Subject != "sora.pool.run1.completed" {
			t.Errorf("Unexpected subject %q", msg.Subject)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestMemoryBus_Wildcard(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	var received atomic.Int32

	sub, err := bus.Subscribe(ctx, "sora.pool.*", func(msg *Message) []byte {
		received.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	bus.Publish(ctx, "sora.pool.started", []byte("a"))
	bus.Publish(ctx, "sora.pool.finished", []byte("b"))
	bus.Publish(ctx, "sora.other", []byte("c"))          // no match
	bus.Publish(ctx, "sora.pool.run1.started", []byte("d")) // too deep for *

	time.Sleep(100 * time.Millisecond)
	if got := received.Load(); got != 2 {
		t.Errorf("received %d messages, want 2", got)
	}
}

func TestMemoryBus_MultiTokenWildcard(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	var received atomic.Int32

	sub, err := bus.Subscribe(ctx, "sora.pool.>", func(msg *Message) []byte {
		received.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	bus.Publish(ctx, "sora.pool.run1.started", []byte("a"))
	bus.Publish(ctx, "sora.pool.run1.task.completed", []byte("b"))
	bus.Publish(ctx, "sora.sheet.saved", []byte("c")) // no match

	time.Sleep(100 * time.Millisecond)
	if got := received.Load(); got != 2 {
		t.Errorf("received %d messages, want 2", got)
	}
}

func TestMemoryBus_RequestReply(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "sora.pool.run1.control.stop", func(msg *Message) []byte {
		return []byte("ok")
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	reply, err := bus.Request(ctx, "sora.pool.run1.control.stop", []byte("stop"), time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(reply) != "ok" {
		t.Errorf("reply = %q, want ok", string(reply))
	}
}

func TestMemoryBus_RequestNoResponders(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	_, err := bus.Request(context.Background(), "nobody.home", []byte("x"), 100*time.Millisecond)
	if err != ErrNoResponders {
		t.Errorf("Request error = %v, want ErrNoResponders", err)
	}
}

func TestMemoryBus_RequestTimeout(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	// A subscriber that never replies.
	sub, _ := bus.Subscribe(ctx, "slow.subject", func(msg *Message) []byte {
		return nil
	})
	defer sub.Unsubscribe()

	_, err := bus.Request(ctx, "slow.subject", []byte("x"), 100*time.Millisecond)
	if err != ErrTimeout {
		t.Errorf("Request error = %v, want ErrTimeout", err)
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	var received atomic.Int32

	sub, _ := bus.Subscribe(ctx, "sub.test", func(msg *Message) []byte {
		received.Add(1)
		return nil
	})

	bus.Publish(ctx, "sub.test", []byte("first"))
	time.Sleep(50 * time.Millisecond)
	sub.Unsubscribe()
	bus.Publish(ctx, "sub.test", []byte("second"))
	time.Sleep(50 * time.Millisecond)

	if got := received.Load(); got != 1 {
		t.Errorf("received %d messages, want 1", got)
	}
}

func TestMemoryBus_ClosedRejectsOperations(t *testing.T) {
	bus := NewMemoryBus()
	bus.Close()

	if err := bus.Publish(context.Background(), "x", nil); err != ErrClosed {
		t.Errorf("Publish on closed bus = %v, want ErrClosed", err)
	}
	if _, err := bus.Subscribe(context.Background(), "x", func(*Message) []byte { return nil }); err != ErrClosed {
		t.Errorf("Subscribe on closed bus = %v, want ErrClosed", err)
	}
	if err := bus.Close(); err != ErrClosed {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"a.b.c", "a.b.c", true},
		{"a.b.c", "a.b.d", false},
		{"a.*.c", "a.b.c", true},
		{"a.*", "a.b", true},
		{"a.*", "a.b.c", false},
		{"a.>", "a.b.c.d", true},
		{"a.>", "b.c", false},
		{"*", "a", true},
	}

	for _, tt := range tests {
		if got := matchSubject(tt.pattern, tt.subject); got != tt.want {
			t.Errorf("matchSubject(%q, %q) = %v, want %v", tt.pattern, tt.subject, got, tt.want)
		}
	}
}
