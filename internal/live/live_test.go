package live

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
)

func TestSubscribeDeliversInitialResult(t *testing.T) {
	h := NewHub(bus.New())

	sub := h.Subscribe(Query{
		Namespaces: []string{"message."},
		Run:        func() (any, error) { return "snapshot", nil },
	})
	defer sub.Stop()

	select {
	case r := <-sub.Results:
		if r.Value != "snapshot" || r.Err != nil {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial result")
	}
}

func TestSubscribeRerunsOnMatchingEvent(t *testing.T) {
	b := bus.New()
	h := NewHub(b)

	var runs atomic.Int64
	sub := h.Subscribe(Query{
		Namespaces: []string{"message."},
		Run:        func() (any, error) { return runs.Add(1), nil },
	})
	defer sub.Stop()

	first := <-sub.Results
	if first.Value.(int64) != 1 {
		t.Fatalf("initial = %v, want 1", first.Value)
	}

	b.Publish(bus.Event{Kind: "message.created"})
	select {
	case r := <-sub.Results:
		if r.Value.(int64) != 2 {
			t.Errorf("refresh = %v, want 2", r.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("no refresh after matching event")
	}

	// An event outside the namespaces does not trigger a run.
	b.Publish(bus.Event{Kind: "friendship.updated"})
	select {
	case r := <-sub.Results:
		t.Errorf("unexpected refresh %v for non-matching event", r.Value)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeMultipleNamespaces(t *testing.T) {
	b := bus.New()
	h := NewHub(b)

	var runs atomic.Int64
	sub := h.Subscribe(Query{
		Namespaces: []string{"message.", "conversation."},
		Run:        func() (any, error) { return runs.Add(1), nil },
	})
	defer sub.Stop()

	<-sub.Results
	b.Publish(bus.Event{Kind: "conversation.updated"})
	select {
	case <-sub.Results:
	case <-time.After(time.Second):
		t.Fatal("no refresh for second namespace")
	}
}

func TestStopClosesResults(t *testing.T) {
	b := bus.New()
	h := NewHub(b)

	sub := h.Subscribe(Query{
		Namespaces: []string{"message."},
		Run:        func() (any, error) { return nil, nil },
	})
	<-sub.Results
	sub.Stop()

	if _, open := <-sub.Results; open {
		t.Error("results should be closed after Stop")
	}
	// Publishing after Stop must not panic or deliver.
	b.Publish(bus.Event{Kind: "message.created"})
}

func TestBurstCoalesces(t *testing.T) {
	b := bus.New()
	h := NewHub(b)

	var runs atomic.Int64
	sub := h.Subscribe(Query{
		Namespaces: []string{"message."},
		Run: func() (any, error) {
			time.Sleep(10 * time.Millisecond)
			return runs.Add(1), nil
		},
	})
	defer sub.Stop()

	<-sub.Results
	for i := 0; i < 50; i++ {
		b.Publish(bus.Event{Kind: "message.created"})
	}
	// Let the refreshes settle, then drain.
	time.Sleep(300 * time.Millisecond)
	var last int64
	for drained := false; !drained; {
		select {
		case r := <-sub.Results:
			last = r.Value.(int64)
		default:
			drained = true
		}
	}
	if last == 0 {
		t.Fatal("no refresh delivered")
	}
	// 50 events must not mean 50 runs.
	if got := runs.Load(); got > 25 {
		t.Errorf("runs = %d for a 50-event burst, want coalescing", got)
	}
}
