// Package live turns store reads into push subscriptions: a query runs
// once up front, then re-runs whenever a bus event in one of its
// dependency namespaces fires, and each fresh result is pushed to the
// subscriber. Ordering across different subscriptions is not
// coordinated; each one independently converges on the store state.
package live

import (
	"sync"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
)

// Result is one delivery of a subscribed query.
type Result struct {
	Value any
	Err   error
}

// Query names the bus namespaces a read depends on and how to run it.
type Query struct {
	Namespaces []string
	Run        func() (any, error)
}

// Hub drives live queries off the event bus.
type Hub struct {
	bus *bus.Bus
}

func NewHub(b *bus.Bus) *Hub {
	return &Hub{bus: b}
}

// Subscription is one running live query. Results carries the initial
// result and every refresh; it closes after Stop.
type Subscription struct {
	Results <-chan Result

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Stop ends the subscription and waits for the result channel to close.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Subscribe starts a live query. Bursts of triggering events are
// coalesced into a single re-run; a subscriber that falls behind skips
// intermediate results rather than queueing them.
func (h *Hub) Subscribe(q Query) *Subscription {
	results := make(chan Result, 1)
	sub := &Subscription{
		Results: results,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	events := make(chan bus.Event, 16)
	var unsubs []func()
	for _, ns := range q.Namespaces {
		ch, unsub := h.bus.Subscribe(ns, 16)
		unsubs = append(unsubs, unsub)
		go func(ch <-chan bus.Event) {
			for {
				select {
				case evt := <-ch:
					select {
					case events <- evt:
					default:
					}
				case <-sub.stop:
					return
				}
			}
		}(ch)
	}

	go func() {
		defer close(sub.done)
		defer close(results)
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		deliver := func() {
			value, err := q.Run()
			// Replace a stale undelivered result instead of queueing.
			select {
			case <-results:
			default:
			}
			select {
			case results <- Result{Value: value, Err: err}:
			case <-sub.stop:
			}
		}

		deliver()
		for {
			select {
			case <-sub.stop:
				return
			case <-events:
				// Coalesce whatever else arrived in the burst.
				for drained := false; !drained; {
					select {
					case <-events:
					default:
						drained = true
					}
				}
				deliver()
			}
		}
	}()

	return sub
}
