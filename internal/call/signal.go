package call

import (
	"context"
	"sort"
)

// Signal types exchanged through the conversation mailbox.
const (
	SignalCallRequest  = "call-request"
	SignalCallAccepted = "call-accepted"
	SignalCallRejected = "call-rejected"
	SignalCallEnded    = "call-ended"
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalCandidate    = "candidate"
)

// Envelope is one mailbox entry as seen by the call machine.
type Envelope struct {
	ID      int64
	From    string
	Type    string
	Payload string
}

// Signaler is the store-and-forward mailbox the machine talks through.
// The daemon's chat service implements it; tests use an in-memory pair.
type Signaler interface {
	// Send enqueues an envelope to the counterparty.
	Send(ctx context.Context, signalType, payload string) error
	// Pending returns the unconsumed envelopes addressed to this side.
	Pending(ctx context.Context) ([]Envelope, error)
	// Clear consumes one envelope.
	Clear(ctx context.Context, id int64) error
	// ClearConversation purges this side's own inbox. An envelope still
	// in flight to the counterparty is theirs to consume.
	ClearConversation(ctx context.Context) error
}

// applyPriority orders a batch before it is applied: teardown first,
// then call control, then descriptions before candidates. The mailbox
// makes no ordering promise, and a candidate applied before its offer
// is useless.
var applyPriority = map[string]int{
	SignalCallEnded:    0,
	SignalCallRejected: 1,
	SignalCallRequest:  2,
	SignalCallAccepted: 3,
	SignalOffer:        4,
	SignalAnswer:       5,
	SignalCandidate:    6,
}

// SortSignals orders a batch by apply priority, ties broken by id.
func SortSignals(batch []Envelope) {
	sort.SliceStable(batch, func(i, j int) bool {
		pi, pj := applyPriority[batch[i].Type], applyPriority[batch[j].Type]
		if pi != pj {
			return pi < pj
		}
		return batch[i].ID < batch[j].ID
	})
}
