// Package call is the client-side video-call engine: a per-call state
// machine fed by the conversation's signaling mailbox, driving a WebRTC
// peer connection. Media flows peer to peer; only signaling touches the
// daemon.
package call

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is a call-machine state.
type State string

const (
	Idle        State = "IDLE"
	Requesting  State = "REQUESTING"
	Ringing     State = "RINGING"
	Negotiating State = "NEGOTIATING"
	Connected   State = "CONNECTED"
	Ended       State = "ENDED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:        {Requesting, Ringing, Ended},
	Requesting:  {Negotiating, Ended},
	Ringing:     {Negotiating, Ended},
	Negotiating: {Connected, Ended},
	Connected:   {Ended},
	Ended:       {},
}

// EndReason records why a call reached Ended.
type EndReason string

const (
	EndNone       EndReason = ""
	EndHangUp     EndReason = "hung-up"
	EndRemoteHang EndReason = "remote-hung-up"
	EndRejected   EndReason = "rejected"
	EndTimeout    EndReason = "timeout"
	EndICEFailed  EndReason = "ice-failed"
	EndSignalLost EndReason = "signaling-failed"
)

// connectTimeout bounds how long a call may sit without inbound media
// before it is torn down.
const connectTimeout = 30 * time.Second

// Machine runs one call. Create a fresh Machine per call attempt.
type Machine struct {
	signaler Signaler
	newPeer  func() (Peer, error)
	logger   *zap.Logger

	// onState, when set, observes every transition.
	onState func(State, EndReason)

	mu        sync.Mutex
	state     State
	reason    EndReason
	initiator bool
	endedByMe bool
	peer      Peer
	processed map[int64]bool
	timer     *time.Timer
}

// Config assembles a Machine.
type Config struct {
	Signaler Signaler
	// NewPeer opens the peer connection when negotiation starts. For
	// production use a closure over NewRTCPeer with the STUN list and
	// media source.
	NewPeer func() (Peer, error)
	Logger  *zap.Logger
	// OnStateChange is optional. It runs with the machine lock held
	// and must not call back into the Machine.
	OnStateChange func(State, EndReason)
}

func NewMachine(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		signaler:  cfg.Signaler,
		newPeer:   cfg.NewPeer,
		logger:    logger.Named("call"),
		onState:   cfg.OnStateChange,
		state:     Idle,
		processed: make(map[int64]bool),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reason returns why the call ended, or EndNone while it is live.
func (m *Machine) Reason() EndReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// EndedByMe reports whether this side initiated the teardown, so a
// clean remote hangup is not misreported as a lost connection.
func (m *Machine) EndedByMe() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endedByMe
}

// transition moves to a new state under m.mu.
func (m *Machine) transition(to State) error {
	if !slices.Contains(validTransitions[m.state], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.state, to)
	}
	from := m.state
	m.state = to
	m.logger.Debug("call state", zap.String("from", string(from)), zap.String("to", string(to)))
	if m.onState != nil {
		m.onState(to, m.reason)
	}
	return nil
}

// Start places an outgoing call: opens the peer connection (which is
// also the capture-permission probe) and enqueues the call request.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return fmt.Errorf("call already in state %s", m.state)
	}
	peer, err := m.openPeer()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.peer = peer
	m.initiator = true
	if err := m.transition(Requesting); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.signaler.Send(ctx, SignalCallRequest, ""); err != nil {
		m.endLocked(ctx, EndSignalLost, true)
		return fmt.Errorf("sending call request: %w", err)
	}
	return nil
}

// Accept answers an incoming call: consumes the pending call-request
// entries, opens the peer connection and tells the caller to proceed.
func (m *Machine) Accept(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Ringing {
		m.mu.Unlock()
		return fmt.Errorf("no incoming call to accept (state %s)", m.state)
	}
	peer, err := m.openPeer()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.peer = peer
	if err := m.transition(Negotiating); err != nil {
		m.mu.Unlock()
		peer.Close()
		return err
	}
	m.armTimeout(ctx)
	m.mu.Unlock()

	// Consume the request entries so a later call starts clean.
	if pending, err := m.signaler.Pending(ctx); err == nil {
		for _, env := range pending {
			if env.Type == SignalCallRequest {
				_ = m.signaler.Clear(ctx, env.ID)
			}
		}
	}
	if err := m.signaler.Send(ctx, SignalCallAccepted, ""); err != nil {
		return fmt.Errorf("sending accept: %w", err)
	}
	return nil
}

// Reject declines an incoming call without opening media.
func (m *Machine) Reject(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Ringing {
		m.mu.Unlock()
		return fmt.Errorf("no incoming call to reject (state %s)", m.state)
	}
	m.mu.Unlock()

	if err := m.signaler.Send(ctx, SignalCallRejected, ""); err != nil {
		m.logger.Warn("sending reject", zap.Error(err))
	}
	// Consume the request entries.
	if pending, err := m.signaler.Pending(ctx); err == nil {
		for _, env := range pending {
			if env.Type == SignalCallRequest {
				_ = m.signaler.Clear(ctx, env.ID)
			}
		}
	}
	m.endLocked(ctx, EndRejected, true)
	return nil
}

// HangUp ends the call from this side and purges the mailbox so stale
// signals cannot resurrect a future call.
func (m *Machine) HangUp(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Ended || m.state == Idle {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.signaler.Send(ctx, SignalCallEnded, ""); err != nil {
		m.logger.Warn("sending hangup", zap.Error(err))
	}
	m.endLocked(ctx, EndHangUp, true)
	if err := m.signaler.ClearConversation(ctx); err != nil {
		m.logger.Warn("purging mailbox", zap.Error(err))
	}
	return nil
}

// ProcessPending drains the mailbox and applies the batch in semantic
// order. Drive this from a live subscription on the signal namespace;
// calling it with an empty mailbox is a no-op.
func (m *Machine) ProcessPending(ctx context.Context) error {
	batch, err := m.signaler.Pending(ctx)
	if err != nil {
		return fmt.Errorf("reading mailbox: %w", err)
	}
	SortSignals(batch)
	for _, env := range batch {
		m.apply(ctx, env)
	}
	return nil
}

func (m *Machine) apply(ctx context.Context, env Envelope) {
	m.mu.Lock()
	if m.processed[env.ID] {
		m.mu.Unlock()
		_ = m.signaler.Clear(ctx, env.ID)
		return
	}
	state := m.state
	m.mu.Unlock()

	consume := true
	switch env.Type {
	case SignalCallRequest:
		// Surface the incoming call but leave the entry for an explicit
		// accept or reject to consume.
		consume = false
		if state == Idle {
			m.mu.Lock()
			if err := m.transition(Ringing); err != nil {
				m.logger.Warn("ringing", zap.Error(err))
			}
			m.mu.Unlock()
		}

	case SignalCallAccepted:
		m.mu.Lock()
		if m.state == Requesting {
			if err := m.transition(Negotiating); err == nil {
				m.armTimeout(ctx)
				peer := m.peer
				m.mu.Unlock()
				m.sendOffer(ctx, peer)
			} else {
				m.mu.Unlock()
			}
		} else {
			m.mu.Unlock()
		}

	case SignalCallRejected:
		m.endLocked(ctx, EndRejected, false)

	case SignalCallEnded:
		m.mu.Lock()
		ended := m.state == Ended
		m.mu.Unlock()
		if !ended {
			m.endLocked(ctx, EndRemoteHang, false)
			// Mirror teardown: drop whatever else is in our inbox.
			if err := m.signaler.ClearConversation(ctx); err != nil {
				m.logger.Warn("purging mailbox", zap.Error(err))
			}
		}

	case SignalOffer:
		m.withPeer(func(peer Peer) {
			answer, err := peer.HandleOffer(env.Payload)
			if err != nil {
				m.negotiationError("applying offer", err)
				return
			}
			if err := m.signaler.Send(ctx, SignalAnswer, answer); err != nil {
				m.negotiationError("sending answer", err)
			}
		})

	case SignalAnswer:
		m.withPeer(func(peer Peer) {
			if err := peer.HandleAnswer(env.Payload); err != nil {
				m.negotiationError("applying answer", err)
			}
		})

	case SignalCandidate:
		m.withPeer(func(peer Peer) {
			if err := peer.AddCandidate(env.Payload); err != nil {
				// Duplicate or early candidates are harmless.
				m.logger.Debug("applying candidate", zap.Error(err))
			}
		})

	default:
		m.logger.Warn("unknown signal", zap.String("type", env.Type))
	}

	m.mu.Lock()
	m.processed[env.ID] = true
	m.mu.Unlock()
	if consume {
		_ = m.signaler.Clear(ctx, env.ID)
	}
}

func (m *Machine) withPeer(fn func(Peer)) {
	m.mu.Lock()
	peer := m.peer
	m.mu.Unlock()
	if peer == nil {
		return
	}
	fn(peer)
}

// negotiationError applies the error policy: fatal before Connected is
// left to the timeout or ICE failure; after Connected everything is
// logged and ignored.
func (m *Machine) negotiationError(op string, err error) {
	m.logger.Warn(op, zap.Error(err))
}

func (m *Machine) sendOffer(ctx context.Context, peer Peer) {
	if peer == nil {
		return
	}
	offer, err := peer.CreateOffer()
	if err != nil {
		m.negotiationError("creating offer", err)
		return
	}
	if err := m.signaler.Send(ctx, SignalOffer, offer); err != nil {
		m.negotiationError("sending offer", err)
	}
}

// openPeer builds the peer connection and wires its callbacks. Called
// under m.mu.
func (m *Machine) openPeer() (Peer, error) {
	peer, err := m.newPeer()
	if err != nil {
		return nil, fmt.Errorf("opening peer: %w", err)
	}
	ctx := context.Background()
	peer.OnLocalCandidate(func(payload string) {
		if err := m.signaler.Send(ctx, SignalCandidate, payload); err != nil {
			m.logger.Warn("sending candidate", zap.Error(err))
		}
	})
	peer.OnMedia(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == Negotiating {
			if err := m.transition(Connected); err == nil {
				m.disarmTimeout()
			}
		}
	})
	peer.OnFailure(func() {
		m.endLocked(ctx, EndICEFailed, false)
	})
	return peer, nil
}

// armTimeout starts the no-media countdown. Called under m.mu.
func (m *Machine) armTimeout(ctx context.Context) {
	m.disarmTimeout()
	m.timer = time.AfterFunc(connectTimeout, func() {
		m.mu.Lock()
		live := m.state == Negotiating
		m.mu.Unlock()
		if live {
			m.endLocked(ctx, EndTimeout, true)
			_ = m.signaler.Send(ctx, SignalCallEnded, "")
			_ = m.signaler.ClearConversation(ctx)
		}
	})
}

func (m *Machine) disarmTimeout() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// endLocked finalizes the call: stops media, closes the peer and
// records the reason.
func (m *Machine) endLocked(_ context.Context, reason EndReason, byMe bool) {
	m.mu.Lock()
	if m.state == Ended {
		m.mu.Unlock()
		return
	}
	m.reason = reason
	m.endedByMe = byMe
	m.disarmTimeout()
	peer := m.peer
	m.peer = nil
	if err := m.transition(Ended); err != nil {
		m.logger.Warn("ending call", zap.Error(err))
	}
	m.mu.Unlock()

	if peer != nil {
		if err := peer.Close(); err != nil {
			m.logger.Warn("closing peer", zap.Error(err))
		}
	}
}
