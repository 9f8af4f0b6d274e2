package call

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// MediaSource supplies the local tracks for a call. Opening it is also
// the capture-permission probe: a source that cannot deliver tracks
// fails here, before any signal is sent.
type MediaSource interface {
	Tracks() ([]webrtc.TrackLocal, error)
}

// Peer abstracts the peer connection so the machine can be driven by a
// fake in tests.
type Peer interface {
	// CreateOffer produces the local SDP offer.
	CreateOffer() (string, error)
	// HandleOffer applies the remote offer and produces the answer.
	HandleOffer(sdp string) (string, error)
	// HandleAnswer applies the remote answer.
	HandleAnswer(sdp string) error
	// AddCandidate applies one remote ICE candidate.
	AddCandidate(payload string) error
	// OnLocalCandidate registers the trickle-ICE outbound hook.
	OnLocalCandidate(fn func(payload string))
	// OnMedia fires on the first inbound media track.
	OnMedia(fn func())
	// OnFailure fires on an unrecoverable ICE failure.
	OnFailure(fn func())
	Close() error
}

// RTCPeer is the pion-backed Peer. STUN only: peers behind symmetric
// NATs may fail to connect, which is an accepted limitation.
type RTCPeer struct {
	pc *webrtc.PeerConnection

	mu         sync.Mutex
	mediaOnce  sync.Once
	onNewMedia func()
	onFailed   func()
	onLocal    func(payload string)
}

// NewRTCPeer builds a peer connection against the given STUN servers
// and publishes the media source's tracks on it.
func NewRTCPeer(stunURLs []string, media MediaSource) (*RTCPeer, error) {
	tracks, err := media.Tracks()
	if err != nil {
		return nil, fmt.Errorf("opening media source: %w", err)
	}

	config := webrtc.Configuration{}
	if len(stunURLs) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: stunURLs}}
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	p := &RTCPeer{pc: pc}
	for _, track := range tracks {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("adding local track: %w", err)
		}
	}

	pc.OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
		p.mediaOnce.Do(func() {
			p.mu.Lock()
			fn := p.onNewMedia
			p.mu.Unlock()
			if fn != nil {
				fn()
			}
		})
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if state == webrtc.ICEConnectionStateFailed {
			p.mu.Lock()
			fn := p.onFailed
			p.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		p.mu.Lock()
		fn := p.onLocal
		p.mu.Unlock()
		if fn != nil {
			fn(string(payload))
		}
	})
	return p, nil
}

func (p *RTCPeer) OnLocalCandidate(fn func(payload string)) {
	p.mu.Lock()
	p.onLocal = fn
	p.mu.Unlock()
}

func (p *RTCPeer) OnMedia(fn func()) {
	p.mu.Lock()
	p.onNewMedia = fn
	p.mu.Unlock()
}

func (p *RTCPeer) OnFailure(fn func()) {
	p.mu.Lock()
	p.onFailed = fn
	p.mu.Unlock()
}

func (p *RTCPeer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("creating offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}
	return offer.SDP, nil
}

func (p *RTCPeer) HandleOffer(sdp string) (string, error) {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return "", fmt.Errorf("setting remote offer: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("creating answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("setting local description: %w", err)
	}
	return answer.SDP, nil
}

func (p *RTCPeer) HandleAnswer(sdp string) error {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("setting remote answer: %w", err)
	}
	return nil
}

func (p *RTCPeer) AddCandidate(payload string) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
		return fmt.Errorf("decoding candidate: %w", err)
	}
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("adding candidate: %w", err)
	}
	return nil
}

func (p *RTCPeer) Close() error {
	return p.pc.Close()
}
