package media

import (
	"fmt"
	"sync"

	"callnotify/metric"
	"callnotify/pkg/log"
	"callnotify/types/message"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// CallState records whether, and with whom, the local user is on a call.
type CallState interface {
	SetBusy(busy bool) error
	SetActiveCallPartner(id string) error
}

// Negotiator owns one peer connection per call partner. ANSWER starts the
// negotiation; every other terminal signaling action tears the session down.
type Negotiator struct {
	mu               sync.RWMutex
	api              *webrtc.API
	connectionConfig webrtc.Configuration
	sessions         map[string]*Session
	calls            CallState
	metrics          *metric.Metrics
	onLocal          func(peerID string, sdp webrtc.SessionDescription)
}

// New creates a Negotiator with the default codecs and interceptors.
func New(c Config, calls CallState, m *metric.Metrics) (*Negotiator, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}
	se := webrtc.SettingEngine{}
	if err := c.SetPortRange(&se); err != nil {
		return nil, err
	}

	return &Negotiator{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(me),
			webrtc.WithInterceptorRegistry(ir),
			webrtc.WithSettingEngine(se),
		),
		connectionConfig: c.Configuration(),
		sessions:         make(map[string]*Session),
		calls:            calls,
		metrics:          m,
	}, nil
}

// OnLocalDescription sets the callback receiving the offer an initiating
// session creates. Transporting it to the peer is up to the caller.
func (n *Negotiator) OnLocalDescription(fn func(peerID string, sdp webrtc.SessionDescription)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onLocal = fn
}

// Init creates the session with peerID, replacing an existing one.
func (n *Negotiator) Init(peerID string, initiator bool) error {
	if err := n.Close(peerID); err != nil {
		log.Debugf("failed to close previous session with %s: %v", peerID, err)
	}

	conn, err := n.api.NewPeerConnection(n.connectionConfig)
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := conn.AddTransceiverFromKind(kind); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	sess := &Session{
		PeerID:    peerID,
		Initiator: initiator,
		state:     Pending,
		conn:      conn,
	}
	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		n.readTrack(peerID, track)
	})
	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debugf("peer %s: connection state has changed to %s", peerID, state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			if sess.setLive(true) {
				n.metrics.IncrementWebRTCConnections()
			}
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if sess.setLive(false) {
				n.metrics.DecrementWebRTCConnections()
			}
		default:
		}
	})

	n.mu.Lock()
	n.sessions[peerID] = sess
	n.mu.Unlock()
	log.Infof("media session with %s created (initiator: %t)", peerID, initiator)
	return nil
}

// Handle applies a signaling message from a call partner.
func (n *Negotiator) Handle(msg message.Message) {
	peerID := msg.FromUserID
	switch msg.Action {
	case message.ANSWER:
		if err := n.negotiate(peerID); err != nil {
			log.Errorf("failed to negotiate with %s: %v", peerID, err)
		}
	case message.DECLINE, message.CANCEL, message.NO_ANSWER, message.BUSY, message.UNSUPPORTED:
		if err := n.Close(peerID); err != nil {
			log.Errorf("failed to close session with %s: %v", peerID, err)
		}
	}
}

func (n *Negotiator) negotiate(peerID string) error {
	sess, ok := n.Session(peerID)
	if !ok {
		log.Debugf("ignoring answer from %s: no session", peerID)
		return nil
	}
	if !sess.connect() {
		return nil
	}
	if err := n.calls.SetBusy(true); err != nil {
		log.Errorf("failed to mark busy: %v", err)
	}
	if err := n.calls.SetActiveCallPartner(peerID); err != nil {
		log.Errorf("failed to set call partner %s: %v", peerID, err)
	}
	if !sess.Initiator {
		return nil
	}

	offer, err := sess.conn.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := sess.conn.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	n.mu.RLock()
	onLocal := n.onLocal
	n.mu.RUnlock()
	if onLocal != nil {
		onLocal(peerID, *sess.conn.LocalDescription())
	}
	return nil
}

// Session returns the session with peerID.
func (n *Negotiator) Session(peerID string) (*Session, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s, ok := n.sessions[peerID]
	return s, ok
}

// Close removes the session with peerID. Closing a connecting session ends
// the call, so the local user is free again.
func (n *Negotiator) Close(peerID string) error {
	n.mu.Lock()
	sess, ok := n.sessions[peerID]
	delete(n.sessions, peerID)
	n.mu.Unlock()
	if !ok {
		return nil
	}

	prev, err := sess.close()
	if prev == Connecting {
		if busyErr := n.calls.SetBusy(false); busyErr != nil {
			log.Errorf("failed to clear busy: %v", busyErr)
		}
		if partnerErr := n.calls.SetActiveCallPartner(""); partnerErr != nil {
			log.Errorf("failed to clear call partner: %v", partnerErr)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to close peer connection: %w", err)
	}
	log.Infof("media session with %s closed", peerID)
	return nil
}

// CloseAll closes every session.
func (n *Negotiator) CloseAll() {
	n.mu.RLock()
	peers := make([]string, 0, len(n.sessions))
	for id := range n.sessions {
		peers = append(peers, id)
	}
	n.mu.RUnlock()

	for _, id := range peers {
		if err := n.Close(id); err != nil {
			log.Errorf("failed to close session with %s: %v", id, err)
		}
	}
}

// readTrack drains a remote track and accounts its payload bytes.
func (n *Negotiator) readTrack(peerID string, track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}
	for {
		i, _, err := track.Read(buf)
		if err != nil {
			log.Debugf("track from %s ended: %v", peerID, err)
			return
		}
		if err := pkt.Unmarshal(buf[:i]); err != nil {
			continue
		}
		n.metrics.AddNetworkUsage(metric.Inbound, float64(len(pkt.Payload)))
	}
}
