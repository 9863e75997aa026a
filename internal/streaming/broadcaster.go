// Package streaming delivers the encoded display stream to WebRTC viewers.
package streaming

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	pion "github.com/pion/webrtc/v4"

	"github.com/smazurov/tracknode/internal/encoder"
	"github.com/smazurov/tracknode/internal/logging"
)

// ErrClosed is returned once the broadcaster has been closed.
var ErrClosed = errors.New("broadcaster closed")

const (
	clockRate  = 90000
	defaultMTU = 1200
)

// Config holds configuration for the broadcaster.
type Config struct {
	// StreamID labels metrics and the media stream.
	StreamID string
	// FPS sets the RTP timestamp step between access units.
	FPS int
	// ICEServers for STUN/TURN (empty for LAN-only)
	ICEServers []pion.ICEServer
	// GatherTimeout bounds ICE gathering while answering an offer.
	GatherTimeout time.Duration
}

// Broadcaster fans one H.264 stream out to any number of WebRTC peers.
type Broadcaster struct {
	config Config
	logger *slog.Logger
	api    *pion.API
	track  *pion.TrackLocalStaticRTP

	// mu guards the packetizer, which is stateful across access units.
	mu         sync.Mutex
	packetizer rtp.Packetizer
	params     parameterSets

	peersMu sync.RWMutex
	peers   map[string]*pion.PeerConnection
	closed  bool
}

// NewBroadcaster creates a broadcaster with a single shared video track.
func NewBroadcaster(config Config) (*Broadcaster, error) {
	if config.StreamID == "" {
		config.StreamID = "display"
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.GatherTimeout <= 0 {
		config.GatherTimeout = 5 * time.Second
	}

	api, err := newAPI(config.StreamID)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC API: %w", err)
	}
	track, err := pion.NewTrackLocalStaticRTP(pion.RTPCodecCapability{
		MimeType:    pion.MimeTypeH264,
		ClockRate:   clockRate,
		SDPFmtpLine: videoFmtp,
	}, "video", config.StreamID)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}

	return &Broadcaster{
		config: config,
		logger: logging.GetLogger("streaming").With("stream_id", config.StreamID),
		api:    api,
		track:  track,
		// The track rewrites payload type and SSRC per peer.
		packetizer: rtp.NewPacketizer(defaultMTU, videoPayloadType, 0, &codecs.H264Payloader{}, rtp.NewRandomSequencer(), clockRate),
		peers:      make(map[string]*pion.PeerConnection),
	}, nil
}

// WritePacket packetizes one access unit and sends it to every peer.
func (b *Broadcaster) WritePacket(pkt encoder.Packet) error {
	b.peersMu.RLock()
	closed := b.closed
	b.peersMu.RUnlock()
	if closed {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	au := b.params.prepare(pkt.Data)
	var errs []error
	for _, p := range b.packetizer.Packetize(au, uint32(clockRate/b.config.FPS)) {
		if err := b.track.WriteRTP(p); err != nil {
			errs = append(errs, err)
			continue
		}
		IncrementPacketsSent(b.config.StreamID, p.MarshalSize())
	}
	return errors.Join(errs...)
}

// Answer creates a peer for an SDP offer and returns the complete answer,
// with ICE candidates gathered.
func (b *Broadcaster) Answer(ctx context.Context, offer string) (string, error) {
	b.peersMu.RLock()
	closed := b.closed
	b.peersMu.RUnlock()
	if closed {
		return "", ErrClosed
	}

	pc, err := b.api.NewPeerConnection(pion.Configuration{ICEServers: b.config.ICEServers})
	if err != nil {
		return "", err
	}

	sender, err := pc.AddTrack(b.track)
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("failed to add track: %w", err)
	}

	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer}); err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("invalid offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("failed to create answer: %w", err)
	}

	gathered := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.GatherTimeout)
	defer cancel()
	select {
	case <-gathered:
	case <-ctx.Done():
		_ = pc.Close()
		return "", fmt.Errorf("ICE gathering: %w", ctx.Err())
	}

	peerID := newPeerID()
	b.peersMu.Lock()
	if b.closed {
		b.peersMu.Unlock()
		_ = pc.Close()
		return "", ErrClosed
	}
	b.peers[peerID] = pc
	peerCount := len(b.peers)
	b.peersMu.Unlock()
	SetActivePeers(peerCount)

	// RTCP must be read for the interceptors to see NACK and PLI.
	go func() {
		for {
			if _, _, err := sender.ReadRTCP(); err != nil {
				return
			}
		}
	}()

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		switch state {
		case pion.PeerConnectionStateConnected:
			b.logger.Info("WebRTC peer connected", "peer_id", peerID)
		case pion.PeerConnectionStateDisconnected,
			pion.PeerConnectionStateFailed,
			pion.PeerConnectionStateClosed:
			b.removePeer(peerID, state)
		}
	})

	b.logger.Debug("WebRTC peer created", "peer_id", peerID, "total_peers", peerCount)
	return pc.LocalDescription().SDP, nil
}

func (b *Broadcaster) removePeer(peerID string, state pion.PeerConnectionState) {
	b.peersMu.Lock()
	pc, ok := b.peers[peerID]
	delete(b.peers, peerID)
	remaining := len(b.peers)
	b.peersMu.Unlock()
	if !ok {
		return
	}

	_ = pc.Close()
	SetActivePeers(remaining)
	b.logger.Debug("WebRTC peer disconnected", "peer_id", peerID, "state", state.String(), "remaining_peers", remaining)
}

// PeerCount returns the number of active WebRTC peers.
func (b *Broadcaster) PeerCount() int {
	b.peersMu.RLock()
	defer b.peersMu.RUnlock()
	return len(b.peers)
}

// Close closes all peer connections. Further writes and offers fail.
func (b *Broadcaster) Close() error {
	b.peersMu.Lock()
	if b.closed {
		b.peersMu.Unlock()
		return nil
	}
	b.closed = true
	peers := b.peers
	b.peers = make(map[string]*pion.PeerConnection)
	b.peersMu.Unlock()

	var errs []error
	for _, pc := range peers {
		errs = append(errs, pc.Close())
	}
	SetActivePeers(0)
	b.logger.Info("Broadcaster closed", "peers", len(peers))
	return errors.Join(errs...)
}

func newPeerID() string {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
