package streaming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func webrtcOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: "tracknode", Subsystem: "webrtc", Name: name, Help: help}
}

var (
	packetsSent   = promauto.NewCounterVec(webrtcOpts("packets_sent_total", "RTP packets written to the shared track"), []string{"stream_id"})
	bytesSent     = promauto.NewCounterVec(webrtcOpts("bytes_sent_total", "RTP bytes written to the shared track"), []string{"stream_id"})
	rtcpReceived  = promauto.NewCounterVec(webrtcOpts("rtcp_packets_total", "RTCP packets received from viewers"), []string{"stream_id"})
	nacksReceived = promauto.NewCounterVec(webrtcOpts("nacks_total", "Packets viewers asked to have retransmitted"), []string{"stream_id"})

	// The encoder runs a fixed GOP, so these show how often viewers wait
	// for the next keyframe.
	keyframeRequests = promauto.NewCounterVec(webrtcOpts("keyframe_requests_total", "PLI and FIR requests from viewers"), []string{"stream_id", "kind"})

	activePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "webrtc",
		Name:      "active_peers",
		Help:      "Connected WebRTC viewers",
	})

	fractionLost = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracknode",
		Subsystem: "webrtc",
		Name:      "fraction_lost",
		Help:      "Latest packet loss fraction reported by a viewer",
	}, []string{"stream_id"})
)

// IncrementRTCPPackets records one RTCP packet received.
func IncrementRTCPPackets(streamID string) { rtcpReceived.WithLabelValues(streamID).Inc() }

// IncrementNACKs records count packets requested for retransmission.
func IncrementNACKs(streamID string, count int) {
	nacksReceived.WithLabelValues(streamID).Add(float64(count))
}

// IncrementKeyframeRequests records a PLI or FIR.
func IncrementKeyframeRequests(streamID, kind string) {
	keyframeRequests.WithLabelValues(streamID, kind).Inc()
}

// IncrementPacketsSent records one packet of size bytes sent.
func IncrementPacketsSent(streamID string, size int) {
	packetsSent.WithLabelValues(streamID).Inc()
	bytesSent.WithLabelValues(streamID).Add(float64(size))
}

// SetActivePeers sets the current number of viewers.
func SetActivePeers(count int) { activePeers.Set(float64(count)) }

// ObserveFractionLost records the loss a receiver report carried, in 1/256 units.
func ObserveFractionLost(streamID string, fraction uint8) {
	fractionLost.WithLabelValues(streamID).Set(float64(fraction) / 256)
}
