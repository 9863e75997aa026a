package streaming

import (
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/report"
	"github.com/pion/interceptor/pkg/twcc"
	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"
)

// nackBufferSize is the number of packets kept for retransmission. The
// display stream is a few Mbit/s at most, so 1024 packets cover well over a
// second.
const nackBufferSize = 1024

// srtpReplayWindow must be at least as large as nackBufferSize.
const srtpReplayWindow = 2048

// videoFmtp advertises constrained baseline, the only profile the encoder
// is configured for.
const videoFmtp = "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"

const videoPayloadType = 96

// newAPI builds the API shared by every viewer of streamID. Interceptors are
// instantiated per peer connection from the registry's factories.
func newAPI(streamID string) (*pion.API, error) {
	m := &pion.MediaEngine{}
	feedback := []pion.RTCPFeedback{
		{Type: "goog-remb"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
		{Type: pion.TypeRTCPFBTransportCC},
	}
	if err := m.RegisterCodec(pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:     pion.MimeTypeH264,
			ClockRate:    clockRate,
			SDPFmtpLine:  videoFmtp,
			RTCPFeedback: feedback,
		},
		PayloadType: videoPayloadType,
	}, pion.RTPCodecTypeVideo); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := addInterceptors(registry); err != nil {
		return nil, err
	}
	registry.Add(&rtcpMonitorFactory{streamID: streamID})

	s := pion.SettingEngine{}
	s.SetDTLSInsecureSkipHelloVerify(true)
	s.SetSRTPReplayProtectionWindow(srtpReplayWindow)

	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(registry),
		pion.WithSettingEngine(s),
	), nil
}

// addInterceptors registers retransmission, RTCP reports and transport-wide
// congestion feedback. The stream is send-only so no NACK generator is needed.
func addInterceptors(registry *interceptor.Registry) error {
	responder, err := nack.NewResponderInterceptor(nack.ResponderSize(nackBufferSize))
	if err != nil {
		return err
	}
	registry.Add(responder)

	sender, err := report.NewSenderInterceptor()
	if err != nil {
		return err
	}
	registry.Add(sender)

	twccSender, err := twcc.NewSenderInterceptor()
	if err != nil {
		return err
	}
	registry.Add(twccSender)
	return nil
}

type rtcpMonitorFactory struct {
	streamID string
}

func (f *rtcpMonitorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return &rtcpMonitor{streamID: f.streamID}, nil
}

// rtcpMonitor counts the feedback viewers send.
type rtcpMonitor struct {
	interceptor.NoOp
	streamID string
}

func (r *rtcpMonitor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, attr, err := reader.Read(b, a)
		if err != nil {
			return n, attr, err
		}
		if packets, parseErr := rtcp.Unmarshal(b[:n]); parseErr == nil {
			observeRTCP(r.streamID, packets)
		}
		return n, attr, nil
	})
}

func observeRTCP(streamID string, packets []rtcp.Packet) {
	for _, pkt := range packets {
		IncrementRTCPPackets(streamID)
		switch p := pkt.(type) {
		case *rtcp.TransportLayerNack:
			count := 0
			for _, pair := range p.Nacks {
				count += len(pair.PacketList())
			}
			IncrementNACKs(streamID, count)
		case *rtcp.PictureLossIndication:
			IncrementKeyframeRequests(streamID, "pli")
		case *rtcp.FullIntraRequest:
			IncrementKeyframeRequests(streamID, "fir")
		case *rtcp.ReceiverReport:
			for _, rr := range p.Reports {
				ObserveFractionLost(streamID, rr.FractionLost)
			}
		}
	}
}
