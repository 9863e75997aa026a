package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// WebRTCOfferInput is the request body for WebRTC signaling.
type WebRTCOfferInput struct {
	RawBody []byte `contentType:"application/sdp" doc:"SDP offer from browser"`
}

// WebRTCAnswerOutput is the response body for WebRTC signaling.
type WebRTCAnswerOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (s *Server) registerWebRTCRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "webrtc-offer",
		Method:      http.MethodPost,
		Path:        "/api/webrtc",
		Summary:     "WebRTC signaling",
		Description: "Exchange an SDP offer for an answer carrying the display stream",
		Tags:        []string{"streaming"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 503},
	}, func(ctx context.Context, input *WebRTCOfferInput) (*WebRTCAnswerOutput, error) {
		if s.options.WebRTC == nil {
			return nil, huma.Error503ServiceUnavailable("streaming is disabled")
		}
		if len(input.RawBody) == 0 {
			return nil, huma.Error400BadRequest("empty SDP offer")
		}
		answer, err := s.options.WebRTC.Answer(ctx, string(input.RawBody))
		if err != nil {
			return nil, huma.Error400BadRequest("failed to negotiate WebRTC session", err)
		}
		return &WebRTCAnswerOutput{
			ContentType: "application/sdp",
			Body:        []byte(answer),
		}, nil
	})
}
