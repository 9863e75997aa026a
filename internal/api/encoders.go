package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/tracknode/internal/api/models"
	"github.com/smazurov/tracknode/internal/encoder"
)

func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "List Encoders",
		Description: "Video encoders the local ffmpeg supports",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.EncodersResponse, error) {
		codecs, err := encoder.ListVideoCodecs(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to query encoders", err)
		}

		resp := &models.EncodersResponse{}
		resp.Body.Encoders = make([]models.EncoderInfo, 0, len(codecs))
		for _, c := range codecs {
			resp.Body.Encoders = append(resp.Body.Encoders, models.EncoderInfo{
				Name:        c.Name,
				Family:      c.Family,
				Description: c.Description,
				HWAccel:     c.HWAccel,
			})
		}
		resp.Body.Count = len(resp.Body.Encoders)
		return resp, nil
	})
}
