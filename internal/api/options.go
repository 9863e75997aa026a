package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/tracknode/internal/api/models"
	"github.com/smazurov/tracknode/internal/ffmpeg"
)

// registerOptionsRoutes lists the capture input options a camera file may name.
func (s *Server) registerOptionsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Get Capture Options",
		Description: "Capture input options with descriptions, exclusive groups and conflicts",
		Tags:        []string{"configuration"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		return &models.OptionsResponse{
			Body: models.OptionsData{Options: ffmpeg.AllOptions},
		}, nil
	})
}
