package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/tracknode/internal/api/models"
	"github.com/smazurov/tracknode/internal/config"
)

func (s *Server) registerDisplayRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-display",
		Method:      http.MethodGet,
		Path:        "/api/display",
		Summary:     "Get Display Mode",
		Description: "Which buffer is displayed and streamed",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, _ *struct{}) (*models.DisplayResponse, error) {
		if s.options.Display == nil {
			return nil, huma.Error404NotFound("no display in headless mode")
		}
		return &models.DisplayResponse{
			Body: models.DisplayData{Mode: s.options.Display.DisplayMode().String()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-display",
		Method:      http.MethodPut,
		Path:        "/api/display",
		Summary:     "Set Display Mode",
		Description: "Switch between the raw source frame, the processed frame and no display",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.DisplayRequest) (*models.DisplayResponse, error) {
		if s.options.Display == nil {
			return nil, huma.Error404NotFound("no display in headless mode")
		}
		mode, err := config.ParseDisplayMode(input.Body.Mode)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		s.options.Display.SetDisplayMode(mode)
		s.logger.Info("Display mode changed", "mode", mode)
		return &models.DisplayResponse{Body: models.DisplayData{Mode: mode.String()}}, nil
	})
}
