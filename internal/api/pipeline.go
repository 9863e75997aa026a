package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/tracknode/internal/api/models"
	"github.com/smazurov/tracknode/internal/stage"
)

func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/api/pipeline",
		Summary:     "Get Pipeline",
		Description: "Orchestrator state and the stages in processing order",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.PipelineResponse, error) {
		data := models.PipelineData{
			State:  string(s.options.Pipeline.State()),
			Stages: []models.StageInfo{},
		}
		for _, st := range s.options.Pipeline.Stages() {
			data.Stages = append(data.Stages, stageInfo(st))
		}
		if s.options.WebRTC != nil {
			data.Peers = s.options.WebRTC.PeerCount()
		}
		return &models.PipelineResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "toggle-stage",
		Method:      http.MethodPost,
		Path:        "/api/stages/{name}/toggle",
		Summary:     "Toggle Stage Flag",
		Description: "Apply an operator toggle key to a running stage. The change is harvested into the configuration on shutdown.",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422},
	}, func(_ context.Context, input *models.ToggleRequest) (*models.ToggleResponse, error) {
		if len(input.Body.Flag) != 1 {
			return nil, huma.Error422UnprocessableEntity("flag must be a single ASCII key")
		}
		flag := stage.Flag(input.Body.Flag[0])
		enabled, err := s.options.Pipeline.Toggle(input.Name, flag)
		if err != nil {
			return nil, pipelineError(err)
		}
		return &models.ToggleResponse{
			Body: models.ToggleData{
				Stage:   input.Name,
				Flag:    flag.String(),
				Enabled: enabled,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-pipeline",
		Method:        http.MethodPost,
		Path:          "/api/stop",
		Summary:       "Stop",
		Description:   "Request an orderly stop. Tuned parameters are saved before the process exits.",
		Tags:          []string{"pipeline"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StopResponse, error) {
		s.logger.Info("Stop requested through API")
		s.options.Pipeline.Stop()
		resp := &models.StopResponse{}
		resp.Body.Status = "stopping"
		return resp, nil
	})
}

func stageInfo(st stage.Stage) models.StageInfo {
	info := models.StageInfo{Name: st.Name(), Flags: []string{}}
	if f, ok := st.(stage.Flagger); ok {
		for _, flag := range f.Flags() {
			info.Flags = append(info.Flags, flag.String())
		}
	}
	_, info.PostProcess = st.(stage.PostProcessor)
	return info
}
