package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/tracknode/internal/api/models"
	"github.com/smazurov/tracknode/internal/devices"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Capture devices a camera file can name",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		detector := s.options.Detector
		if detector == nil {
			detector = devices.NewDetector()
		}
		found, err := detector.FindDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list devices", err)
		}

		resp := &models.DevicesResponse{}
		resp.Body.Devices = make([]models.DeviceInfo, 0, len(found))
		for _, d := range found {
			resp.Body.Devices = append(resp.Body.Devices, models.DeviceInfo{
				DevicePath: d.DevicePath,
				DeviceName: d.DeviceName,
				DeviceID:   d.DeviceID,
			})
		}
		resp.Body.Count = len(resp.Body.Devices)
		return resp, nil
	})
}
