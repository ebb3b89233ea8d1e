package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/airradio/internal/api/models"
	"github.com/smazurov/airradio/internal/metrics"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/device",
		Summary:     "Get Device",
		Description: "Query the AirPlay device for its volume and title",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, _ *struct{}) (*models.DeviceResponse, error) {
		dev := s.options.Device
		if dev == nil {
			return nil, huma.Error404NotFound("No device configured")
		}

		data := models.DeviceData{
			Target: dev.Target(),
			Volume: dev.Volume(ctx),
			Title:  dev.PlaybackTitle(ctx),
			Stats:  metrics.GetTargetStats(dev.Target()),
		}
		if s.options.Volume != nil {
			data.CurrentVolume = s.options.Volume.CurrentVolume()
		}
		return &models.DeviceResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-volume",
		Method:      http.MethodPut,
		Path:        "/api/device/volume",
		Summary:     "Set Volume",
		Description: "Set the device volume; levels above 75 are capped",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 502},
	}, func(ctx context.Context, input *models.VolumeRequest) (*models.VolumeResponse, error) {
		if s.options.Volume == nil {
			return nil, huma.Error404NotFound("Volume control is disabled")
		}
		applied, err := s.options.Volume.SetVolume(ctx, input.Body.Level)
		if err != nil {
			return nil, playbackError(err)
		}
		return &models.VolumeResponse{Body: models.VolumeData{Level: applied}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Session Stats",
		Description: "Session counters per device since startup",
		Tags:        []string{"device"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatsResponse, error) {
		return &models.StatsResponse{Body: models.StatsData{Targets: metrics.GetAllTargetStats()}}, nil
	})
}
