package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/framescale/internal/api/models"
)

// registerRunRoutes registers the status and pause endpoints of the run.
func (s *Server) registerRunRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Run Status",
		Description: "Progress and stage states of the current run",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		if s.controller == nil {
			return nil, huma.Error503ServiceUnavailable("no run attached")
		}
		return &models.StatusResponse{Body: s.controller.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "pause-run",
		Method:      http.MethodPost,
		Path:        "/api/pause",
		Summary:     "Pause",
		Description: "Pause decoding, upscaling and encoding. Frames in flight are finished.",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *struct{}) (*models.PauseResponse, error) {
		return s.setPaused(true)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resume-run",
		Method:      http.MethodPost,
		Path:        "/api/resume",
		Summary:     "Resume",
		Description: "Resume a paused run",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *struct{}) (*models.PauseResponse, error) {
		return s.setPaused(false)
	})
}

func (s *Server) setPaused(paused bool) (*models.PauseResponse, error) {
	if s.controller == nil {
		return nil, huma.Error503ServiceUnavailable("no run attached")
	}
	changed := s.controller.SetPaused(paused)
	if changed {
		s.logger.Info("Pause changed via API", "paused", paused)
	}
	return &models.PauseResponse{
		Body: models.PauseData{Paused: paused, Changed: changed},
	}, nil
}
