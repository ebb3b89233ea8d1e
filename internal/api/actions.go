package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/airradio/internal/api/models"
	"github.com/smazurov/airradio/internal/streamers"
)

func (s *Server) registerActionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "run-action",
		Method:      http.MethodPost,
		Path:        "/api/actions",
		Summary:     "Run Web Action",
		Description: "Play a media file (/play/<file>) or a base64 encoded URL (/playUrl/<base64>). " +
			"Rejected actions answer 500 with error set.",
		Tags:     []string{"actions"},
		Security: withAuth(),
		Errors:   []int{401, 404},
	}, func(ctx context.Context, input *models.ActionRequest) (*models.ActionResponse, error) {
		if s.options.WebActions == nil {
			return nil, huma.Error404NotFound("Web actions are disabled")
		}
		res := s.options.WebActions.Handle(ctx, input.Body.URI)
		return &models.ActionResponse{
			Status: actionStatus(res),
			Body:   models.ActionResult{Error: res.Error, Message: res.Message},
		}, nil
	})
}

// webActionHandler serves the bare /play and /playUrl paths used by
// home automation webhooks.
func (s *Server) webActionHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.options.WebActions.Handle(r.Context(), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(actionStatus(res))
		if err := json.NewEncoder(w).Encode(res); err != nil {
			s.logger.Debug("Failed to write action result", "error", err)
		}
	})
}

func actionStatus(res streamers.Result) int {
	if res.Error {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
