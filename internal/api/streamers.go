package api

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/airradio/internal/api/models"
	"github.com/smazurov/airradio/internal/playback"
	"github.com/smazurov/airradio/internal/streamers"
	"github.com/smazurov/airradio/internal/supervisor"
)

func (s *Server) registerStreamerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streamers",
		Method:      http.MethodGet,
		Path:        "/api/streamers",
		Summary:     "List Streamers",
		Description: "List registered streamers and whether they are playing",
		Tags:        []string{"streamers"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StreamerListResponse, error) {
		list := s.options.Coordinator.Streamers()
		data := make([]models.StreamerData, 0, len(list))
		for _, st := range list {
			data = append(data, streamerData(st))
		}
		return &models.StreamerListResponse{
			Body: models.StreamerListData{Streamers: data, Count: len(data)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-streamer",
		Method:      http.MethodGet,
		Path:        "/api/streamers/{name}",
		Summary:     "Get Streamer",
		Description: "Get one streamer and its media state",
		Tags:        []string{"streamers"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.StreamerPathInput) (*models.StreamerResponse, error) {
		st, err := s.findStreamer(input.Name)
		if err != nil {
			return nil, err
		}
		return &models.StreamerResponse{Body: streamerData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-streamer",
		Method:      http.MethodPost,
		Path:        "/api/streamers/{name}/start",
		Summary:     "Start Streamer",
		Description: "Stop every other streamer, then start this one",
		Tags:        []string{"streamers"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 500, 502},
	}, func(ctx context.Context, input *models.StreamerPathInput) (*models.StreamerResponse, error) {
		st, err := s.findStreamer(input.Name)
		if err != nil {
			return nil, err
		}
		if err := st.StartPlaying(ctx); err != nil {
			return nil, playbackError(err)
		}
		return &models.StreamerResponse{Body: streamerData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-streamer",
		Method:      http.MethodPost,
		Path:        "/api/streamers/{name}/stop",
		Summary:     "Stop Streamer",
		Description: "Stop this streamer's playback",
		Tags:        []string{"streamers"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *models.StreamerPathInput) (*models.StreamerResponse, error) {
		st, err := s.findStreamer(input.Name)
		if err != nil {
			return nil, err
		}
		if err := st.StopPlaying(ctx); err != nil {
			return nil, playbackError(err)
		}
		return &models.StreamerResponse{Body: streamerData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-media-state",
		Method:      http.MethodPut,
		Path:        "/api/streamers/{name}/state",
		Summary:     "Set Media State",
		Description: "PLAY starts the streamer; PAUSE and STOP stop it",
		Tags:        []string{"streamers"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 500, 502},
	}, func(ctx context.Context, input *models.MediaStateRequest) (*models.StreamerResponse, error) {
		st, err := s.findStreamer(input.Name)
		if err != nil {
			return nil, err
		}
		state, ok := parseMediaState(input.Body.State)
		if !ok {
			return nil, huma.Error400BadRequest("Unknown media state " + input.Body.State)
		}

		if radio, isRadio := st.(*streamers.Radio); isRadio {
			err = radio.SetTargetMediaState(ctx, state)
		} else if state == streamers.MediaPlay {
			err = st.StartPlaying(ctx)
		} else {
			err = st.StopPlaying(ctx)
		}
		if err != nil {
			return nil, playbackError(err)
		}
		return &models.StreamerResponse{Body: streamerData(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List Sessions",
		Description: "Supervisor state of every streamer",
		Tags:        []string{"streamers"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SessionListResponse, error) {
		names := make([]string, 0, len(s.options.Sessions))
		for name := range s.options.Sessions {
			names = append(names, name)
		}
		sort.Strings(names)

		sessions := make([]models.SessionData, 0, len(names))
		for _, name := range names {
			sessions = append(sessions, sessionData(name, s.options.Sessions[name].Status()))
		}
		return &models.SessionListResponse{Body: models.SessionListData{Sessions: sessions}}, nil
	})
}

func (s *Server) findStreamer(name string) (playback.Streamer, error) {
	st, ok := s.options.Coordinator.Find(name)
	if !ok {
		return nil, huma.Error404NotFound("Streamer not found: " + name)
	}
	return st, nil
}

// playbackError maps supervisor error codes to HTTP statuses.
func playbackError(err error) error {
	var se *supervisor.Error
	if errors.As(err, &se) {
		switch se.Code {
		case supervisor.ErrCodeInvalidParams:
			return huma.Error400BadRequest(se.Message, err)
		case supervisor.ErrCodeVolumeFailed:
			return huma.Error502BadGateway(se.Message, err)
		}
	}
	return huma.Error500InternalServerError("Playback failed", err)
}

func streamerData(st playback.Streamer) models.StreamerData {
	playing := st.IsPlaying()
	state := streamers.MediaStop
	if playing {
		state = streamers.MediaPlay
	}
	return models.StreamerData{
		Name:    st.StreamerName(),
		Kind:    streamerKind(st),
		Playing: playing,
		State:   state.String(),
	}
}

func streamerKind(st playback.Streamer) string {
	switch v := st.(type) {
	case *streamers.Radio:
		return "radio"
	case *streamers.FileSwitch:
		return v.Kind()
	case *streamers.Volume:
		return "volume"
	case *streamers.WebActions:
		return "web"
	default:
		return "unknown"
	}
}

func parseMediaState(s string) (streamers.MediaState, bool) {
	switch s {
	case "PLAY":
		return streamers.MediaPlay, true
	case "PAUSE":
		return streamers.MediaPause, true
	case "STOP":
		return streamers.MediaStop, true
	}
	return streamers.MediaStop, false
}

func sessionData(name string, st supervisor.Status) models.SessionData {
	return models.SessionData{
		Streamer:   name,
		Target:     st.Target,
		State:      string(st.State),
		SessionID:  st.SessionID,
		PID:        st.PID,
		Kind:       string(st.Kind),
		Source:     st.Source,
		Title:      st.Title,
		RetryCount: st.RetryCount,
		StartedAt:  st.StartedAt,
		LastSeenAt: st.LastSeenAt,
	}
}
