package dhuman

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/httpclient"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
	"github.com/ternarybob/vidsmith/internal/services"
)

// Service calls the lip-sync generator. An empty base URL disables the
// feature globally: Generate returns an empty path and nil error so the
// pipeline continues without the overlay.
type Service struct {
	client  *http.Client
	baseURL string
	logger  arbor.ILogger
}

func NewService(logger arbor.ILogger, config *common.Config) *Service {
	return &Service{
		client:  httpclient.NewDefaultHTTPClient(config.DigitalHumanTimeout()),
		baseURL: config.DigitalHuman.BaseURL,
		logger:  logger,
	}
}

type generateRequest struct {
	OriginVideoPath  string  `json:"origin_video_path"`
	AudioPath        string  `json:"audio_path"`
	HumanVideoPath   string  `json:"human_video_path"`
	Mode             string  `json:"mode"`
	IntroDuration    float64 `json:"intro_duration"`
	OutroDuration    float64 `json:"outro_duration"`
	EnableTransition bool    `json:"enable_transition"`
	CornerX          int     `json:"corner_x"`
	CornerY          int     `json:"corner_y"`
	ChromaThreshold  float64 `json:"chroma_threshold"`
}

type generateResponse struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path"`
	Error      string `json:"error"`
}

func (s *Service) Generate(ctx context.Context, originVideoPath, audioPath string, settings *models.DigitalHumanSettings, mode interfaces.DigitalHumanMode, enableTransition bool) (string, error) {
	if s.baseURL == "" || settings == nil || settings.VideoPath == "" {
		return "", nil
	}

	cornerX, cornerY, chroma := settings.CornerDefaults()

	body := generateRequest{
		OriginVideoPath:  originVideoPath,
		AudioPath:        audioPath,
		HumanVideoPath:   settings.VideoPath,
		Mode:             string(mode),
		IntroDuration:    settings.IntroDuration,
		OutroDuration:    settings.OutroDuration,
		EnableTransition: enableTransition,
		CornerX:          cornerX,
		CornerY:          cornerY,
		ChromaThreshold:  chroma,
	}

	var resp generateResponse
	status, err := httpclient.PostJSON(ctx, s.client, s.baseURL+"/api/v1/generate", nil, &body, &resp)
	if err != nil {
		return "", services.Classify("digital_human", status, err)
	}
	if !resp.Success {
		return "", services.PermanentServer("digital_human", fmt.Errorf("generation failed: %s", resp.Error))
	}

	s.logger.Info().Str("mode", string(mode)).Str("output", resp.OutputPath).Msg("Digital human composite generated")
	return resp.OutputPath, nil
}
