package tts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/httpclient"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/services"
)

// Service calls the speech synthesizer over HTTP. The synthesizer shares a
// filesystem with the workers, so requests and responses exchange paths, not
// payloads.
type Service struct {
	client  *http.Client
	baseURL string
	logger  arbor.ILogger
}

func NewService(logger arbor.ILogger, config *common.Config) *Service {
	return &Service{
		client:  httpclient.NewDefaultHTTPClient(config.TTSTimeout()),
		baseURL: config.TTS.BaseURL,
		logger:  logger,
	}
}

type synthesizeRequest struct {
	Text          string  `json:"text"`
	Language      string  `json:"language"`
	VoicePath     string  `json:"voice_path,omitempty"`
	Volume        int     `json:"volume"`
	SpeechRate    float64 `json:"speech_rate"`
	OutputPath    string  `json:"output_path"`
	SRTOutputPath string  `json:"srt_output_path,omitempty"`
}

type synthesizeResponse struct {
	Success         bool    `json:"success"`
	AudioPath       string  `json:"audio_path"`
	SRTPath         string  `json:"srt_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error"`
}

func (s *Service) Synthesize(ctx context.Context, req interfaces.SynthesizeRequest) (*interfaces.SynthesizeResult, error) {
	if req.Text == "" {
		return nil, services.Permanent("tts", fmt.Errorf("text is required"))
	}
	if req.OutputPath == "" {
		return nil, services.Permanent("tts", fmt.Errorf("output path is required"))
	}

	body := synthesizeRequest{
		Text:          req.Text,
		Language:      req.Language,
		VoicePath:     req.VoicePath,
		Volume:        req.Volume,
		SpeechRate:    req.SpeechRate,
		OutputPath:    req.OutputPath,
		SRTOutputPath: req.SRTOutputPath,
	}

	var resp synthesizeResponse
	status, err := httpclient.PostJSON(ctx, s.client, s.baseURL+"/api/v1/synthesize", nil, &body, &resp)
	if err != nil {
		return nil, services.Classify("tts", status, err)
	}

	if !resp.Success {
		// The synthesizer reports semantic failures in-band with a 200
		return nil, services.PermanentServer("tts", fmt.Errorf("synthesis failed: %s", resp.Error))
	}

	s.logger.Debug().
		Str("audio_path", resp.AudioPath).
		Float64("duration_seconds", resp.DurationSeconds).
		Msg("Speech synthesized")

	return &interfaces.SynthesizeResult{
		Success:         true,
		AudioPath:       resp.AudioPath,
		SRTPath:         resp.SRTPath,
		DurationSeconds: resp.DurationSeconds,
	}, nil
}
