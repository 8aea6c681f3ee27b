package imagegen

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/httpclient"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/services"
)

// Resolution constants for the two orientations.
const (
	HorizontalWidth  = 1360
	HorizontalHeight = 768
	VerticalWidth    = 768
	VerticalHeight   = 1360
)

// Service calls the image generator over HTTP. A rate limiter spaces requests
// so batches do not overwhelm the generator's GPU queue.
type Service struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  arbor.ILogger
}

func NewService(logger arbor.ILogger, config *common.Config) *Service {
	interval := config.ImageRateLimit()
	return &Service{
		client:  httpclient.NewDefaultHTTPClient(config.ImageTimeout()),
		baseURL: config.Image.BaseURL,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// Dimensions returns the generation resolution for an orientation.
func Dimensions(horizontal bool) (width, height int) {
	if horizontal {
		return HorizontalWidth, HorizontalHeight
	}
	return VerticalWidth, VerticalHeight
}

type generateRequest struct {
	Prompt      string         `json:"prompt"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Steps       int            `json:"steps,omitempty"`
	StyleName   string         `json:"style_name,omitempty"`
	StyleWeight float64        `json:"style_weight,omitempty"`
	OutputPath  string         `json:"output_path"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type generateResponse struct {
	Status                string  `json:"status"`
	OutputPath            string  `json:"output_path"`
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
	Error                 string  `json:"error"`
}

func (s *Service) GenerateSingle(ctx context.Context, req interfaces.ImageRequest) (*interfaces.ImageResult, error) {
	if req.Prompt == "" {
		return nil, services.Permanent("image", fmt.Errorf("prompt is required"))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, services.Transient("image", err)
	}

	body := generateRequest{
		Prompt:      req.Prompt,
		Width:       req.Width,
		Height:      req.Height,
		Steps:       req.Steps,
		StyleName:   req.StyleName,
		StyleWeight: req.StyleWeight,
		OutputPath:  req.OutputPath,
		Extra:       req.Extra,
	}

	var resp generateResponse
	status, err := httpclient.PostJSON(ctx, s.client, s.baseURL+"/api/v1/generate", nil, &body, &resp)
	if err != nil {
		return nil, services.Classify("image", status, err)
	}

	result := &interfaces.ImageResult{
		Status:                resp.Status,
		OutputPath:            resp.OutputPath,
		GenerationTimeSeconds: resp.GenerationTimeSeconds,
		Error:                 resp.Error,
	}
	if result.Status == "" {
		result.Status = "failed"
	}
	return result, nil
}
