package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brocantia/collector/pkg/logger"
)

// checkTimeout bounds the external call so a slow scoring service cannot
// hold a submitting request open indefinitely.
const checkTimeout = 7 * time.Second

// Input is the content handed to a check.
type Input struct {
	Title       string
	Description string
	ImageURLs   []string
}

// Checker runs an automated content check. Implementations must never
// fail: any upstream problem resolves to the local heuristic instead.
type Checker interface {
	RunCheck(ctx context.Context, in Input) Result
}

// Gateway calls the configured external scoring service and falls back
// to Evaluate when no endpoint is set or the call fails. Callers can
// tell the two apart through Details["mode"].
type Gateway struct {
	endpoint string
	client   *http.Client
}

func NewGateway(endpoint string) *Gateway {
	return &Gateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: checkTimeout},
	}
}

func (g *Gateway) RunCheck(ctx context.Context, in Input) Result {
	if g.endpoint == "" {
		return Evaluate(in.Title, in.Description, in.ImageURLs)
	}

	result, err := g.callRemote(ctx, in)
	if err != nil {
		logger.Warn("moderation check failed, using local heuristic: %v", err)
		fallback := Evaluate(in.Title, in.Description, in.ImageURLs)
		fallback.Details = map[string]interface{}{
			"mode":  "fallback_after_error",
			"error": err.Error(),
		}
		return fallback
	}
	return result
}

// remotePayload is the stable contract of the external service:
// POST {title, description, images} -> this shape.
type remotePayload struct {
	TitleStatus       string                 `json:"title_status"`
	DescriptionStatus string                 `json:"description_status"`
	ImagesStatus      string                 `json:"images_status"`
	Score             float64                `json:"score"`
	Details           map[string]interface{} `json:"details"`
}

func (g *Gateway) callRemote(ctx context.Context, in Input) (Result, error) {
	images := in.ImageURLs
	if images == nil {
		images = []string{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"title":       in.Title,
		"description": in.Description,
		"images":      images,
	})
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("moderation service returned status=%d body=%s", resp.StatusCode, raw)
	}

	var payload remotePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}, fmt.Errorf("malformed moderation response: %w", err)
	}

	details := payload.Details
	if details == nil {
		// The service sent no details object; keep the whole body so the
		// snapshot still records what it said.
		if err := json.Unmarshal(raw, &details); err != nil || details == nil {
			details = map[string]interface{}{}
		}
	}

	return Result{
		TitleStatus:       ParseTrafficLight(payload.TitleStatus),
		DescriptionStatus: ParseTrafficLight(payload.DescriptionStatus),
		ImagesStatus:      ParseTrafficLight(payload.ImagesStatus),
		Score:             clamp01(payload.Score),
		Details:           details,
	}, nil
}
