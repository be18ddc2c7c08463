package admin

import (
	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/listing"
	"github.com/brocantia/collector/internal/moderation"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

// ReviewQueue returns every PENDING_REVIEW listing with its moderation
// snapshot and images joined, most recently submitted first.
func (h *Handler) ReviewQueue(c echo.Context) error {
	queue, err := h.svc.PendingQueue(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	if queue == nil {
		queue = []listing.QueueItem{}
	}
	return response.Success(c, queue)
}

// ReviewHistory returns the full human-decision ledger for a listing,
// newest first.
func (h *Handler) ReviewHistory(c echo.Context) error {
	records, err := h.svc.ReviewHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	if records == nil {
		records = []listing.ReviewRecord{}
	}
	return response.Success(c, records)
}

type reviewRequest struct {
	Decision           string  `json:"decision"`
	Notes              string  `json:"notes"`
	TrafficTitle       *string `json:"traffic_title"`
	TrafficDescription *string `json:"traffic_description"`
	TrafficPhoto       *string `json:"traffic_photo"`
}

// Review records an admin decision and drives the PENDING_REVIEW
// transition. Omitted traffic overrides default to GREEN.
func (h *Handler) Review(c echo.Context) error {
	adminID, ok := c.Get("user_id").(string)
	if !ok || adminID == "" {
		return response.Error(c, apperrors.Unauthorized("unauthorized"))
	}

	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}

	item, err := h.svc.Review(c.Request().Context(), adminID, c.Param("id"), listing.ReviewInput{
		Decision:           req.Decision,
		Notes:              req.Notes,
		TrafficTitle:       toLight(req.TrafficTitle),
		TrafficDescription: toLight(req.TrafficDescription),
		TrafficPhoto:       toLight(req.TrafficPhoto),
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, item)
}

func toLight(s *string) *moderation.TrafficLight {
	if s == nil {
		return nil
	}
	l := moderation.ParseTrafficLight(*s)
	return &l
}
