package seller

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	"github.com/brocantia/collector/internal/listing"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

// Handler serves the seller API. Listing mutations go through the
// state-machine service; shop CRUD talks to the pool directly.
type Handler struct {
	svc *listing.Service
}

func NewHandler(svc *listing.Service) *Handler {
	return &Handler{svc: svc}
}

func currentUserID(c echo.Context) (string, error) {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return "", apperrors.Unauthorized("unauthorized")
	}
	return uid, nil
}

// ListShops returns the seller's active shops, newest first.
func (h *Handler) ListShops(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}

	rows, err := db.Conn.Query(c.Request().Context(), `
        SELECT id, owner_id, name, description, logo_url, is_active, created_at
        FROM shops
        WHERE owner_id = $1 AND is_active = TRUE
        ORDER BY created_at DESC`,
		uid,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch shops", err))
	}
	defer rows.Close()

	shops := []Shop{}
	for rows.Next() {
		var s Shop
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.LogoURL, &s.IsActive, &s.CreatedAt); err != nil {
			return response.Error(c, apperrors.Internal("could not scan shop", err))
		}
		shops = append(shops, s)
	}
	return response.Success(c, shops)
}

type createShopRequest struct {
	Name        string  `json:"name" validate:"required,min=3"`
	Description *string `json:"description"`
	LogoURL     *string `json:"logo_url"`
}

func (h *Handler) CreateShop(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req createShopRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	var s Shop
	err = db.Conn.QueryRow(c.Request().Context(), `
        INSERT INTO shops (owner_id, name, description, logo_url)
        VALUES ($1, $2, $3, $4)
        RETURNING id, owner_id, name, description, logo_url, is_active, created_at`,
		uid, req.Name, req.Description, req.LogoURL,
	).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.LogoURL, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not create shop", err))
	}
	return response.Created(c, s)
}
