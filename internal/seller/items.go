package seller

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	"github.com/brocantia/collector/internal/listing"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

// ListItems returns all of the seller's listings across shops with
// images and the latest review joined, most recently updated first.
func (h *Handler) ListItems(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}

	rows, err := db.Conn.Query(c.Request().Context(), `
        SELECT i.id, i.shop_id, i.category_id, i.title, i.description,
               i.price, i.shipping_cost, i.currency, i.status, i.created_at, i.updated_at,
               cat.name,
               (SELECT COALESCE(json_agg(json_build_object(
                        'id', ii.id, 'item_id', ii.item_id, 'url', ii.url,
                        'position', ii.position, 'is_primary', ii.is_primary)
                    ORDER BY ii.position), '[]'::json)
                FROM item_images ii WHERE ii.item_id = i.id),
               (SELECT json_build_object(
                        'id', r.id, 'item_id', r.item_id, 'admin_id', r.admin_id,
                        'decision', r.decision, 'notes', r.notes,
                        'traffic_title', r.traffic_title,
                        'traffic_description', r.traffic_description,
                        'traffic_photo', r.traffic_photo,
                        'created_at', r.created_at)
                FROM item_reviews r WHERE r.item_id = i.id
                ORDER BY r.created_at DESC LIMIT 1)
        FROM items i
        JOIN shops s ON s.id = i.shop_id
        LEFT JOIN categories cat ON cat.id = i.category_id
        WHERE s.owner_id = $1
        ORDER BY i.updated_at DESC`,
		uid,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch items", err))
	}
	defer rows.Close()

	items := []ItemSummary{}
	for rows.Next() {
		var it ItemSummary
		var imagesJSON []byte
		var lastReviewJSON []byte
		if err := rows.Scan(
			&it.ID, &it.ShopID, &it.CategoryID, &it.Title, &it.Description,
			&it.Price, &it.ShippingCost, &it.Currency, &it.Status, &it.CreatedAt, &it.UpdatedAt,
			&it.CategoryName, &imagesJSON, &lastReviewJSON,
		); err != nil {
			return response.Error(c, apperrors.Internal("could not scan item", err))
		}
		if err := json.Unmarshal(imagesJSON, &it.Images); err != nil {
			return response.Error(c, apperrors.Internal("could not decode item images", err))
		}
		if lastReviewJSON != nil {
			if err := json.Unmarshal(lastReviewJSON, &it.LastReview); err != nil {
				return response.Error(c, apperrors.Internal("could not decode last review", err))
			}
		}
		items = append(items, it)
	}
	return response.Success(c, items)
}

// GetItem returns one owned listing with its ordered images and full
// review history.
func (h *Handler) GetItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	item, err := h.svc.GetOwned(ctx, uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	images, err := h.svc.Images(ctx, item.ID)
	if err != nil {
		return response.Error(c, err)
	}
	reviews, err := h.svc.ReviewHistory(ctx, item.ID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, echo.Map{
		"item":    item,
		"images":  images,
		"reviews": reviews,
	})
}

type createItemRequest struct {
	ShopID       string   `json:"shop_id" validate:"required"`
	CategoryID   *string  `json:"category_id"`
	Title        string   `json:"title" validate:"required,min=3"`
	Description  string   `json:"description" validate:"required,min=10"`
	Price        float64  `json:"price" validate:"required,gt=0"`
	ShippingCost float64  `json:"shipping_cost" validate:"gte=0"`
	Currency     string   `json:"currency"`
	Images       []string `json:"images"`
}

func (h *Handler) CreateItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req createItemRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	item, err := h.svc.Create(c.Request().Context(), uid, listing.CreateInput{
		ShopID:       req.ShopID,
		CategoryID:   req.CategoryID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		ShippingCost: req.ShippingCost,
		Currency:     req.Currency,
		Images:       req.Images,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, item)
}

type updateItemRequest struct {
	Title        *string  `json:"title" validate:"omitempty,min=3"`
	Description  *string  `json:"description" validate:"omitempty,min=10"`
	Price        *float64 `json:"price" validate:"omitempty,gt=0"`
	ShippingCost *float64 `json:"shipping_cost" validate:"omitempty,gte=0"`
	CategoryID   *string  `json:"category_id"`
}

func (h *Handler) UpdateItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req updateItemRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	item, err := h.svc.Update(c.Request().Context(), uid, c.Param("id"), listing.FieldPatch{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		ShippingCost: req.ShippingCost,
		CategoryID:   req.CategoryID,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, item)
}

type replaceImagesRequest struct {
	Images []string `json:"images"`
}

func (h *Handler) ReplaceImages(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req replaceImagesRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, apperrors.Validation("invalid request body"))
	}

	item, err := h.svc.ReplaceImages(c.Request().Context(), uid, c.Param("id"), req.Images)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, item)
}

func (h *Handler) SubmitItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}
	item, err := h.svc.Submit(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, item)
}

func (h *Handler) MarkItemSold(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}
	item, err := h.svc.MarkSold(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, item)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return response.Error(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, echo.Map{"ok": true})
}
