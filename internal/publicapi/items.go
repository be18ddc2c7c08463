package publicapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	"github.com/brocantia/collector/internal/listing"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

const (
	defaultFeedLimit = 12
	maxFeedLimit     = 50
)

// feedCard is one tile of the public feed.
type feedCard struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	ShippingCost float64   `json:"shipping_cost"`
	Currency     string    `json:"currency"`
	UpdatedAt    time.Time `json:"updated_at"`
	ShopID       string    `json:"shop_id"`
	ShopName     string    `json:"shop_name"`
	ShopLogoURL  *string   `json:"shop_logo_url"`
	SellerID     string    `json:"seller_id"`
	SellerName   *string   `json:"seller_name"`
	CoverURL     *string   `json:"cover_url"`
}

// Feed serves the cursor-paginated stream of published listings from
// active shops, newest update first.
func Feed(c echo.Context) error {
	limit := defaultFeedLimit
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	cur := parseCursor(c.QueryParam("cursor"))

	query := `
        SELECT i.id, i.title, i.description, i.price, i.shipping_cost, i.currency, i.updated_at,
               s.id, s.name, s.logo_url,
               u.id, u.display_name,
               (SELECT im.url FROM item_images im WHERE im.item_id = i.id ORDER BY im.position ASC LIMIT 1)
        FROM items i
        JOIN shops s ON s.id = i.shop_id
        JOIN users u ON u.id = s.owner_id
        WHERE i.status = 'PUBLISHED'
          AND s.is_active = TRUE`
	args := []interface{}{limit}
	if cur != nil {
		query += `
          AND (i.updated_at < $2
               OR (i.updated_at = $2 AND i.id < $3))`
		args = append(args, cur.UpdatedAt, cur.ID)
	}
	query += `
        ORDER BY i.updated_at DESC, i.id DESC
        LIMIT $1`

	rows, err := db.Conn.Query(c.Request().Context(), query, args...)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch feed", err))
	}
	defer rows.Close()

	items := []feedCard{}
	for rows.Next() {
		var card feedCard
		if err := rows.Scan(
			&card.ID, &card.Title, &card.Description, &card.Price, &card.ShippingCost,
			&card.Currency, &card.UpdatedAt,
			&card.ShopID, &card.ShopName, &card.ShopLogoURL,
			&card.SellerID, &card.SellerName,
			&card.CoverURL,
		); err != nil {
			return response.Error(c, apperrors.Internal("could not scan feed item", err))
		}
		items = append(items, card)
	}

	var next *string
	if len(items) == limit {
		last := items[len(items)-1]
		n := encodeCursor(last.UpdatedAt, last.ID)
		next = &n
	}
	return response.Success(c, echo.Map{"items": items, "nextCursor": next})
}

// ItemDetail returns a published listing with its shop, seller name and
// ordered images. Unpublished listings are invisible here.
func ItemDetail(c echo.Context) error {
	itemID := c.Param("id")
	ctx := c.Request().Context()

	var item listing.Listing
	var shop struct {
		ID          string  `json:"id"`
		OwnerID     string  `json:"owner_id"`
		Name        string  `json:"name"`
		Description *string `json:"description"`
		LogoURL     *string `json:"logo_url"`
		SellerName  *string `json:"seller_name"`
	}
	err := db.Conn.QueryRow(ctx, `
        SELECT i.id, i.shop_id, i.category_id, i.title, i.description,
               i.price, i.shipping_cost, i.currency, i.status, i.created_at, i.updated_at,
               s.id, s.owner_id, s.name, s.description, s.logo_url,
               u.display_name
        FROM items i
        JOIN shops s ON s.id = i.shop_id
        JOIN users u ON u.id = s.owner_id
        WHERE i.id = $1
          AND i.status = 'PUBLISHED'
          AND s.is_active = TRUE`,
		itemID,
	).Scan(
		&item.ID, &item.ShopID, &item.CategoryID, &item.Title, &item.Description,
		&item.Price, &item.ShippingCost, &item.Currency, &item.Status, &item.CreatedAt, &item.UpdatedAt,
		&shop.ID, &shop.OwnerID, &shop.Name, &shop.Description, &shop.LogoURL,
		&shop.SellerName,
	)
	if err != nil {
		return response.Error(c, apperrors.NotFound("listing"))
	}

	rows, err := db.Conn.Query(ctx, `
        SELECT id, item_id, url, position, is_primary
        FROM item_images
        WHERE item_id = $1
        ORDER BY position ASC, id ASC`,
		itemID,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch images", err))
	}
	defer rows.Close()

	images := []listing.Image{}
	for rows.Next() {
		var img listing.Image
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL, &img.Position, &img.IsPrimary); err != nil {
			return response.Error(c, apperrors.Internal("could not scan image", err))
		}
		images = append(images, img)
	}

	return response.Success(c, echo.Map{
		"item":   item,
		"shop":   shop,
		"images": images,
	})
}
