package publicapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/brocantia/collector/internal/db"
	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/response"
)

type searchHit struct {
	ShopID      string  `json:"shop_id"`
	ShopName    string  `json:"shop_name"`
	ShopLogoURL *string `json:"shop_logo_url"`
	SellerID    string  `json:"seller_id"`
	SellerName  *string `json:"seller_name"`
}

// Search does a case-insensitive substring match over shop and seller
// names. Queries shorter than 2 characters return nothing.
func Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if len(q) < 2 {
		return response.Success(c, []searchHit{})
	}

	rows, err := db.Conn.Query(c.Request().Context(), `
        SELECT s.id, s.name, s.logo_url, u.id, u.display_name
        FROM shops s
        JOIN users u ON u.id = s.owner_id
        WHERE s.is_active = TRUE
          AND (LOWER(s.name) LIKE LOWER($1)
               OR LOWER(COALESCE(u.display_name, '')) LIKE LOWER($1))
        ORDER BY s.created_at DESC
        LIMIT 30`,
		"%"+q+"%",
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not search", err))
	}
	defer rows.Close()

	hits := []searchHit{}
	for rows.Next() {
		var hit searchHit
		if err := rows.Scan(&hit.ShopID, &hit.ShopName, &hit.ShopLogoURL, &hit.SellerID, &hit.SellerName); err != nil {
			return response.Error(c, apperrors.Internal("could not scan search hit", err))
		}
		hits = append(hits, hit)
	}
	return response.Success(c, hits)
}

// ShopProfile returns an active shop and its published listings.
func ShopProfile(c echo.Context) error {
	shopID := c.Param("id")
	ctx := c.Request().Context()

	var shop struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Description *string `json:"description"`
		LogoURL     *string `json:"logo_url"`
		OwnerID     string  `json:"owner_id"`
		SellerName  *string `json:"seller_name"`
	}
	err := db.Conn.QueryRow(ctx, `
        SELECT s.id, s.name, s.description, s.logo_url, s.owner_id, u.display_name
        FROM shops s
        JOIN users u ON u.id = s.owner_id
        WHERE s.id = $1 AND s.is_active = TRUE`,
		shopID,
	).Scan(&shop.ID, &shop.Name, &shop.Description, &shop.LogoURL, &shop.OwnerID, &shop.SellerName)
	if err != nil {
		return response.Error(c, apperrors.NotFound("shop"))
	}

	rows, err := db.Conn.Query(ctx, `
        SELECT i.id, i.title, i.description, i.price, i.shipping_cost, i.currency, i.updated_at,
               s.id, s.name, s.logo_url,
               u.id, u.display_name,
               (SELECT im.url FROM item_images im WHERE im.item_id = i.id ORDER BY im.position ASC LIMIT 1)
        FROM items i
        JOIN shops s ON s.id = i.shop_id
        JOIN users u ON u.id = s.owner_id
        WHERE i.status = 'PUBLISHED' AND i.shop_id = $1
        ORDER BY i.updated_at DESC, i.id DESC`,
		shopID,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch shop items", err))
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
			return response.Error(c, apperrors.Internal("could not scan shop item", err))
		}
		items = append(items, card)
	}

	return response.Success(c, echo.Map{"shop": shop, "items": items})
}

// SellerProfile returns a seller and their active shops.
func SellerProfile(c echo.Context) error {
	sellerID := c.Param("id")
	ctx := c.Request().Context()

	var seller struct {
		ID          string  `json:"id"`
		DisplayName *string `json:"display_name"`
	}
	err := db.Conn.QueryRow(ctx,
		`SELECT id, display_name FROM users WHERE id = $1`, sellerID,
	).Scan(&seller.ID, &seller.DisplayName)
	if err != nil {
		return response.Error(c, apperrors.NotFound("seller"))
	}

	rows, err := db.Conn.Query(ctx, `
        SELECT id, name, logo_url, description
        FROM shops
        WHERE owner_id = $1 AND is_active = TRUE
        ORDER BY created_at DESC`,
		sellerID,
	)
	if err != nil {
		return response.Error(c, apperrors.Internal("could not fetch seller shops", err))
	}
	defer rows.Close()

	type shopCard struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		LogoURL     *string `json:"logo_url"`
		Description *string `json:"description"`
	}
	shops := []shopCard{}
	for rows.Next() {
		var s shopCard
		if err := rows.Scan(&s.ID, &s.Name, &s.LogoURL, &s.Description); err != nil {
			return response.Error(c, apperrors.Internal("could not scan shop", err))
		}
		shops = append(shops, s)
	}

	return response.Success(c, echo.Map{"seller": seller, "shops": shops})
}
