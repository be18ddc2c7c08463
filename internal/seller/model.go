package seller

import (
	"time"

	"github.com/brocantia/collector/internal/listing"
)

// Shop is a seller-owned storefront grouping listings.
type Shop struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	LogoURL     *string   `json:"logo_url"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemSummary is one row of the seller's item list: the listing plus
// its category name, images and the most recent review (the rejection
// feedback a seller cares about).
type ItemSummary struct {
	listing.Listing
	CategoryName *string               `json:"category_name"`
	Images       []listing.Image       `json:"images"`
	LastReview   *listing.ReviewRecord `json:"last_review"`
}
