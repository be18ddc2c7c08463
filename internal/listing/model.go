package listing

import (
	"time"

	"github.com/brocantia/collector/internal/moderation"
)

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusPublished     Status = "PUBLISHED"
	StatusRejected      Status = "REJECTED"
	StatusSold          Status = "SOLD"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusPublished, StatusRejected, StatusSold:
		return true
	}
	return false
}

// Human review states carried on the moderation snapshot.
const (
	HumanPending  = "PENDING"
	HumanApproved = "APPROVED"
	HumanRejected = "REJECTED"
)

// Review decisions.
const (
	DecisionPublished = "PUBLISHED"
	DecisionRejected  = "REJECTED"
)

// Listing is a sellable item belonging to exactly one shop.
type Listing struct {
	ID           string    `json:"id"`
	ShopID       string    `json:"shop_id"`
	CategoryID   *string   `json:"category_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	ShippingCost float64   `json:"shipping_cost"`
	Currency     string    `json:"currency"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Image is an ordered image reference. The primary flag is always
// derived from position 0, never set independently.
type Image struct {
	ID        string `json:"id"`
	ListingID string `json:"item_id"`
	URL       string `json:"url"`
	Position  int    `json:"position"`
	IsPrimary bool   `json:"is_primary"`
}

// Snapshot is the latest automated check result for a listing, one row
// per listing, overwritten on every (re)submission.
type Snapshot struct {
	ListingID         string                  `json:"item_id"`
	TitleStatus       moderation.TrafficLight `json:"title_status"`
	DescriptionStatus moderation.TrafficLight `json:"description_status"`
	ImagesStatus      moderation.TrafficLight `json:"images_status"`
	AutoScore         float64                 `json:"auto_score"`
	AutoDetails       map[string]interface{}  `json:"auto_details"`
	HumanStatus       string                  `json:"human_status"`
	ReviewerID        *string                 `json:"reviewer_id,omitempty"`
	ReviewedAt        *time.Time              `json:"reviewed_at,omitempty"`
	ReviewNote        *string                 `json:"review_note,omitempty"`
}

// ReviewRecord is one immutable entry in the human-decision ledger.
type ReviewRecord struct {
	ID                 string                  `json:"id"`
	ListingID          string                  `json:"item_id"`
	AdminID            string                  `json:"admin_id"`
	AdminName          string                  `json:"admin_name,omitempty"`
	Decision           string                  `json:"decision"`
	Notes              string                  `json:"notes"`
	TrafficTitle       moderation.TrafficLight `json:"traffic_title"`
	TrafficDescription moderation.TrafficLight `json:"traffic_description"`
	TrafficPhoto       moderation.TrafficLight `json:"traffic_photo"`
	CreatedAt          time.Time               `json:"created_at"`
}

// QueueItem is a pending-review listing joined with seller, shop,
// snapshot and images for the admin queue.
type QueueItem struct {
	Listing
	ShopName          string                  `json:"shop_name"`
	SellerName        string                  `json:"seller_name"`
	SellerEmail       string                  `json:"seller_email"`
	TitleStatus       moderation.TrafficLight `json:"title_status"`
	DescriptionStatus moderation.TrafficLight `json:"description_status"`
	ImagesStatus      moderation.TrafficLight `json:"images_status"`
	AutoScore         float64                 `json:"auto_score"`
	HumanStatus       string                  `json:"human_status"`
	Images            []Image                 `json:"images"`
}

// FieldPatch carries optional field edits; nil fields keep their
// current value.
type FieldPatch struct {
	Title        *string
	Description  *string
	Price        *float64
	ShippingCost *float64
	CategoryID   *string
}
