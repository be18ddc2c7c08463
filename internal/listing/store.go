package listing

import "context"

// Store is the persistence boundary of the listing service. The pgx
// implementation lives in store_pg.go; tests inject a fake.
type Store interface {
	// ShopOwnedBy reports whether the shop exists and belongs to ownerID.
	ShopOwnedBy(ctx context.Context, shopID, ownerID string) (bool, error)

	// Get returns the listing together with the owning user's ID
	// (joined through the shop). Returns (nil, "", nil) when absent.
	Get(ctx context.Context, listingID string) (*Listing, string, error)

	Insert(ctx context.Context, l *Listing, imageURLs []string) (*Listing, error)

	// UpdateFields applies a COALESCE-style patch and sets the status in
	// the same statement.
	UpdateFields(ctx context.Context, listingID string, patch FieldPatch, status Status) (*Listing, error)

	// ReplaceImages atomically swaps the image set; positions are
	// recomputed from slice order and position 0 is primary.
	ReplaceImages(ctx context.Context, listingID string, urls []string) error

	Images(ctx context.Context, listingID string) ([]Image, error)
	CountImages(ctx context.Context, listingID string) (int, error)

	SetStatus(ctx context.Context, listingID string, status Status) (*Listing, error)
	Delete(ctx context.Context, listingID string) error

	// UpsertSnapshot overwrites the moderation snapshot, resetting the
	// human-review fields to PENDING.
	UpsertSnapshot(ctx context.Context, snap *Snapshot) error

	// SetSnapshotHuman records the human decision on the snapshot.
	SetSnapshotHuman(ctx context.Context, listingID, humanStatus, reviewerID, note string) error

	AppendReview(ctx context.Context, rec *ReviewRecord) (*ReviewRecord, error)

	// ReviewHistory returns the ledger newest first.
	ReviewHistory(ctx context.Context, listingID string) ([]ReviewRecord, error)

	// PendingQueue returns all PENDING_REVIEW listings with snapshot and
	// images joined, most recently updated first.
	PendingQueue(ctx context.Context) ([]QueueItem, error)
}
