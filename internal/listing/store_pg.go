package listing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/brocantia/collector/pkg/errors"
)

// PGStore is the pgx-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const listingColumns = `i.id, i.shop_id, i.category_id, i.title, i.description,
       i.price, i.shipping_cost, i.currency, i.status, i.created_at, i.updated_at`

func scanListing(row pgx.Row, l *Listing) error {
	return row.Scan(
		&l.ID, &l.ShopID, &l.CategoryID, &l.Title, &l.Description,
		&l.Price, &l.ShippingCost, &l.Currency, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
}

func (s *PGStore) ShopOwnedBy(ctx context.Context, shopID, ownerID string) (bool, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM shops WHERE id = $1 AND owner_id = $2 AND is_active = TRUE`,
		shopID, ownerID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Internal("could not check shop ownership", err)
	}
	return true, nil
}

func (s *PGStore) Get(ctx context.Context, listingID string) (*Listing, string, error) {
	var l Listing
	var ownerID string
	err := s.pool.QueryRow(ctx, `
        SELECT `+listingColumns+`, s.owner_id
        FROM items i
        JOIN shops s ON s.id = i.shop_id
        WHERE i.id = $1`,
		listingID,
	).Scan(
		&l.ID, &l.ShopID, &l.CategoryID, &l.Title, &l.Description,
		&l.Price, &l.ShippingCost, &l.Currency, &l.Status, &l.CreatedAt, &l.UpdatedAt,
		&ownerID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", apperrors.Internal("could not fetch listing", err)
	}
	return &l, ownerID, nil
}

func (s *PGStore) Insert(ctx context.Context, l *Listing, imageURLs []string) (*Listing, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.Internal("could not start transaction", err)
	}
	defer tx.Rollback(ctx)

	var created Listing
	err = scanListing(tx.QueryRow(ctx, `
        INSERT INTO items (shop_id, category_id, title, description, price, shipping_cost, currency, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 'DRAFT')
        RETURNING id, shop_id, category_id, title, description,
                  price, shipping_cost, currency, status, created_at, updated_at`,
		l.ShopID, l.CategoryID, l.Title, l.Description, l.Price, l.ShippingCost, l.Currency,
	), &created)
	if err != nil {
		return nil, apperrors.Internal("could not create listing", err)
	}

	for idx, url := range imageURLs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO item_images (item_id, url, position, is_primary) VALUES ($1, $2, $3, $4)`,
			created.ID, url, idx, idx == 0,
		); err != nil {
			return nil, apperrors.Internal("could not attach images", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Internal("could not commit listing", err)
	}
	return &created, nil
}

func (s *PGStore) UpdateFields(ctx context.Context, listingID string, patch FieldPatch, status Status) (*Listing, error) {
	var updated Listing
	err := scanListing(s.pool.QueryRow(ctx, `
        UPDATE items
        SET title = COALESCE($1, title),
            description = COALESCE($2, description),
            price = COALESCE($3, price),
            shipping_cost = COALESCE($4, shipping_cost),
            category_id = COALESCE($5, category_id),
            status = $6,
            updated_at = NOW()
        WHERE id = $7
        RETURNING id, shop_id, category_id, title, description,
                  price, shipping_cost, currency, status, created_at, updated_at`,
		patch.Title, patch.Description, patch.Price, patch.ShippingCost, patch.CategoryID,
		status, listingID,
	), &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("listing")
	}
	if err != nil {
		return nil, apperrors.Internal("could not update listing", err)
	}
	return &updated, nil
}

// ReplaceImages swaps the full image set in one transaction so readers
// never observe a half-replaced sequence.
func (s *PGStore) ReplaceImages(ctx context.Context, listingID string, urls []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.Internal("could not start transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM item_images WHERE item_id = $1`, listingID); err != nil {
		return apperrors.Internal("could not clear images", err)
	}
	for idx, url := range urls {
		if _, err := tx.Exec(ctx,
			`INSERT INTO item_images (item_id, url, position, is_primary) VALUES ($1, $2, $3, $4)`,
			listingID, url, idx, idx == 0,
		); err != nil {
			return apperrors.Internal("could not insert images", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.Internal("could not commit image replace", err)
	}
	return nil
}

func (s *PGStore) Images(ctx context.Context, listingID string) ([]Image, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, item_id, url, position, is_primary
        FROM item_images
        WHERE item_id = $1
        ORDER BY position ASC, id ASC`,
		listingID,
	)
	if err != nil {
		return nil, apperrors.Internal("could not fetch images", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL, &img.Position, &img.IsPrimary); err != nil {
			return nil, apperrors.Internal("could not scan image", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *PGStore) CountImages(ctx context.Context, listingID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM item_images WHERE item_id = $1`, listingID,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Internal("could not count images", err)
	}
	return count, nil
}

func (s *PGStore) SetStatus(ctx context.Context, listingID string, status Status) (*Listing, error) {
	var updated Listing
	err := scanListing(s.pool.QueryRow(ctx, `
        UPDATE items SET status = $1, updated_at = NOW() WHERE id = $2
        RETURNING id, shop_id, category_id, title, description,
                  price, shipping_cost, currency, status, created_at, updated_at`,
		status, listingID,
	), &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("listing")
	}
	if err != nil {
		return nil, apperrors.Internal("could not update status", err)
	}
	return &updated, nil
}

func (s *PGStore) Delete(ctx context.Context, listingID string) error {
	// item_images, item_moderation and item_reviews cascade.
	if _, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, listingID); err != nil {
		return apperrors.Internal("could not delete listing", err)
	}
	return nil
}

func (s *PGStore) UpsertSnapshot(ctx context.Context, snap *Snapshot) error {
	details, err := json.Marshal(snap.AutoDetails)
	if err != nil {
		return apperrors.Internal("could not encode moderation details", err)
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO item_moderation
            (item_id, title_status, description_status, images_status, auto_score, auto_details,
             human_status, reviewer_id, reviewed_at, review_note)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb, 'PENDING', NULL, NULL, NULL)
        ON CONFLICT (item_id) DO UPDATE SET
            title_status = EXCLUDED.title_status,
            description_status = EXCLUDED.description_status,
            images_status = EXCLUDED.images_status,
            auto_score = EXCLUDED.auto_score,
            auto_details = EXCLUDED.auto_details,
            human_status = 'PENDING',
            reviewer_id = NULL,
            reviewed_at = NULL,
            review_note = NULL`,
		snap.ListingID, snap.TitleStatus, snap.DescriptionStatus, snap.ImagesStatus,
		snap.AutoScore, string(details),
	)
	if err != nil {
		return apperrors.Internal("could not upsert moderation snapshot", err)
	}
	return nil
}

func (s *PGStore) SetSnapshotHuman(ctx context.Context, listingID, humanStatus, reviewerID, note string) error {
	// The snapshot normally exists by review time; the ORANGE defaults
	// only matter for rows submitted before the snapshot table existed.
	_, err := s.pool.Exec(ctx, `
        INSERT INTO item_moderation
            (item_id, title_status, description_status, images_status, auto_score,
             human_status, reviewer_id, reviewed_at, review_note)
        VALUES ($1, 'ORANGE', 'ORANGE', 'ORANGE', 0, $2, $3, NOW(), $4)
        ON CONFLICT (item_id) DO UPDATE SET
            human_status = EXCLUDED.human_status,
            reviewer_id = EXCLUDED.reviewer_id,
            reviewed_at = NOW(),
            review_note = EXCLUDED.review_note`,
		listingID, humanStatus, reviewerID, note,
	)
	if err != nil {
		return apperrors.Internal("could not record human review", err)
	}
	return nil
}

func (s *PGStore) AppendReview(ctx context.Context, rec *ReviewRecord) (*ReviewRecord, error) {
	err := s.pool.QueryRow(ctx, `
        INSERT INTO item_reviews
            (item_id, admin_id, decision, notes, traffic_title, traffic_description, traffic_photo)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`,
		rec.ListingID, rec.AdminID, rec.Decision, rec.Notes,
		rec.TrafficTitle, rec.TrafficDescription, rec.TrafficPhoto,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, apperrors.Internal("could not append review", err)
	}
	return rec, nil
}

func (s *PGStore) ReviewHistory(ctx context.Context, listingID string) ([]ReviewRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT r.id, r.item_id, r.admin_id, COALESCE(u.display_name, ''),
               r.decision, r.notes, r.traffic_title, r.traffic_description, r.traffic_photo, r.created_at
        FROM item_reviews r
        LEFT JOIN users u ON u.id = r.admin_id
        WHERE r.item_id = $1
        ORDER BY r.created_at DESC`,
		listingID,
	)
	if err != nil {
		return nil, apperrors.Internal("could not fetch review history", err)
	}
	defer rows.Close()

	var records []ReviewRecord
	for rows.Next() {
		var rec ReviewRecord
		if err := rows.Scan(
			&rec.ID, &rec.ListingID, &rec.AdminID, &rec.AdminName,
			&rec.Decision, &rec.Notes, &rec.TrafficTitle, &rec.TrafficDescription, &rec.TrafficPhoto,
			&rec.CreatedAt,
		); err != nil {
			return nil, apperrors.Internal("could not scan review", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) PendingQueue(ctx context.Context) ([]QueueItem, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+listingColumns+`,
               s.name, COALESCE(u.display_name, ''), COALESCE(u.email, ''),
               COALESCE(m.title_status, 'ORANGE'),
               COALESCE(m.description_status, 'ORANGE'),
               COALESCE(m.images_status, 'ORANGE'),
               COALESCE(m.auto_score, 0),
               COALESCE(m.human_status, 'PENDING'),
               (SELECT COALESCE(json_agg(json_build_object(
                        'id', ii.id, 'item_id', ii.item_id, 'url', ii.url,
                        'position', ii.position, 'is_primary', ii.is_primary)
                    ORDER BY ii.position), '[]'::json)
                FROM item_images ii WHERE ii.item_id = i.id)
        FROM items i
        JOIN shops s ON s.id = i.shop_id
        JOIN users u ON u.id = s.owner_id
        LEFT JOIN item_moderation m ON m.item_id = i.id
        WHERE i.status = 'PENDING_REVIEW'
        ORDER BY i.updated_at DESC`,
	)
	if err != nil {
		return nil, apperrors.Internal("could not fetch review queue", err)
	}
	defer rows.Close()

	var queue []QueueItem
	for rows.Next() {
		var item QueueItem
		var imagesJSON []byte
		if err := rows.Scan(
			&item.ID, &item.ShopID, &item.CategoryID, &item.Title, &item.Description,
			&item.Price, &item.ShippingCost, &item.Currency, &item.Status, &item.CreatedAt, &item.UpdatedAt,
			&item.ShopName, &item.SellerName, &item.SellerEmail,
			&item.TitleStatus, &item.DescriptionStatus, &item.ImagesStatus,
			&item.AutoScore, &item.HumanStatus,
			&imagesJSON,
		); err != nil {
			return nil, apperrors.Internal("could not scan queue item", err)
		}
		if err := json.Unmarshal(imagesJSON, &item.Images); err != nil {
			return nil, apperrors.Internal("could not decode queue images", err)
		}
		queue = append(queue, item)
	}
	return queue, rows.Err()
}
