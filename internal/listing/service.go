package listing

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/brocantia/collector/internal/moderation"
	apperrors "github.com/brocantia/collector/pkg/errors"
)

// Service enforces the listing lifecycle. Every mutation re-verifies
// ownership through the shop join; nothing is cached between requests.
type Service struct {
	store   Store
	checker moderation.Checker
}

func NewService(store Store, checker moderation.Checker) *Service {
	return &Service{store: store, checker: checker}
}

// editTargets maps the current status to the status a field edit (or
// image replace, for DRAFT/PUBLISHED) lands in. Absent statuses cannot
// be edited. Editing a REJECTED listing reverts it to DRAFT for reuse;
// editing a PUBLISHED listing re-enters review.
var editTargets = map[Status]Status{
	StatusDraft:     StatusDraft,
	StatusRejected:  StatusDraft,
	StatusPublished: StatusPendingReview,
}

func conflict(action string, current Status) *apperrors.AppError {
	return apperrors.Conflict(fmt.Sprintf("cannot %s a listing in status %s", action, current))
}

type CreateInput struct {
	ShopID       string
	CategoryID   *string
	Title        string
	Description  string
	Price        float64
	ShippingCost float64
	Currency     string
	Images       []string
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*Listing, error) {
	owned, err := s.store.ShopOwnedBy(ctx, in.ShopID, ownerID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, apperrors.Forbidden("not your shop")
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(title) < 3 {
		return nil, apperrors.Validation("title must be at least 3 characters")
	}
	if utf8.RuneCountInString(description) < 10 {
		return nil, apperrors.Validation("description must be at least 10 characters")
	}
	if in.Price <= 0 {
		return nil, apperrors.Validation("price must be positive")
	}
	if in.ShippingCost < 0 {
		return nil, apperrors.Validation("shipping cost cannot be negative")
	}

	currency := in.Currency
	if currency == "" {
		currency = "EUR"
	}

	l := &Listing{
		ShopID:       in.ShopID,
		CategoryID:   in.CategoryID,
		Title:        title,
		Description:  description,
		Price:        in.Price,
		ShippingCost: in.ShippingCost,
		Currency:     currency,
		Status:       StatusDraft,
	}
	return s.store.Insert(ctx, l, cleanURLs(in.Images))
}

// Update edits listing fields. DRAFT stays DRAFT, REJECTED reverts to
// DRAFT, and PUBLISHED re-enters review with a fresh moderation
// snapshot. Other statuses conflict.
func (s *Service) Update(ctx context.Context, ownerID, listingID string, patch FieldPatch) (*Listing, error) {
	current, err := s.getOwned(ctx, ownerID, listingID)
	if err != nil {
		return nil, err
	}

	next, ok := editTargets[current.Status]
	if !ok {
		return nil, conflict("edit", current.Status)
	}

	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	if current.Status == StatusPublished {
		if err := s.recheck(ctx, current, patch, nil); err != nil {
			return nil, err
		}
	}

	return s.store.UpdateFields(ctx, listingID, patch, next)
}

// ReplaceImages atomically swaps the image set. Allowed from DRAFT
// (stays DRAFT) and PUBLISHED (re-enters review).
func (s *Service) ReplaceImages(ctx context.Context, ownerID, listingID string, urls []string) (*Listing, error) {
	current, err := s.getOwned(ctx, ownerID, listingID)
	if err != nil {
		return nil, err
	}

	if current.Status != StatusDraft && current.Status != StatusPublished {
		return nil, conflict("replace images of", current.Status)
	}

	cleaned := cleanURLs(urls)
	if err := s.store.ReplaceImages(ctx, listingID, cleaned); err != nil {
		return nil, err
	}

	if current.Status == StatusPublished {
		// Image replace and snapshot upsert are separate statements on
		// the shared pool; a crash in between leaves a stale snapshot.
		// Known consistency gap, accepted.
		if err := s.recheck(ctx, current, FieldPatch{}, cleaned); err != nil {
			return nil, err
		}
		return s.store.SetStatus(ctx, listingID, StatusPendingReview)
	}
	return current, nil
}

// Submit moves a DRAFT into the review queue. Requires at least two
// images regardless of content quality, and records a fresh automated
// check for the admin to lean on.
func (s *Service) Submit(ctx context.Context, ownerID, listingID string) (*Listing, error) {
	current, err := s.getOwned(ctx, ownerID, listingID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusDraft {
		return nil, conflict("submit", current.Status)
	}

	count, err := s.store.CountImages(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if count < 2 {
		return nil, apperrors.Validation("at least 2 images are required")
	}

	if err := s.recheck(ctx, current, FieldPatch{}, nil); err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, listingID, StatusPendingReview)
}

func (s *Service) MarkSold(ctx context.Context, ownerID, listingID string) (*Listing, error) {
	current, err := s.getOwned(ctx, ownerID, listingID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPublished {
		return nil, conflict("mark sold", current.Status)
	}
	return s.store.SetStatus(ctx, listingID, StatusSold)
}

// Delete removes a listing and its images. Blocked while the listing is
// under review.
func (s *Service) Delete(ctx context.Context, ownerID, listingID string) error {
	current, err := s.getOwned(ctx, ownerID, listingID)
	if err != nil {
		return err
	}
	if current.Status == StatusPendingReview {
		return conflict("delete", current.Status)
	}
	return s.store.Delete(ctx, listingID)
}

type ReviewInput struct {
	Decision           string
	Notes              string
	TrafficTitle       *moderation.TrafficLight
	TrafficDescription *moderation.TrafficLight
	TrafficPhoto       *moderation.TrafficLight
}

// Review applies a human decision: appends to the ledger, stamps the
// snapshot's human fields and drives the transition out of
// PENDING_REVIEW.
func (s *Service) Review(ctx context.Context, adminID, listingID string, in ReviewInput) (*Listing, error) {
	if in.Decision != DecisionPublished && in.Decision != DecisionRejected {
		return nil, apperrors.Validation("decision must be PUBLISHED or REJECTED")
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) < 2 {
		return nil, apperrors.Validation("notes are required")
	}

	if uuid.Validate(listingID) != nil {
		return nil, apperrors.NotFound("listing")
	}
	current, _, err := s.store.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("listing")
	}
	if current.Status != StatusPendingReview {
		return nil, conflict("review", current.Status)
	}

	rec := &ReviewRecord{
		ListingID:          listingID,
		AdminID:            adminID,
		Decision:           in.Decision,
		Notes:              notes,
		TrafficTitle:       lightOrGreen(in.TrafficTitle),
		TrafficDescription: lightOrGreen(in.TrafficDescription),
		TrafficPhoto:       lightOrGreen(in.TrafficPhoto),
	}
	if _, err := s.store.AppendReview(ctx, rec); err != nil {
		return nil, err
	}

	humanStatus := HumanApproved
	next := StatusPublished
	if in.Decision == DecisionRejected {
		humanStatus = HumanRejected
		next = StatusRejected
	}
	if err := s.store.SetSnapshotHuman(ctx, listingID, humanStatus, adminID, notes); err != nil {
		return nil, err
	}
	return s.store.SetStatus(ctx, listingID, next)
}

// GetOwned returns a listing after the ownership check, for detail views.
func (s *Service) GetOwned(ctx context.Context, ownerID, listingID string) (*Listing, error) {
	return s.getOwned(ctx, ownerID, listingID)
}

func (s *Service) ReviewHistory(ctx context.Context, listingID string) ([]ReviewRecord, error) {
	return s.store.ReviewHistory(ctx, listingID)
}

func (s *Service) PendingQueue(ctx context.Context) ([]QueueItem, error) {
	return s.store.PendingQueue(ctx)
}

func (s *Service) Images(ctx context.Context, listingID string) ([]Image, error) {
	return s.store.Images(ctx, listingID)
}

func (s *Service) getOwned(ctx context.Context, ownerID, listingID string) (*Listing, error) {
	// Malformed IDs would otherwise bubble up as a uuid cast error from
	// the database.
	if uuid.Validate(listingID) != nil {
		return nil, apperrors.NotFound("listing")
	}
	current, listingOwner, err := s.store.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("listing")
	}
	if listingOwner != ownerID {
		return nil, apperrors.Forbidden("not your listing")
	}
	return current, nil
}

// recheck runs the moderation gateway against the listing's effective
// content (patch applied over current fields, replacement images over
// stored ones) and overwrites the snapshot with human fields reset.
func (s *Service) recheck(ctx context.Context, current *Listing, patch FieldPatch, newImages []string) error {
	title := current.Title
	if patch.Title != nil {
		title = *patch.Title
	}
	description := current.Description
	if patch.Description != nil {
		description = *patch.Description
	}

	urls := newImages
	if urls == nil {
		images, err := s.store.Images(ctx, current.ID)
		if err != nil {
			return err
		}
		urls = make([]string, 0, len(images))
		for _, img := range images {
			urls = append(urls, img.URL)
		}
	}

	result := s.checker.RunCheck(ctx, moderation.Input{
		Title:       title,
		Description: description,
		ImageURLs:   urls,
	})

	return s.store.UpsertSnapshot(ctx, &Snapshot{
		ListingID:         current.ID,
		TitleStatus:       result.TitleStatus,
		DescriptionStatus: result.DescriptionStatus,
		ImagesStatus:      result.ImagesStatus,
		AutoScore:         result.Score,
		AutoDetails:       result.Details,
		HumanStatus:       HumanPending,
	})
}

func validatePatch(patch FieldPatch) error {
	if patch.Title != nil && utf8.RuneCountInString(strings.TrimSpace(*patch.Title)) < 3 {
		return apperrors.Validation("title must be at least 3 characters")
	}
	if patch.Description != nil && utf8.RuneCountInString(strings.TrimSpace(*patch.Description)) < 10 {
		return apperrors.Validation("description must be at least 10 characters")
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return apperrors.Validation("price must be positive")
	}
	if patch.ShippingCost != nil && *patch.ShippingCost < 0 {
		return apperrors.Validation("shipping cost cannot be negative")
	}
	return nil
}

func cleanURLs(urls []string) []string {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		cleaned = append(cleaned, u)
	}
	return cleaned
}

func lightOrGreen(l *moderation.TrafficLight) moderation.TrafficLight {
	if l == nil {
		return moderation.Green
	}
	return moderation.ParseTrafficLight(string(*l))
}
