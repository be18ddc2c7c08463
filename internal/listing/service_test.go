package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brocantia/collector/internal/moderation"
	apperrors "github.com/brocantia/collector/pkg/errors"
)

const testItemID = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"

// fakeStore keeps a single listing in memory and records every mutation
// so tests can assert on exactly what the service asked for.
type fakeStore struct {
	listing    *Listing
	ownerID    string
	shopOwners map[string]string
	images     []Image

	inserted       *Listing
	insertedImages []string
	updatedPatch   *FieldPatch
	updatedStatus  Status
	replacedURLs   []string
	statusSets     []Status
	deleted        bool
	snapshots      []Snapshot
	humanStatus    string
	humanReviewer  string
	humanNote      string
	reviews        []ReviewRecord
}

func newFakeStore(status Status, ownerID string) *fakeStore {
	return &fakeStore{
		listing: &Listing{
			ID:          testItemID,
			ShopID:      "shop-1",
			Title:       "A perfectly fine title",
			Description: "A description comfortably above the minimum length.",
			Price:       25,
			Currency:    "EUR",
			Status:      status,
		},
		ownerID:    ownerID,
		shopOwners: map[string]string{"shop-1": ownerID},
		images: []Image{
			{ID: "img-1", ListingID: testItemID, URL: "https://img/1.jpg", Position: 0, IsPrimary: true},
			{ID: "img-2", ListingID: testItemID, URL: "https://img/2.jpg", Position: 1},
		},
	}
}

func (f *fakeStore) ShopOwnedBy(_ context.Context, shopID, ownerID string) (bool, error) {
	return f.shopOwners[shopID] == ownerID, nil
}

func (f *fakeStore) Get(_ context.Context, listingID string) (*Listing, string, error) {
	if f.listing == nil || f.listing.ID != listingID {
		return nil, "", nil
	}
	cp := *f.listing
	return &cp, f.ownerID, nil
}

func (f *fakeStore) Insert(_ context.Context, l *Listing, imageURLs []string) (*Listing, error) {
	f.inserted = l
	f.insertedImages = imageURLs
	out := *l
	out.ID = "item-new"
	return &out, nil
}

func (f *fakeStore) UpdateFields(_ context.Context, _ string, patch FieldPatch, status Status) (*Listing, error) {
	f.updatedPatch = &patch
	f.updatedStatus = status
	out := *f.listing
	out.Status = status
	return &out, nil
}

func (f *fakeStore) ReplaceImages(_ context.Context, _ string, urls []string) error {
	f.replacedURLs = urls
	return nil
}

func (f *fakeStore) Images(_ context.Context, _ string) ([]Image, error) {
	return f.images, nil
}

func (f *fakeStore) CountImages(_ context.Context, _ string) (int, error) {
	return len(f.images), nil
}

func (f *fakeStore) SetStatus(_ context.Context, _ string, status Status) (*Listing, error) {
	f.statusSets = append(f.statusSets, status)
	out := *f.listing
	out.Status = status
	return &out, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string) error {
	f.deleted = true
	return nil
}

func (f *fakeStore) UpsertSnapshot(_ context.Context, snap *Snapshot) error {
	f.snapshots = append(f.snapshots, *snap)
	return nil
}

func (f *fakeStore) SetSnapshotHuman(_ context.Context, _, humanStatus, reviewerID, note string) error {
	f.humanStatus = humanStatus
	f.humanReviewer = reviewerID
	f.humanNote = note
	return nil
}

func (f *fakeStore) AppendReview(_ context.Context, rec *ReviewRecord) (*ReviewRecord, error) {
	f.reviews = append(f.reviews, *rec)
	out := *rec
	out.ID = "rev-1"
	return &out, nil
}

func (f *fakeStore) ReviewHistory(_ context.Context, _ string) ([]ReviewRecord, error) {
	return f.reviews, nil
}

func (f *fakeStore) PendingQueue(_ context.Context) ([]QueueItem, error) {
	return nil, nil
}

// stubChecker returns a fixed result and counts calls.
type stubChecker struct {
	calls  int
	result moderation.Result
}

func (s *stubChecker) RunCheck(_ context.Context, _ moderation.Input) moderation.Result {
	s.calls++
	return s.result
}

func newStubChecker() *stubChecker {
	return &stubChecker{result: moderation.Result{
		TitleStatus:       moderation.Green,
		DescriptionStatus: moderation.Orange,
		ImagesStatus:      moderation.Green,
		Score:             0.8,
		Details:           map[string]interface{}{"mode": "local_heuristic"},
	}}
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestCreateRejectsForeignShop(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	svc := NewService(store, newStubChecker())

	_, err := svc.Create(context.Background(), "someone-else", CreateInput{
		ShopID: "shop-1", Title: "Valid title", Description: "Long enough description", Price: 10,
	})

	assert.True(t, apperrors.Is(err, "FORBIDDEN"))
	assert.Nil(t, store.inserted)
}

func TestCreateValidation(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	svc := NewService(store, newStubChecker())
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"short title", CreateInput{ShopID: "shop-1", Title: "ab", Description: "Long enough description", Price: 10}},
		{"short description", CreateInput{ShopID: "shop-1", Title: "Valid", Description: "short", Price: 10}},
		{"zero price", CreateInput{ShopID: "shop-1", Title: "Valid", Description: "Long enough description", Price: 0}},
		{"negative shipping", CreateInput{ShopID: "shop-1", Title: "Valid", Description: "Long enough description", Price: 10, ShippingCost: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "owner-1", tt.in)
			assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))
		})
	}
}

func TestCreateCountsRunesNotBytes(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	svc := NewService(store, newStubChecker())
	ctx := context.Background()

	// 2 accented characters are 4 bytes; still below the 3-char minimum.
	_, err := svc.Create(ctx, "owner-1", CreateInput{
		ShopID: "shop-1", Title: "éé", Description: "Une description suffisamment longue.", Price: 10,
	})
	assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))

	_, err = svc.Create(ctx, "owner-1", CreateInput{
		ShopID: "shop-1", Title: "ééé", Description: "Une description suffisamment longue.", Price: 10,
	})
	require.NoError(t, err)

	// 5 accented characters are 10 bytes; a byte count would let this
	// through the 10-char description minimum.
	_, err = svc.Update(ctx, "owner-1", testItemID, FieldPatch{Description: strPtr("ééééé")})
	assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))
}

func TestCreateDefaultsAndCleansInput(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	svc := NewService(store, newStubChecker())

	created, err := svc.Create(context.Background(), "owner-1", CreateInput{
		ShopID:      "shop-1",
		Title:       "  Edwardian writing desk  ",
		Description: "Solid oak, minor scratches on the left side.",
		Price:       120,
		Images:      []string{" https://img/1.jpg ", "", "https://img/2.jpg"},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusDraft, created.Status)
	assert.Equal(t, "EUR", created.Currency)
	assert.Equal(t, "Edwardian writing desk", store.inserted.Title)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, store.insertedImages)
}

func TestUpdateTransitions(t *testing.T) {
	tests := []struct {
		from       Status
		wantStatus Status
		wantErr    bool
	}{
		{StatusDraft, StatusDraft, false},
		{StatusRejected, StatusDraft, false},
		{StatusPublished, StatusPendingReview, false},
		{StatusPendingReview, "", true},
		{StatusSold, "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			store := newFakeStore(tt.from, "owner-1")
			svc := NewService(store, newStubChecker())

			updated, err := svc.Update(context.Background(), "owner-1", testItemID, FieldPatch{
				Title: strPtr("A changed title"),
			})

			if tt.wantErr {
				assert.True(t, apperrors.Is(err, "CONFLICT"))
				assert.Nil(t, store.updatedPatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, updated.Status)
			assert.Equal(t, tt.wantStatus, store.updatedStatus)
		})
	}
}

func TestUpdatePublishedRunsFreshCheck(t *testing.T) {
	store := newFakeStore(StatusPublished, "owner-1")
	checker := newStubChecker()
	svc := NewService(store, checker)

	_, err := svc.Update(context.Background(), "owner-1", testItemID, FieldPatch{
		Description: strPtr("A brand new description, clearly long enough."),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, checker.calls)
	require.Len(t, store.snapshots, 1)
	snap := store.snapshots[0]
	assert.Equal(t, HumanPending, snap.HumanStatus)
	assert.Equal(t, moderation.Green, snap.TitleStatus)
	assert.InDelta(t, 0.8, snap.AutoScore, 1e-9)
}

func TestUpdateDraftSkipsCheck(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	checker := newStubChecker()
	svc := NewService(store, checker)

	_, err := svc.Update(context.Background(), "owner-1", testItemID, FieldPatch{Price: floatPtr(99)})

	require.NoError(t, err)
	assert.Zero(t, checker.calls)
	assert.Empty(t, store.snapshots)
}

func TestUpdatePatchValidation(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	svc := NewService(store, newStubChecker())
	ctx := context.Background()

	tests := []struct {
		name  string
		patch FieldPatch
	}{
		{"short title", FieldPatch{Title: strPtr("ab")}},
		{"short description", FieldPatch{Description: strPtr("nope")}},
		{"zero price", FieldPatch{Price: floatPtr(0)}},
		{"negative shipping", FieldPatch{ShippingCost: floatPtr(-2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, "owner-1", testItemID, tt.patch)
			assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))
			assert.Nil(t, store.updatedPatch)
		})
	}
}

func TestReplaceImagesByStatus(t *testing.T) {
	tests := []struct {
		from        Status
		wantErr     bool
		wantRecheck bool
	}{
		{StatusDraft, false, false},
		{StatusPublished, false, true},
		{StatusPendingReview, true, false},
		{StatusRejected, true, false},
		{StatusSold, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			store := newFakeStore(tt.from, "owner-1")
			checker := newStubChecker()
			svc := NewService(store, checker)

			_, err := svc.ReplaceImages(context.Background(), "owner-1", testItemID,
				[]string{"https://img/3.jpg", "https://img/4.jpg"})

			if tt.wantErr {
				assert.True(t, apperrors.Is(err, "CONFLICT"))
				assert.Nil(t, store.replacedURLs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"https://img/3.jpg", "https://img/4.jpg"}, store.replacedURLs)
			if tt.wantRecheck {
				assert.Equal(t, 1, checker.calls)
				require.Len(t, store.snapshots, 1)
				assert.Equal(t, HumanPending, store.snapshots[0].HumanStatus)
				assert.Equal(t, []Status{StatusPendingReview}, store.statusSets)
			} else {
				assert.Zero(t, checker.calls)
				assert.Empty(t, store.statusSets)
			}
		})
	}
}

func TestSubmitRequiresTwoImages(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	store.images = store.images[:1]
	checker := newStubChecker()
	svc := NewService(store, checker)

	_, err := svc.Submit(context.Background(), "owner-1", testItemID)

	assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))
	assert.Zero(t, checker.calls)
	assert.Empty(t, store.statusSets)
}

func TestSubmitFromDraft(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	checker := newStubChecker()
	svc := NewService(store, checker)

	submitted, err := svc.Submit(context.Background(), "owner-1", testItemID)

	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, submitted.Status)
	assert.Equal(t, 1, checker.calls)
	require.Len(t, store.snapshots, 1)
	assert.Equal(t, HumanPending, store.snapshots[0].HumanStatus)
}

func TestSubmitOnlyFromDraft(t *testing.T) {
	for _, from := range []Status{StatusPendingReview, StatusPublished, StatusRejected, StatusSold} {
		t.Run(string(from), func(t *testing.T) {
			store := newFakeStore(from, "owner-1")
			svc := NewService(store, newStubChecker())

			_, err := svc.Submit(context.Background(), "owner-1", testItemID)

			assert.True(t, apperrors.Is(err, "CONFLICT"))
			assert.Contains(t, err.Error(), string(from))
		})
	}
}

func TestMarkSoldOnlyFromPublished(t *testing.T) {
	store := newFakeStore(StatusPublished, "owner-1")
	svc := NewService(store, newStubChecker())

	sold, err := svc.MarkSold(context.Background(), "owner-1", testItemID)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, sold.Status)

	for _, from := range []Status{StatusDraft, StatusPendingReview, StatusRejected, StatusSold} {
		store := newFakeStore(from, "owner-1")
		svc := NewService(store, newStubChecker())
		_, err := svc.MarkSold(context.Background(), "owner-1", testItemID)
		assert.True(t, apperrors.Is(err, "CONFLICT"), "from %s", from)
	}
}

func TestDeleteBlockedWhileUnderReview(t *testing.T) {
	store := newFakeStore(StatusPendingReview, "owner-1")
	svc := NewService(store, newStubChecker())

	err := svc.Delete(context.Background(), "owner-1", testItemID)

	assert.True(t, apperrors.Is(err, "CONFLICT"))
	assert.False(t, store.deleted)
}

func TestDeleteAllowedOtherwise(t *testing.T) {
	for _, from := range []Status{StatusDraft, StatusPublished, StatusRejected, StatusSold} {
		store := newFakeStore(from, "owner-1")
		svc := NewService(store, newStubChecker())
		require.NoError(t, svc.Delete(context.Background(), "owner-1", testItemID), "from %s", from)
		assert.True(t, store.deleted)
	}
}

func TestOwnershipChecks(t *testing.T) {
	store := newFakeStore(StatusDraft, "owner-1")
	svc := NewService(store, newStubChecker())
	ctx := context.Background()

	_, err := svc.Update(ctx, "intruder", testItemID, FieldPatch{})
	assert.True(t, apperrors.Is(err, "FORBIDDEN"))

	_, err = svc.Submit(ctx, "intruder", testItemID)
	assert.True(t, apperrors.Is(err, "FORBIDDEN"))

	err = svc.Delete(ctx, "intruder", testItemID)
	assert.True(t, apperrors.Is(err, "FORBIDDEN"))

	_, err = svc.Update(ctx, "owner-1", "missing", FieldPatch{})
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
}

func TestReviewValidation(t *testing.T) {
	store := newFakeStore(StatusPendingReview, "owner-1")
	svc := NewService(store, newStubChecker())
	ctx := context.Background()

	_, err := svc.Review(ctx, "admin-1", testItemID, ReviewInput{Decision: "MAYBE", Notes: "looks ok"})
	assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))

	_, err = svc.Review(ctx, "admin-1", testItemID, ReviewInput{Decision: DecisionPublished, Notes: "  "})
	assert.True(t, apperrors.Is(err, "VALIDATION_ERROR"))

	assert.Empty(t, store.reviews)
	assert.Empty(t, store.statusSets)
}

func TestReviewOnlyPendingListings(t *testing.T) {
	for _, from := range []Status{StatusDraft, StatusPublished, StatusRejected, StatusSold} {
		store := newFakeStore(from, "owner-1")
		svc := NewService(store, newStubChecker())

		_, err := svc.Review(context.Background(), "admin-1", testItemID,
			ReviewInput{Decision: DecisionPublished, Notes: "fine"})

		assert.True(t, apperrors.Is(err, "CONFLICT"), "from %s", from)
		assert.Empty(t, store.reviews)
	}
}

func TestReviewMissingListing(t *testing.T) {
	store := newFakeStore(StatusPendingReview, "owner-1")
	svc := NewService(store, newStubChecker())

	_, err := svc.Review(context.Background(), "admin-1", "missing",
		ReviewInput{Decision: DecisionPublished, Notes: "fine"})

	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
}

func TestReviewApprove(t *testing.T) {
	store := newFakeStore(StatusPendingReview, "owner-1")
	svc := NewService(store, newStubChecker())
	red := moderation.Red

	reviewed, err := svc.Review(context.Background(), "admin-1", testItemID, ReviewInput{
		Decision:     DecisionPublished,
		Notes:        "  photos are fine  ",
		TrafficPhoto: &red,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusPublished, reviewed.Status)

	require.Len(t, store.reviews, 1)
	rec := store.reviews[0]
	assert.Equal(t, "admin-1", rec.AdminID)
	assert.Equal(t, "photos are fine", rec.Notes)
	assert.Equal(t, moderation.Green, rec.TrafficTitle)
	assert.Equal(t, moderation.Green, rec.TrafficDescription)
	assert.Equal(t, moderation.Red, rec.TrafficPhoto)

	assert.Equal(t, HumanApproved, store.humanStatus)
	assert.Equal(t, "admin-1", store.humanReviewer)
	assert.Equal(t, "photos are fine", store.humanNote)
	assert.Equal(t, []Status{StatusPublished}, store.statusSets)
}

func TestReviewReject(t *testing.T) {
	store := newFakeStore(StatusPendingReview, "owner-1")
	svc := NewService(store, newStubChecker())

	reviewed, err := svc.Review(context.Background(), "admin-1", testItemID, ReviewInput{
		Decision: DecisionRejected,
		Notes:    "stock photos, not the actual item",
	})

	require.NoError(t, err)
	assert.Equal(t, StatusRejected, reviewed.Status)
	assert.Equal(t, HumanRejected, store.humanStatus)
	assert.Equal(t, []Status{StatusRejected}, store.statusSets)
}

func TestRejectedListingReusableAfterEdit(t *testing.T) {
	store := newFakeStore(StatusRejected, "owner-1")
	svc := NewService(store, newStubChecker())

	updated, err := svc.Update(context.Background(), "owner-1", testItemID, FieldPatch{
		Title: strPtr("A reworked title"),
	})

	require.NoError(t, err)
	assert.Equal(t, StatusDraft, updated.Status)
}
