package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adboard/backend/internal/events"
	"github.com/adboard/backend/internal/models"
	"github.com/adboard/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// fakeAdStore mirrors the repo's quota semantics in memory: the create
// count includes every OPEN ad of the creator, the update count
// excludes the target row.
type fakeAdStore struct {
	ads map[uuid.UUID]*models.Advertisement
}

func newFakeAdStore() *fakeAdStore {
	return &fakeAdStore{ads: make(map[uuid.UUID]*models.Advertisement)}
}

func (f *fakeAdStore) openCount(creatorID uuid.UUID, exclude uuid.UUID) int {
	n := 0
	for id, ad := range f.ads {
		if ad.CreatorID == creatorID && ad.Status == models.AdStatusOpen && id != exclude {
			n++
		}
	}
	return n
}

func (f *fakeAdStore) CreateWithinQuota(_ context.Context, ad *models.Advertisement, quota int) (bool, error) {
	if f.openCount(ad.CreatorID, uuid.Nil) >= quota {
		return false, nil
	}
	ad.ID = uuid.New()
	ad.CreatedAt = time.Now()
	ad.UpdatedAt = ad.CreatedAt
	cp := *ad
	f.ads[ad.ID] = &cp
	return true, nil
}

func (f *fakeAdStore) UpdateWithinQuota(_ context.Context, ad *models.Advertisement, quota int) (bool, error) {
	if _, ok := f.ads[ad.ID]; !ok {
		return false, pgx.ErrNoRows
	}
	if ad.Status == models.AdStatusOpen && f.openCount(ad.CreatorID, ad.ID) >= quota {
		return false, nil
	}
	ad.UpdatedAt = time.Now()
	cp := *ad
	f.ads[ad.ID] = &cp
	return true, nil
}

func (f *fakeAdStore) GetByID(_ context.Context, id uuid.UUID) (*models.Advertisement, error) {
	ad, ok := f.ads[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *ad
	return &cp, nil
}

func (f *fakeAdStore) GetWithCreator(ctx context.Context, id uuid.UUID) (*models.AdvertisementWithCreator, error) {
	ad, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.AdvertisementWithCreator{Advertisement: *ad, CreatorUsername: "someone"}, nil
}

func (f *fakeAdStore) List(_ context.Context, filter repositories.AdFilter) ([]models.AdvertisementWithCreator, error) {
	var out []models.AdvertisementWithCreator
	for _, ad := range f.ads {
		if filter.Status != nil && ad.Status != *filter.Status {
			continue
		}
		if filter.CreatorID != nil && ad.CreatorID != *filter.CreatorID {
			continue
		}
		out = append(out, models.AdvertisementWithCreator{Advertisement: *ad})
	}
	return out, nil
}

func (f *fakeAdStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.ads, id)
	return nil
}

func (f *fakeAdStore) CountOpenByCreator(_ context.Context, creatorID uuid.UUID) (int, error) {
	return f.openCount(creatorID, uuid.Nil), nil
}

type fakeAudit struct {
	entries []models.AuditLog
}

func (f *fakeAudit) Log(_ context.Context, entry models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakePublisher struct {
	published []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func newTestService() (*AdvertisementService, *fakeAdStore, *fakeAudit, *fakePublisher) {
	store := newFakeAdStore()
	audit := &fakeAudit{}
	pub := &fakePublisher{}
	svc := NewAdvertisementService(store, audit, pub, 10, zap.NewNop())
	return svc, store, audit, pub
}

func seedOpenAds(store *fakeAdStore, creatorID uuid.UUID, n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		store.ads[id] = &models.Advertisement{
			ID:        id,
			CreatorID: creatorID,
			Title:     "ad",
			Status:    models.AdStatusOpen,
		}
		ids = append(ids, id)
	}
	return ids
}

func strPtr(s string) *string { return &s }

func TestCreateQuota(t *testing.T) {
	tests := []struct {
		name    string
		openAds int
		wantErr error
	}{
		{"no open ads", 0, nil},
		{"one below quota", 9, nil},
		{"at quota", 10, ErrQuotaExceeded},
		{"above quota", 11, ErrQuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newTestService()
			creator := uuid.New()
			seedOpenAds(store, creator, tt.openAds)

			ad, err := svc.Create(context.Background(), creator, "bike for sale", "red, barely used")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if ad.CreatorID != creator {
				t.Errorf("creator = %s, want %s", ad.CreatorID, creator)
			}
			if ad.Status != models.AdStatusOpen {
				t.Errorf("status = %q, want %q", ad.Status, models.AdStatusOpen)
			}
			if ad.ID == uuid.Nil {
				t.Error("expected assigned id")
			}
		})
	}
}

func TestCreateQuotaCountsOnlyOwnOpenAds(t *testing.T) {
	svc, store, _, _ := newTestService()
	creator := uuid.New()
	other := uuid.New()

	// 10 open ads of somebody else must not count against creator.
	seedOpenAds(store, other, 10)

	// Closed ads of the creator do not count either.
	for i := 0; i < 10; i++ {
		id := uuid.New()
		store.ads[id] = &models.Advertisement{ID: id, CreatorID: creator, Status: models.AdStatusClosed}
	}

	if _, err := svc.Create(context.Background(), creator, "garage sale", ""); err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), uuid.New(), "", "desc"); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("Create() error = %v, want %v", err, ErrTitleRequired)
	}
}

func TestUpdateOwnership(t *testing.T) {
	svc, store, _, _ := newTestService()
	owner := uuid.New()
	stranger := uuid.New()
	ids := seedOpenAds(store, owner, 1)

	_, err := svc.Update(context.Background(), ids[0], stranger, AdPatch{Title: strPtr("hijacked")})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("Update() by non-owner error = %v, want %v", err, ErrNotOwner)
	}

	if _, err := svc.Update(context.Background(), ids[0], owner, AdPatch{Title: strPtr("new title")}); err != nil {
		t.Fatalf("Update() by owner error = %v, want nil", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), AdPatch{})
	if !errors.Is(err, ErrAdNotFound) {
		t.Fatalf("Update() error = %v, want %v", err, ErrAdNotFound)
	}
}

func TestUpdateStatusQuota(t *testing.T) {
	tests := []struct {
		name         string
		targetStatus string // status of the ad being patched
		otherOpen    int    // OPEN ads the owner has besides the target
		patchStatus  string
		wantErr      error
	}{
		{"close at quota always allowed", models.AdStatusOpen, 9, models.AdStatusClosed, nil},
		{"keep open at quota allowed (target excluded from count)", models.AdStatusOpen, 9, models.AdStatusOpen, nil},
		{"reopen under quota", models.AdStatusClosed, 9, models.AdStatusOpen, nil},
		{"reopen at quota rejected", models.AdStatusClosed, 10, models.AdStatusOpen, ErrQuotaExceeded},
		{"close stays fine regardless of count", models.AdStatusClosed, 10, models.AdStatusClosed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newTestService()
			owner := uuid.New()
			seedOpenAds(store, owner, tt.otherOpen)

			target := uuid.New()
			store.ads[target] = &models.Advertisement{
				ID:        target,
				CreatorID: owner,
				Title:     "target",
				Status:    tt.targetStatus,
			}

			updated, err := svc.Update(context.Background(), target, owner, AdPatch{Status: &tt.patchStatus})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && updated.Status != tt.patchStatus {
				t.Errorf("status = %q, want %q", updated.Status, tt.patchStatus)
			}
		})
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	svc, store, _, _ := newTestService()
	owner := uuid.New()
	ids := seedOpenAds(store, owner, 1)

	_, err := svc.Update(context.Background(), ids[0], owner, AdPatch{Status: strPtr("PENDING")})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("Update() error = %v, want %v", err, ErrInvalidStatus)
	}
}

// The literal quota cycle: full quota rejects a create, closing one ad
// frees a slot, the next create succeeds.
func TestQuotaCycle(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	user := uuid.New()
	ids := seedOpenAds(store, user, 10)

	if _, err := svc.Create(ctx, user, "x", ""); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Create() at quota error = %v, want %v", err, ErrQuotaExceeded)
	}

	closed := models.AdStatusClosed
	if _, err := svc.Update(ctx, ids[0], user, AdPatch{Status: &closed}); err != nil {
		t.Fatalf("closing ad error = %v, want nil", err)
	}

	if _, err := svc.Create(ctx, user, "y", ""); err != nil {
		t.Fatalf("Create() after closing one error = %v, want nil", err)
	}
}

func TestDeletePermissions(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	admin := uuid.New()

	tests := []struct {
		name    string
		actor   uuid.UUID
		isAdmin bool
		wantErr error
	}{
		{"owner may delete", owner, false, nil},
		{"stranger may not", stranger, false, ErrNotOwner},
		{"admin may delete any", admin, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newTestService()
			ids := seedOpenAds(store, owner, 1)

			err := svc.Delete(context.Background(), ids[0], tt.actor, tt.isAdmin)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Delete() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if _, err := store.GetByID(context.Background(), ids[0]); !errors.Is(err, pgx.ErrNoRows) {
					t.Error("advertisement still present after delete")
				}
			}
		})
	}
}

func TestDeleteNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	if err := svc.Delete(context.Background(), uuid.New(), uuid.New(), false); !errors.Is(err, ErrAdNotFound) {
		t.Fatalf("Delete() error = %v, want %v", err, ErrAdNotFound)
	}
}

func TestMutationsAuditAndPublish(t *testing.T) {
	svc, _, audit, pub := newTestService()
	ctx := context.Background()
	user := uuid.New()

	ad, err := svc.Create(ctx, user, "sofa", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	closed := models.AdStatusClosed
	if _, err := svc.Update(ctx, ad.ID, user, AdPatch{Status: &closed}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if err := svc.Delete(ctx, ad.ID, user, false); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	wantActions := []string{"advertisement_created", "advertisement_updated", "advertisement_deleted"}
	if len(audit.entries) != len(wantActions) {
		t.Fatalf("audit entries = %d, want %d", len(audit.entries), len(wantActions))
	}
	for i, action := range wantActions {
		if audit.entries[i].Action != action {
			t.Errorf("audit[%d].Action = %q, want %q", i, audit.entries[i].Action, action)
		}
	}

	wantEvents := []string{events.EventAdCreated, events.EventAdStatusChanged, events.EventAdDeleted}
	if len(pub.published) != len(wantEvents) {
		t.Fatalf("published events = %d, want %d", len(pub.published), len(wantEvents))
	}
	for i, typ := range wantEvents {
		if pub.published[i].Type != typ {
			t.Errorf("event[%d].Type = %q, want %q", i, pub.published[i].Type, typ)
		}
	}
}
