package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/adboard/backend/internal/events"
	"github.com/adboard/backend/internal/models"
	"github.com/adboard/backend/internal/rbac"
	"github.com/adboard/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	ErrAdNotFound = errors.New("advertisement not found")
	// ErrNotOwner: only the creator may change their advertisement.
	ErrNotOwner = errors.New("advertisement not created by current user")
	// ErrQuotaExceeded: the creator is at the open-advertisement limit.
	ErrQuotaExceeded = errors.New("open advertisement limit reached: close or delete at least one advertisement")
	ErrInvalidStatus = errors.New("status must be OPEN or CLOSED")
	ErrTitleRequired = errors.New("title is required")
)

// advertisementStore is the persistence surface the service needs. The
// quota count and the write happen inside one store transaction, so the
// accept/reject decision at the boundary cannot race a concurrent write
// from the same creator.
type advertisementStore interface {
	CreateWithinQuota(ctx context.Context, ad *models.Advertisement, quota int) (bool, error)
	UpdateWithinQuota(ctx context.Context, ad *models.Advertisement, quota int) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error)
	GetWithCreator(ctx context.Context, id uuid.UUID) (*models.AdvertisementWithCreator, error)
	List(ctx context.Context, f repositories.AdFilter) ([]models.AdvertisementWithCreator, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountOpenByCreator(ctx context.Context, creatorID uuid.UUID) (int, error)
}

type auditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

type AdvertisementService struct {
	adRepo    advertisementStore
	auditRepo auditStore
	publisher events.Publisher
	quota     int
	log       *zap.Logger
}

func NewAdvertisementService(
	adRepo advertisementStore,
	auditRepo auditStore,
	publisher events.Publisher,
	quota int,
	log *zap.Logger,
) *AdvertisementService {
	return &AdvertisementService{
		adRepo:    adRepo,
		auditRepo: auditRepo,
		publisher: publisher,
		quota:     quota,
		log:       log,
	}
}

// Create validates and persists a new advertisement. The creator is
// always the acting user, never taken from the request body, and the
// status always starts OPEN.
func (s *AdvertisementService) Create(ctx context.Context, creatorID uuid.UUID, title, description string) (*models.Advertisement, error) {
	if title == "" {
		return nil, ErrTitleRequired
	}

	ad := &models.Advertisement{
		CreatorID:   creatorID,
		Title:       title,
		Description: description,
		Status:      models.AdStatusOpen,
	}

	ok, err := s.adRepo.CreateWithinQuota(ctx, ad, s.quota)
	if err != nil {
		return nil, fmt.Errorf("create advertisement: %w", err)
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	s.recordAndPublish(ctx, creatorID, "advertisement_created", ad.ID, events.EventAdCreated, map[string]any{
		"id":         ad.ID.String(),
		"creator_id": creatorID.String(),
		"status":     ad.Status,
	})

	return ad, nil
}

// AdPatch carries the fields a PATCH may change; nil means unchanged.
type AdPatch struct {
	Title       *string
	Description *string
	Status      *string
}

// Update applies a patch to an advertisement. Only the creator may
// update; a resulting OPEN status re-checks the quota, with the target
// itself excluded from the count so that keeping an already-OPEN ad
// open never trips the limit.
func (s *AdvertisementService) Update(ctx context.Context, id, actorID uuid.UUID, patch AdPatch) (*models.Advertisement, error) {
	ad, err := s.adRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdNotFound
		}
		return nil, fmt.Errorf("get advertisement: %w", err)
	}

	if ad.CreatorID != actorID {
		return nil, ErrNotOwner
	}

	prevStatus := ad.Status
	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, ErrTitleRequired
		}
		ad.Title = *patch.Title
	}
	if patch.Description != nil {
		ad.Description = *patch.Description
	}
	if patch.Status != nil {
		if !models.IsValidAdStatus(*patch.Status) {
			return nil, ErrInvalidStatus
		}
		ad.Status = *patch.Status
	}

	ok, err := s.adRepo.UpdateWithinQuota(ctx, ad, s.quota)
	if err != nil {
		return nil, fmt.Errorf("update advertisement: %w", err)
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	eventType := events.EventAdUpdated
	if ad.Status != prevStatus {
		eventType = events.EventAdStatusChanged
	}
	s.recordAndPublish(ctx, actorID, "advertisement_updated", ad.ID, eventType, map[string]any{
		"id":     ad.ID.String(),
		"status": ad.Status,
	})

	return ad, nil
}

// Delete removes an advertisement. The creator may delete their own;
// admins may delete any.
func (s *AdvertisementService) Delete(ctx context.Context, id, actorID uuid.UUID, isAdmin bool) error {
	ad, err := s.adRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAdNotFound
		}
		return fmt.Errorf("get advertisement: %w", err)
	}

	role := rbac.RoleFor(isAdmin)
	perm := rbac.PermDeleteOwnAd
	if ad.CreatorID != actorID {
		perm = rbac.PermDeleteAnyAd
	}
	if !rbac.HasPermission(role, perm) {
		return ErrNotOwner
	}

	if err := s.adRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete advertisement: %w", err)
	}

	actorType := "user"
	if isAdmin {
		actorType = "admin"
	}
	adID := id
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   actorType,
		Action:      "advertisement_deleted",
		EntityType:  "advertisement",
		EntityID:    &adID,
	})
	_ = s.publisher.Publish(ctx, events.StreamAdvertisements, events.Event{
		Type:    events.EventAdDeleted,
		Payload: map[string]any{"id": id.String()},
	})

	return nil
}

func (s *AdvertisementService) GetByID(ctx context.Context, id uuid.UUID) (*models.AdvertisementWithCreator, error) {
	ad, err := s.adRepo.GetWithCreator(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdNotFound
		}
		return nil, fmt.Errorf("get advertisement: %w", err)
	}
	return ad, nil
}

func (s *AdvertisementService) List(ctx context.Context, f repositories.AdFilter) ([]models.AdvertisementWithCreator, error) {
	return s.adRepo.List(ctx, f)
}

// OpenCount reports how many OPEN ads a user has, alongside the quota.
func (s *AdvertisementService) OpenCount(ctx context.Context, creatorID uuid.UUID) (int, int, error) {
	n, err := s.adRepo.CountOpenByCreator(ctx, creatorID)
	return n, s.quota, err
}

func (s *AdvertisementService) recordAndPublish(ctx context.Context, actorID uuid.UUID, action string, adID uuid.UUID, eventType string, payload map[string]any) {
	entityID := adID
	if err := s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      action,
		EntityType:  "advertisement",
		EntityID:    &entityID,
	}); err != nil {
		s.log.Warn("audit log failed", zap.Error(err))
	}
	if err := s.publisher.Publish(ctx, events.StreamAdvertisements, events.Event{
		Type:    eventType,
		Payload: payload,
	}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
