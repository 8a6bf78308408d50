package models

import (
	"time"

	"github.com/google/uuid"
)

// Advertisement statuses. OPEN counts toward the per-creator quota,
// CLOSED covers both completed and withdrawn ads.
const (
	AdStatusOpen   = "OPEN"
	AdStatusClosed = "CLOSED"
)

func IsValidAdStatus(s string) bool {
	return s == AdStatusOpen || s == AdStatusClosed
}

type Advertisement struct {
	ID          uuid.UUID `json:"id"`
	CreatorID   uuid.UUID `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AdvertisementWithCreator embeds Advertisement and adds creator info
// to avoid N+1 queries on list responses.
type AdvertisementWithCreator struct {
	Advertisement
	CreatorUsername  string  `json:"creator_username"`
	CreatorFirstName *string `json:"creator_first_name,omitempty"`
	CreatorLastName  *string `json:"creator_last_name,omitempty"`
}
