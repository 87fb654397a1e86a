package domain

import (
	"time"

	"github.com/google/uuid"
)

// FanPost is a piece of credit-gated content published by a lady profile.
// Only the fields this service needs for unlock pricing are modeled here.
type FanPost struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

// FanPostUnlock is the fact row recording a one-time content-access grant.
// (ClientID, FanPostID) is unique: a client can never be charged twice for
// the same post.
type FanPostUnlock struct {
	ClientID  uuid.UUID `json:"client_id"`
	FanPostID uuid.UUID `json:"fan_post_id"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}
