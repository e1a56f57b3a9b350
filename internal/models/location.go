package models

import (
	"fmt"
	"time"
)

type LocationStatus string

const (
	LocationPending   LocationStatus = "pending"
	LocationCompleted LocationStatus = "completed"
)

// ScrapeLocation is a configured suburb. Status only lives for the duration
// of one sync run and is never persisted.
type ScrapeLocation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Suburb    string         `gorm:"uniqueIndex:idx_location_key;not null" json:"suburb" binding:"required"`
	State     string         `gorm:"uniqueIndex:idx_location_key;not null" json:"state" binding:"required"`
	Postcode  string         `gorm:"uniqueIndex:idx_location_key;not null" json:"postcode" binding:"required"`
	Status    LocationStatus `gorm:"-" json:"status,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (ScrapeLocation) TableName() string {
	return "scrape_locations"
}

func (l ScrapeLocation) Key() string {
	return fmt.Sprintf("%s|%s|%s", l.Suburb, l.State, l.Postcode)
}

// Address is the "Suburb, STATE, postcode" form used for geocoding and distance lookups.
func (l ScrapeLocation) Address() string {
	return fmt.Sprintf("%s, %s, %s", l.Suburb, l.State, l.Postcode)
}

func (l ScrapeLocation) Ref() LocationRef {
	return LocationRef{Suburb: l.Suburb, State: l.State, Postcode: l.Postcode}
}
