package models

import (
	"time"

	"github.com/google/uuid"
)

type Home struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Address   string    `json:"address"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// PropertyRecord is what the property lookup service returns for an address.
type PropertyRecord struct {
	Address      string         `json:"address"`
	YearBuilt    int            `json:"year_built,omitempty"`
	SquareFeet   int            `json:"square_feet,omitempty"`
	Bedrooms     int            `json:"bedrooms,omitempty"`
	Bathrooms    float64        `json:"bathrooms,omitempty"`
	PropertyType string         `json:"property_type,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}
