package models

import "time"

// Event represents an event registered by an admin. The Luma event id links
// it to the external platform and is unique and immutable after creation.
type Event struct {
	ID          string    `json:"id" db:"id"`
	LumaEventID string    `json:"luma_event_id" db:"luma_event_id"`
	Name        string    `json:"name" db:"name"`
	Date        string    `json:"date" db:"date"`
	Location    string    `json:"location" db:"location"`
	Description string    `json:"description" db:"description"`
	Organizer   string    `json:"organizer" db:"organizer"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Location    string `json:"location" binding:"required"`
	LumaEventID string `json:"luma_event_id" binding:"required"`
	Description string `json:"description"`
	Organizer   string `json:"organizer"`
	ImageURL    string `json:"image_url"`
	Active      *bool  `json:"active"`
}

type UpdateEventRequest struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Organizer   string `json:"organizer"`
	ImageURL    string `json:"image_url"`
	Active      *bool  `json:"active"`
}

// EventFilter narrows event listings for the admin UI.
type EventFilter struct {
	Active    *bool
	Organizer string
	StartDate string
	EndDate   string
}

// EventStats summarizes minting activity for one event.
type EventStats struct {
	EventID     string       `json:"event_id"`
	EventName   string       `json:"event_name"`
	TotalMints  int          `json:"total_mints"`
	RecentMints []MintRecord `json:"recent_mints"`
}
