package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attendance-backend/models"
)

// EventRepository handles database operations for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `
	id, luma_event_id, name, date, location, description, organizer, image_url, active, created_at, updated_at
`

// Create inserts a new event. The Luma event id is unique; a conflicting
// insert surfaces as a storage error for the admin to resolve.
func (r *EventRepository) Create(ctx context.Context, req *models.CreateEventRequest) (*models.Event, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now()
	event := &models.Event{
		ID:          uuid.New().String(),
		LumaEventID: req.LumaEventID,
		Name:        req.Name,
		Date:        req.Date,
		Location:    req.Location,
		Description: req.Description,
		Organizer:   req.Organizer,
		ImageURL:    req.ImageURL,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO events (id, luma_event_id, name, date, location, description, organizer, image_url, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.LumaEventID,
		event.Name,
		event.Date,
		event.Location,
		event.Description,
		event.Organizer,
		event.ImageURL,
		event.Active,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("luma event id %s already registered: %w", event.LumaEventID, models.ErrStorage)
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

// GetByID gets an event by internal id. Returns ErrEventNotFound when absent.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.scanEvent(r.db.QueryRow(ctx, query, id))
}

// GetByLumaID resolves an event by its external platform identifier. This is
// the lookup the check-in pipeline depends on.
func (r *EventRepository) GetByLumaID(ctx context.Context, lumaEventID string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE luma_event_id = $1`
	return r.scanEvent(r.db.QueryRow(ctx, query, lumaEventID))
}

// List returns events matching the filter, newest date first.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if filter.Active != nil {
		query += " AND active = $" + strconv.Itoa(argIndex)
		args = append(args, *filter.Active)
		argIndex++
	}
	if filter.Organizer != "" {
		query += " AND organizer = $" + strconv.Itoa(argIndex)
		args = append(args, filter.Organizer)
		argIndex++
	}
	if filter.StartDate != "" {
		query += " AND date >= $" + strconv.Itoa(argIndex)
		args = append(args, filter.StartDate)
		argIndex++
	}
	if filter.EndDate != "" {
		query += " AND date <= $" + strconv.Itoa(argIndex)
		args = append(args, filter.EndDate)
		argIndex++
	}

	query += " ORDER BY date DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := scanEventFields(rows, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Update modifies event fields. The luma_event_id is immutable and is not
// part of the update surface.
func (r *EventRepository) Update(ctx context.Context, id string, req *models.UpdateEventRequest) (*models.Event, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Date != "" {
		existing.Date = req.Date
	}
	if req.Location != "" {
		existing.Location = req.Location
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.Organizer != "" {
		existing.Organizer = req.Organizer
	}
	if req.ImageURL != "" {
		existing.ImageURL = req.ImageURL
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	existing.UpdatedAt = time.Now()

	query := `
		UPDATE events
		SET name = $1, date = $2, location = $3, description = $4, organizer = $5, image_url = $6, active = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := r.db.Exec(ctx, query,
		existing.Name,
		existing.Date,
		existing.Location,
		existing.Description,
		existing.Organizer,
		existing.ImageURL,
		existing.Active,
		existing.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, models.ErrEventNotFound
	}

	return existing, nil
}

// Delete removes an event. Returns ErrEventNotFound when nothing matched.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrEventNotFound
	}
	return nil
}

func (r *EventRepository) scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	if err := scanEventFields(row, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func scanEventFields(row pgx.Row, event *models.Event) error {
	err := row.Scan(
		&event.ID,
		&event.LumaEventID,
		&event.Name,
		&event.Date,
		&event.Location,
		&event.Description,
		&event.Organizer,
		&event.ImageURL,
		&event.Active,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrEventNotFound
		}
		return fmt.Errorf("failed to scan event: %w", err)
	}
	return nil
}
