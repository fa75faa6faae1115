package luma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendance-backend/logger"
	"attendance-backend/models"
)

// Client fetches attendee details from the Luma event platform.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Luma API client. With an empty API key the client runs
// in development mode and serves deterministic mock attendees, mirroring how
// the admin UI simulator exercises the pipeline without platform access.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetAttendee fetches one attendee of an event by external identifiers.
// Returns nil, nil when the platform reports no such attendee.
func (c *Client) GetAttendee(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error) {
	if c.apiKey == "" {
		logger.Debug("luma client in mock mode, returning synthetic attendee %s", attendeeID)
		return &models.Attendee{
			ID:    attendeeID,
			Name:  "Mock Attendee",
			Email: fmt.Sprintf("%s@mock.luma.test", attendeeID),
		}, nil
	}

	url := fmt.Sprintf("%s/events/%s/attendees/%s", c.baseURL, eventID, attendeeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build attendee request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAttendeeLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: luma API returned status %d", models.ErrAttendeeLookup, resp.StatusCode)
	}

	var attendee models.Attendee
	if err := json.NewDecoder(resp.Body).Decode(&attendee); err != nil {
		return nil, fmt.Errorf("%w: failed to decode attendee: %v", models.ErrAttendeeLookup, err)
	}

	if attendee.Email == "" {
		return nil, nil
	}

	return &attendee, nil
}
