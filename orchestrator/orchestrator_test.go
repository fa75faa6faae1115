package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-backend/models"
)

type fakeEventStore struct {
	events map[string]*models.Event
}

func (f *fakeEventStore) GetByLumaID(_ context.Context, lumaEventID string) (*models.Event, error) {
	event, ok := f.events[lumaEventID]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	return event, nil
}

type fakeAttendeeSource struct {
	attendees map[string]*models.Attendee
	err       error
}

func (f *fakeAttendeeSource) GetAttendee(_ context.Context, eventID, attendeeID string) (*models.Attendee, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.attendees[eventID+"/"+attendeeID], nil
}

type fakeWalletResolver struct {
	mu    sync.Mutex
	addrs map[string]string
	err   error
	calls int
}

func (f *fakeWalletResolver) Resolve(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.addrs == nil {
		f.addrs = make(map[string]string)
	}
	addr, ok := f.addrs[email]
	if !ok {
		addr = fmt.Sprintf("0xwallet-%d", len(f.addrs)+1)
		f.addrs[email] = addr
	}
	return addr, nil
}

// fakeLedger enforces the (event, attendee) unique constraint the way the
// database does.
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*models.MintRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*models.MintRecord)}
}

func ledgerKey(eventID, email string) string {
	return eventID + "|" + email
}

func (f *fakeLedger) FindRecord(_ context.Context, eventID, attendeeEmail string) (*models.MintRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[ledgerKey(eventID, attendeeEmail)], nil
}

func (f *fakeLedger) RecordMint(_ context.Context, record *models.MintRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(record.EventID, record.AttendeeEmail)
	if _, exists := f.records[key]; exists {
		return models.ErrAlreadyMinted
	}
	copied := *record
	f.records[key] = &copied
	return nil
}

func (f *fakeLedger) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeGateway struct {
	mu        sync.Mutex
	nextToken uint64
	calls     int
	err       error
}

func (f *fakeGateway) Mint(_ context.Context, _ string, _ models.EventMetadata) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.nextToken++
	return f.nextToken, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testEvent() *models.Event {
	return &models.Event{
		ID:          "event-1",
		LumaEventID: "luma-1",
		Name:        "Gopher Meetup",
		Date:        "2025-10-01",
		Location:    "Berlin",
		Active:      true,
	}
}

func testFixture() (*Orchestrator, *fakeWalletResolver, *fakeLedger, *fakeGateway) {
	events := &fakeEventStore{events: map[string]*models.Event{"luma-1": testEvent()}}
	platform := &fakeAttendeeSource{attendees: map[string]*models.Attendee{
		"luma-1/att-1": {ID: "att-1", Name: "Alice", Email: "a1@x.com"},
		"luma-1/att-2": {ID: "att-2", Name: "Bob", Email: "b2@x.com"},
	}}
	wallets := &fakeWalletResolver{}
	ledger := newFakeLedger()
	gateway := &fakeGateway{}

	return New(events, platform, wallets, ledger, gateway), wallets, ledger, gateway
}

func checkIn(eventID, attendeeID string) models.CheckInRequest {
	return models.CheckInRequest{
		EventID:     eventID,
		AttendeeID:  attendeeID,
		CheckInTime: time.Now().Format(time.RFC3339),
	}
}

func TestHandleCheckInMintsOnce(t *testing.T) {
	orch, _, ledger, gateway := testFixture()

	first := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))
	require.True(t, first.Success)
	assert.False(t, first.AlreadyMinted)
	assert.Equal(t, uint64(1), first.TokenID)

	second := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))
	require.True(t, second.Success)
	assert.True(t, second.AlreadyMinted)
	assert.Equal(t, uint64(1), second.TokenID)

	assert.Equal(t, 1, gateway.callCount(), "duplicate check-in must not spend a second transaction")
	assert.Equal(t, 1, ledger.size())
}

func TestHandleCheckInValidatesInput(t *testing.T) {
	orch, wallets, ledger, gateway := testFixture()

	cases := []models.CheckInRequest{
		{AttendeeID: "att-1", CheckInTime: "now"},
		{EventID: "luma-1", CheckInTime: "now"},
		{EventID: "luma-1", AttendeeID: "att-1"},
		{},
	}

	for _, req := range cases {
		result := orch.HandleCheckIn(context.Background(), req)
		assert.False(t, result.Success)
		assert.True(t, result.Rejected)
		assert.Equal(t, models.ReasonInvalidInput, result.Reason)
	}

	assert.Equal(t, 0, wallets.calls)
	assert.Equal(t, 0, gateway.callCount())
	assert.Equal(t, 0, ledger.size())
}

func TestHandleCheckInUnknownEvent(t *testing.T) {
	orch, wallets, ledger, gateway := testFixture()

	result := orch.HandleCheckIn(context.Background(), checkIn("luma-unknown", "att-1"))

	assert.False(t, result.Success)
	assert.True(t, result.Rejected)
	assert.Equal(t, models.ReasonEventNotConfigured, result.Reason)
	assert.Equal(t, "Event not configured in the system", result.Message)
	assert.Equal(t, 0, wallets.calls, "no wallet writes for unregistered events")
	assert.Equal(t, 0, gateway.callCount())
	assert.Equal(t, 0, ledger.size())
}

func TestHandleCheckInAttendeeLookupFails(t *testing.T) {
	events := &fakeEventStore{events: map[string]*models.Event{"luma-1": testEvent()}}
	platform := &fakeAttendeeSource{err: models.ErrAttendeeLookup}
	gateway := &fakeGateway{}
	orch := New(events, platform, &fakeWalletResolver{}, newFakeLedger(), gateway)

	result := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))

	assert.False(t, result.Success)
	assert.True(t, result.Rejected)
	assert.Equal(t, models.ReasonAttendeeLookup, result.Reason)
	assert.Equal(t, 0, gateway.callCount())
}

func TestHandleCheckInUnknownAttendee(t *testing.T) {
	orch, _, _, gateway := testFixture()

	result := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-missing"))

	assert.False(t, result.Success)
	assert.Equal(t, models.ReasonAttendeeLookup, result.Reason)
	assert.Equal(t, 0, gateway.callCount())
}

func TestNoMintWithoutWallet(t *testing.T) {
	events := &fakeEventStore{events: map[string]*models.Event{"luma-1": testEvent()}}
	platform := &fakeAttendeeSource{attendees: map[string]*models.Attendee{
		"luma-1/att-1": {ID: "att-1", Name: "Alice", Email: "a1@x.com"},
	}}
	wallets := &fakeWalletResolver{err: models.ErrStorage}
	ledger := newFakeLedger()
	gateway := &fakeGateway{}
	orch := New(events, platform, wallets, ledger, gateway)

	result := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))

	assert.False(t, result.Success)
	assert.False(t, result.Rejected)
	assert.Equal(t, models.ReasonWalletResolution, result.Reason)
	assert.Equal(t, 0, gateway.callCount(), "mint must never run without a wallet")
	assert.Equal(t, 0, ledger.size())
}

func TestNoLedgerWriteWithoutChainSuccess(t *testing.T) {
	orch, _, ledger, gateway := testFixture()
	gateway.err = models.ErrMintRejected

	result := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))

	assert.False(t, result.Success)
	assert.Equal(t, models.ReasonMintRejected, result.Reason)
	assert.Equal(t, 0, ledger.size(), "ledger must only record confirmed mints")
}

func TestMintUnconfirmedThenRetrySucceeds(t *testing.T) {
	orch, _, ledger, gateway := testFixture()

	gateway.err = models.ErrMintUnconfirmed
	first := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))
	assert.False(t, first.Success)
	assert.Equal(t, models.ReasonMintUnconfirmed, first.Reason)
	assert.Equal(t, 0, ledger.size())

	// The original transaction confirmed out of band and a concurrent path
	// recorded it; the retried check-in must absorb the duplicate.
	require.NoError(t, ledger.RecordMint(context.Background(), &models.MintRecord{
		ID:            "rec-1",
		TokenID:       7,
		EventID:       "event-1",
		AttendeeEmail: "a1@x.com",
		WalletAddress: "0xwallet-1",
		MintedAt:      time.Now(),
	}))

	gateway.err = nil
	second := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))
	require.True(t, second.Success)
	assert.True(t, second.AlreadyMinted)
	assert.Equal(t, uint64(7), second.TokenID)
	assert.Equal(t, 1, gateway.callCount(), "retry must stop at the ledger fast path")
}

// raceLedger simulates losing the insert race: FindRecord sees nothing until
// RecordMint reports a conflict from a concurrent winner.
type raceLedger struct {
	mu     sync.Mutex
	winner *models.MintRecord
	raced  bool
}

func (r *raceLedger) FindRecord(_ context.Context, _, _ string) (*models.MintRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raced {
		return r.winner, nil
	}
	return nil, nil
}

func (r *raceLedger) RecordMint(_ context.Context, record *models.MintRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raced = true
	r.winner = &models.MintRecord{
		ID:            "winner",
		TokenID:       42,
		EventID:       record.EventID,
		AttendeeEmail: record.AttendeeEmail,
		WalletAddress: record.WalletAddress,
		MintedAt:      time.Now(),
	}
	return models.ErrAlreadyMinted
}

func TestRecordRaceLoserReportsWinner(t *testing.T) {
	events := &fakeEventStore{events: map[string]*models.Event{"luma-1": testEvent()}}
	platform := &fakeAttendeeSource{attendees: map[string]*models.Attendee{
		"luma-1/att-1": {ID: "att-1", Name: "Alice", Email: "a1@x.com"},
	}}
	orch := New(events, platform, &fakeWalletResolver{}, &raceLedger{}, &fakeGateway{})

	result := orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))

	require.True(t, result.Success, "losing the insert race is a success outcome")
	assert.True(t, result.AlreadyMinted)
	assert.Equal(t, uint64(42), result.TokenID)
}

func TestConcurrentDuplicateCheckIns(t *testing.T) {
	orch, _, ledger, _ := testFixture()

	const n = 16
	results := make([]*models.CheckInResult, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, ledger.size(), "exactly one mint record for N duplicate check-ins")

	winner, err := ledger.FindRecord(context.Background(), "event-1", "a1@x.com")
	require.NoError(t, err)
	require.NotNil(t, winner)

	for i, result := range results {
		require.True(t, result.Success, "request %d failed: %s", i, result.Message)
		assert.Equal(t, winner.TokenID, result.TokenID, "request %d reported a different token", i)
	}
}

func TestConcurrentDistinctAttendees(t *testing.T) {
	orch, wallets, ledger, _ := testFixture()

	var wg sync.WaitGroup
	var first, second *models.CheckInResult

	wg.Add(2)
	go func() {
		defer wg.Done()
		first = orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-1"))
	}()
	go func() {
		defer wg.Done()
		second = orch.HandleCheckIn(context.Background(), checkIn("luma-1", "att-2"))
	}()
	wg.Wait()

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.NotEqual(t, first.TokenID, second.TokenID, "distinct attendees must get distinct tokens")
	assert.Equal(t, 2, ledger.size())
	assert.Len(t, wallets.addrs, 2, "distinct emails resolve to distinct wallets")
}
