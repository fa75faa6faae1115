package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendance-backend/logger"
	"attendance-backend/models"
)

// EventStore resolves registered events by their external platform id.
type EventStore interface {
	GetByLumaID(ctx context.Context, lumaEventID string) (*models.Event, error)
}

// AttendeeSource fetches attendee details from the external event platform.
type AttendeeSource interface {
	GetAttendee(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error)
}

// WalletResolver maps an attendee email to a wallet address.
type WalletResolver interface {
	Resolve(ctx context.Context, email string) (string, error)
}

// MintLedger is the idempotency gate and durable mint history.
type MintLedger interface {
	FindRecord(ctx context.Context, eventID, attendeeEmail string) (*models.MintRecord, error)
	RecordMint(ctx context.Context, record *models.MintRecord) error
}

// MintGateway submits one mint transaction and reports the chain-assigned
// token id.
type MintGateway interface {
	Mint(ctx context.Context, walletAddress string, meta models.EventMetadata) (uint64, error)
}

// Orchestrator drives one check-in from webhook payload to recorded mint.
// It holds only interfaces so every collaborator can be replaced by a test
// double. Correctness under concurrent duplicate check-ins comes from the
// ledger's unique index, not from any in-process locking.
type Orchestrator struct {
	events   EventStore
	platform AttendeeSource
	wallets  WalletResolver
	ledger   MintLedger
	gateway  MintGateway
}

// New creates a check-in orchestrator.
func New(events EventStore, platform AttendeeSource, wallets WalletResolver, ledger MintLedger, gateway MintGateway) *Orchestrator {
	return &Orchestrator{
		events:   events,
		platform: platform,
		wallets:  wallets,
		ledger:   ledger,
		gateway:  gateway,
	}
}

// HandleCheckIn runs the check-in pipeline: validate, resolve event and
// attendee, resolve wallet, consult the ledger, mint, record. Duplicate
// deliveries resolve to a success response carrying the original token id.
// The ledger check before minting is a fast path; the unique index enforced
// at record time is the actual at-most-once guarantee.
func (o *Orchestrator) HandleCheckIn(ctx context.Context, req models.CheckInRequest) *models.CheckInResult {
	if req.EventID == "" || req.AttendeeID == "" || req.CheckInTime == "" {
		return reject(models.ReasonInvalidInput, "Invalid check-in data")
	}

	event, err := o.events.GetByLumaID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			logger.Warn("check-in for unregistered event %s", req.EventID)
			return reject(models.ReasonEventNotConfigured, "Event not configured in the system")
		}
		logger.Error("event lookup failed for %s: %v", req.EventID, err)
		return fail(models.ReasonEventNotConfigured, "Failed to resolve event")
	}

	attendee, err := o.platform.GetAttendee(ctx, req.EventID, req.AttendeeID)
	if err != nil {
		logger.Error("attendee lookup failed for event %s, attendee %s: %v", req.EventID, req.AttendeeID, err)
		return reject(models.ReasonAttendeeLookup, "Could not fetch attendee details")
	}
	if attendee == nil {
		logger.Warn("attendee %s not found on platform for event %s", req.AttendeeID, req.EventID)
		return reject(models.ReasonAttendeeLookup, "Could not fetch attendee details")
	}

	walletAddress, err := o.wallets.Resolve(ctx, attendee.Email)
	if err != nil {
		logger.Error("wallet resolution failed for %s: %v", attendee.Email, err)
		return fail(models.ReasonWalletResolution, "Could not prepare wallet for NFT delivery")
	}

	// Idempotency fast path: duplicate webhooks are absorbed here without
	// spending a transaction.
	existing, err := o.ledger.FindRecord(ctx, event.ID, attendee.Email)
	if err != nil {
		logger.Error("ledger lookup failed for event %s, attendee %s: %v", event.ID, attendee.Email, err)
		return fail(models.ReasonLedgerWrite, "Failed to check minting history")
	}
	if existing != nil {
		logger.Info("NFT already minted for %s at event %s (token %d)", attendee.Email, event.ID, existing.TokenID)
		return &models.CheckInResult{
			Success:       true,
			Message:       "NFT already minted",
			TokenID:       existing.TokenID,
			AlreadyMinted: true,
		}
	}

	meta := models.EventMetadata{
		EventID:  event.ID,
		Name:     event.Name,
		Date:     event.Date,
		Location: event.Location,
		TokenURI: tokenURI(event, attendee),
	}

	tokenID, err := o.gateway.Mint(ctx, walletAddress, meta)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMintUnconfirmed):
			logger.Error("mint unconfirmed for %s at event %s: %v", attendee.Email, event.ID, err)
			return fail(models.ReasonMintUnconfirmed, "Mint transaction not confirmed, please retry")
		default:
			logger.Error("mint rejected for %s at event %s: %v", attendee.Email, event.ID, err)
			return fail(models.ReasonMintRejected, "Failed to mint NFT")
		}
	}

	record := &models.MintRecord{
		ID:            uuid.New().String(),
		TokenID:       tokenID,
		EventID:       event.ID,
		AttendeeEmail: attendee.Email,
		WalletAddress: walletAddress,
		MintedAt:      time.Now(),
		CreatedAt:     time.Now(),
	}

	if err := o.ledger.RecordMint(ctx, record); err != nil {
		if errors.Is(err, models.ErrAlreadyMinted) {
			// A concurrent duplicate won the insert race; its record is
			// authoritative and this request reports the winner's token.
			winner, findErr := o.ledger.FindRecord(ctx, event.ID, attendee.Email)
			if findErr != nil || winner == nil {
				logger.Error("failed to read winning mint record for event %s, attendee %s: %v", event.ID, attendee.Email, findErr)
				return fail(models.ReasonLedgerWrite, "Failed to record mint")
			}
			logger.Info("lost mint record race for %s at event %s, reporting token %d", attendee.Email, event.ID, winner.TokenID)
			return &models.CheckInResult{
				Success:       true,
				Message:       "NFT already minted",
				TokenID:       winner.TokenID,
				AlreadyMinted: true,
			}
		}
		// Token exists on chain but the ledger write failed; operators must
		// reconcile before a retry can be absorbed by the fast path.
		logger.Error("mint recorded on chain (token %d) but ledger write failed for event %s, attendee %s: %v", tokenID, event.ID, attendee.Email, err)
		return fail(models.ReasonLedgerWrite, "Failed to record mint")
	}

	logger.Info("minted NFT token %d for %s at event %s", tokenID, attendee.Email, event.ID)
	return &models.CheckInResult{
		Success: true,
		Message: "NFT minted successfully",
		TokenID: tokenID,
	}
}

// tokenURI derives a stable metadata location from event and attendee
// identifiers so retried check-ins reference the same URI.
func tokenURI(event *models.Event, attendee *models.Attendee) string {
	return fmt.Sprintf("ipfs://placeholder/%s/%s", event.ID, attendee.ID)
}

func reject(reason, message string) *models.CheckInResult {
	return &models.CheckInResult{Message: message, Rejected: true, Reason: reason}
}

func fail(reason, message string) *models.CheckInResult {
	return &models.CheckInResult{Message: message, Reason: reason}
}
