package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"attendance-backend/logger"
	"attendance-backend/models"
)

// Store is the persistence surface the resolver needs. Insert must keep the
// first record for an email and silently drop later ones.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*models.WalletRecord, error)
	Insert(ctx context.Context, record *models.WalletRecord) error
}

// Resolver maps attendee emails to custodial wallet addresses, creating a
// fresh keypair on first contact. The wallets table's unique key on email
// serializes concurrent creation: both racers insert with DO NOTHING and
// then read back whichever row survived.
type Resolver struct {
	wallets Store
}

// NewResolver creates a wallet resolver backed by the given store.
func NewResolver(wallets Store) *Resolver {
	return &Resolver{wallets: wallets}
}

// Resolve returns the wallet address for an email, generating and persisting
// a new address when none exists. A storage failure here is a hard stop for
// the check-in; no mint may be attempted without a destination wallet.
func (r *Resolver) Resolve(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("%w: empty email", models.ErrStorage)
	}

	existing, err := r.wallets.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if existing != nil {
		return existing.Address, nil
	}

	address, err := generateAddress()
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}

	record := &models.WalletRecord{
		Email:     email,
		Address:   address,
		CreatedAt: time.Now(),
	}
	if err := r.wallets.Insert(ctx, record); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}

	// Re-read after insert: if a concurrent resolver won the race, its
	// address is the one on record and ours is discarded.
	stored, err := r.wallets.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if stored == nil {
		return "", fmt.Errorf("%w: wallet vanished after insert", models.ErrStorage)
	}

	if stored.Address == address {
		logger.Info("created wallet %s for attendee %s", address, email)
	}

	return stored.Address, nil
}

func generateAddress() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate keypair: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
