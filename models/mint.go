package models

import "time"

// MintRecord is the durable record of one successful attendance-NFT mint.
// The (EventID, AttendeeEmail) pair is unique; records are never updated or
// deleted by normal operation.
type MintRecord struct {
	ID            string    `json:"id" db:"id"`
	TokenID       uint64    `json:"token_id" db:"token_id"`
	EventID       string    `json:"event_id" db:"event_id"`
	AttendeeEmail string    `json:"attendee_email" db:"attendee_email"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	MintedAt      time.Time `json:"minted_at" db:"minted_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// WalletRecord maps an attendee email to its custodial wallet address.
// Created once on first check-in and never mutated.
type WalletRecord struct {
	Email     string    `json:"email" db:"email"`
	Address   string    `json:"address" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Attendee is supplied per check-in from the external event platform and is
// not persisted.
type Attendee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EventMetadata carries the fields the minting contract records on-chain.
type EventMetadata struct {
	EventID  string
	Name     string
	Date     string
	Location string
	TokenURI string
}
