package models

import "errors"

var (
	// ErrStorage indicates the database was unavailable or a statement
	// failed for a reason other than a uniqueness conflict.
	ErrStorage = errors.New("storage error")

	// ErrAlreadyMinted is returned by the mint ledger when an insert loses
	// the race on the (event, attendee) unique index. Callers treat it as a
	// success path and re-read the winning record.
	ErrAlreadyMinted = errors.New("mint record already exists")

	// ErrEventNotFound indicates no event is registered for the given id.
	ErrEventNotFound = errors.New("event not found")

	// ErrAttendeeLookup indicates the external platform could not supply
	// attendee details.
	ErrAttendeeLookup = errors.New("attendee lookup failed")

	// ErrNotAuthorized indicates the administrative key lacks mint
	// permission on the contract. Fatal at startup.
	ErrNotAuthorized = errors.New("admin key not authorized to mint")

	// ErrNotInitialized indicates the gateway was invoked before its
	// authorization check succeeded.
	ErrNotInitialized = errors.New("minting gateway not initialized")

	// ErrMintRejected indicates the chain explicitly rejected the mint
	// transaction. Not retryable without operator intervention.
	ErrMintRejected = errors.New("mint transaction rejected")

	// ErrMintUnconfirmed indicates the transaction was submitted but
	// inclusion was not observed within the wait window. Retrying the whole
	// check-in is safe only because of the ledger's unique index.
	ErrMintUnconfirmed = errors.New("mint transaction unconfirmed")
)
