package models

// CheckInRequest is the payload delivered by the Luma webhook or the manual
// trigger endpoint.
type CheckInRequest struct {
	EventID     string `json:"eventId"`
	AttendeeID  string `json:"attendeeId"`
	CheckInTime string `json:"checkInTime"`
}

// Check-in result reasons. Rejections are caller errors (400); failures are
// pipeline errors.
const (
	ReasonInvalidInput       = "invalid_input"
	ReasonEventNotConfigured = "event_not_configured"
	ReasonAttendeeLookup     = "attendee_lookup_failed"
	ReasonWalletResolution   = "wallet_resolution_failed"
	ReasonMintRejected       = "mint_rejected"
	ReasonMintUnconfirmed    = "mint_unconfirmed"
	ReasonLedgerWrite        = "ledger_write_failed"
)

// CheckInResult is the structured outcome of one check-in request.
type CheckInResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TokenID       uint64 `json:"tokenId,omitempty"`
	AlreadyMinted bool   `json:"alreadyMinted,omitempty"`
	Rejected      bool   `json:"-"`
	Reason        string `json:"-"`
}
