package validation

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/blindauction/api"
)

// ReceiptValidationInput contains everything a bidder knows about its own
// bid plus the receipt it was handed. Optional fields are only checked
// when set.
type ReceiptValidationInput struct {
	Receipt      api.ReceiptCOSEBase64
	PublicKeyPEM string

	Auction common.Address
	Bidder  common.Address

	// Value is the bid in ether, e.g. "0.005" (optional)
	Value string

	// Witness, together with Value, lets the commit address be recomputed (optional)
	Witness *common.Hash

	// IsWinner is the expected settlement outcome (optional)
	IsWinner *bool

	// Status is the status view delivered with the receipt (optional)
	Status *api.StatusView
}

// ReceiptValidationResult contains the outcome of every check.
type ReceiptValidationResult struct {
	SignatureValid     bool
	KeyIDValid         bool
	AuctionValid       bool
	BidderValid        bool
	CommitAddressValid bool
	AmountValid        bool
	OutcomeValid       bool
	StatusHashValid    bool
	ValidationDetails  []string

	Receipt *api.Receipt
}

// IsValid returns true if all receipt checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.KeyIDValid && r.AuctionValid && r.BidderValid &&
		r.CommitAddressValid && r.AmountValid && r.OutcomeValid && r.StatusHashValid
}
