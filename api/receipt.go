package api

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/veraison/go-cose"
)

// Receipt kinds.
const (
	ReceiptReveal         = "reveal"
	ReceiptFinalizeWinner = "finalize_winner"
	ReceiptFinalizeLoser  = "finalize_loser"
)

// Receipt is the signed record of a successful reveal or settlement.
// Amounts are decimal wei; addresses and hashes are 0x-hex.
type Receipt struct {
	ID            string `cbor:"id" json:"id"`
	Kind          string `cbor:"kind" json:"kind"`
	Auction       string `cbor:"auction" json:"auction"`
	Bidder        string `cbor:"bidder" json:"bidder"`
	CommitAddress string `cbor:"commit_address" json:"commit_address"`
	Amount        string `cbor:"amount" json:"amount"`
	BlockNumber   uint64 `cbor:"block_number" json:"block_number"`
	HighestBidder string `cbor:"highest_bidder" json:"highest_bidder"`
	HighestBid    string `cbor:"highest_bid" json:"highest_bid"`
	Winner        string `cbor:"winner" json:"winner"`
	StatusHash    string `cbor:"status_hash" json:"status_hash"`
	IssuedAt      int64  `cbor:"issued_at" json:"issued_at"`
}

// NewReceipt fills in the identity fields of a receipt.
func NewReceipt(kind string, auction, bidder, commitAddress common.Address, amount *uint256.Int, block uint64) *Receipt {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return &Receipt{
		ID:            uuid.NewString(),
		Kind:          kind,
		Auction:       auction.Hex(),
		Bidder:        bidder.Hex(),
		CommitAddress: commitAddress.Hex(),
		Amount:        amount.Dec(),
		BlockNumber:   block,
		IssuedAt:      time.Now().Unix(),
	}
}

// Marshal encodes the receipt as the CBOR payload of its envelope.
func (r *Receipt) Marshal() ([]byte, error) {
	return cbor.Marshal(r)
}

// UnmarshalReceipt decodes a CBOR receipt payload.
func UnmarshalReceipt(payload []byte) (*Receipt, error) {
	var r Receipt
	if err := cbor.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

// ReceiptCOSE is a tagged COSE_Sign1 message carrying a Receipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is the base64 form of ReceiptCOSE used in JSON.
type ReceiptCOSEBase64 string

// EncodeBase64 encodes with standard padding.
func (c ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(c))
}

// EncodeURLSafe encodes with the URL alphabet and no padding.
func (c ReceiptCOSE) EncodeURLSafe() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.RawURLEncoding.EncodeToString(c))
}

// Message parses the envelope without verifying it.
func (c ReceiptCOSE) Message() (*cose.Sign1Message, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(c); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	return &msg, nil
}

// Receipt decodes the payload without verifying the signature.
func (c ReceiptCOSE) Receipt() (*Receipt, error) {
	msg, err := c.Message()
	if err != nil {
		return nil, err
	}
	return UnmarshalReceipt(msg.Payload)
}

func (b ReceiptCOSEBase64) String() string { return string(b) }

// Decode accepts both the standard and the URL-safe encodings.
func (b ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	if b == "" {
		return nil, fmt.Errorf("empty receipt")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding} {
		if data, err := enc.DecodeString(string(b)); err == nil {
			return ReceiptCOSE(data), nil
		}
	}
	return nil, fmt.Errorf("receipt is not valid base64")
}
