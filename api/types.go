// Package api defines the wire format spoken by the auction daemon and the
// receipts it signs.
package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/blindauction/core"
)

// Request types understood by the daemon.
const (
	TypePing           = "ping"
	TypeKeyRequest     = "key_request"
	TypeStatus         = "status"
	TypeCommitAddress  = "commit_address"
	TypeCheckBid       = "check_bid"
	TypeFund           = "fund"
	TypeDeposit        = "deposit"
	TypeMine           = "mine"
	TypeRevealBid      = "reveal_bid"
	TypeFinalizeWinner = "finalize_winner"
	TypeFinalizeLoser  = "finalize_loser"
	TypeActivate       = "activate"
)

// Mutating reports whether a request of type t changes ledger or auction
// state. Only mutating requests are journalled.
func Mutating(t string) bool {
	switch t {
	case TypeFund, TypeDeposit, TypeMine, TypeRevealBid,
		TypeFinalizeWinner, TypeFinalizeLoser, TypeActivate:
		return true
	}
	return false
}

// Request is a single daemon request. Which fields are read depends on
// Type.
type Request struct {
	Type      string `json:"type" cbor:"type"`
	RequestID string `json:"request_id,omitempty" cbor:"request_id,omitempty"`

	// From is the calling account
	From common.Address `json:"from" cbor:"from"`

	// Value is an ether decimal string, e.g. "0.005"
	Value string `json:"value,omitempty" cbor:"value,omitempty"`

	Witness common.Hash `json:"witness" cbor:"witness"`

	// Gas is the budget of reveal/finalize/activate calls. Zero selects
	// the auction's FinalizeMinGas.
	Gas uint64 `json:"gas,omitempty" cbor:"gas,omitempty"`

	// Blocks is the number of blocks to mine
	Blocks uint64 `json:"blocks,omitempty" cbor:"blocks,omitempty"`
}

// Amount parses Value to wei.
func (r Request) Amount() (*uint256.Int, error) {
	if r.Value == "" {
		return nil, fmt.Errorf("%w: missing value", ErrInvalidAmount)
	}
	return ParseEther(r.Value)
}

// RankedBid is one row of the reveal ranking.
type RankedBid struct {
	Rank   int            `json:"rank"`
	Bidder common.Address `json:"bidder"`
	Value  string         `json:"value"`
	Block  uint64         `json:"block"`
}

// StatusView is the public auction status with amounts in ether.
type StatusView struct {
	Address         common.Address `json:"address"`
	Phase           core.Phase     `json:"phase"`
	BlockNumber     uint64         `json:"block_number"`
	StartBlock      uint64         `json:"start_block"`
	RevealBlock     uint64         `json:"reveal_block"`
	FinalizeBlock   uint64         `json:"finalize_block"`
	HighestBid      string         `json:"highest_bid"`
	HighestBidder   common.Address `json:"highest_bidder"`
	Winner          common.Address `json:"winner"`
	ActivationNonce uint64         `json:"activation_nonce"`
	Reveals         int            `json:"reveals"`
	FinalizedCount  int            `json:"finalized_count"`
	Custody         string         `json:"custody"`
	CloneMinGas     uint64         `json:"clone_min_gas"`
	FinalizeMinGas  uint64         `json:"finalize_min_gas"`
	StatusHash      common.Hash    `json:"status_hash"`
	RevealsHash     common.Hash    `json:"reveals_hash"`
	Ranking         []RankedBid    `json:"ranking"`
}

// NewStatusView renders an auction's status and ranking.
func NewStatusView(a *core.Auction) *StatusView {
	status := a.Status()
	view := &StatusView{
		Address:         status.Address,
		Phase:           status.Phase,
		BlockNumber:     status.BlockNumber,
		StartBlock:      status.StartBlock,
		RevealBlock:     status.RevealBlock,
		FinalizeBlock:   status.FinalizeBlock,
		HighestBid:      FormatEther(status.HighestBid),
		HighestBidder:   status.HighestBidder,
		Winner:          status.Winner,
		ActivationNonce: status.ActivationNonce,
		Reveals:         status.Reveals,
		FinalizedCount:  status.FinalizedCount,
		Custody:         FormatEther(status.Custody),
		CloneMinGas:     a.CloneMinGas(),
		FinalizeMinGas:  a.FinalizeMinGas(),
		StatusHash:      core.ComputeStatusHash(status),
		RevealsHash:     core.ComputeRevealsHash(a.Reveals()),
	}

	ranking := a.Ranking()
	view.Ranking = make([]RankedBid, 0, len(ranking.Sorted))
	for i, bidder := range ranking.Sorted {
		best := ranking.Best[bidder]
		view.Ranking = append(view.Ranking, RankedBid{
			Rank:   i + 1,
			Bidder: bidder,
			Value:  FormatEther(best.Value),
			Block:  best.Block,
		})
	}
	return view
}

// Response is the daemon's answer to a Request.
type Response struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`

	Done        *bool           `json:"done,omitempty"`
	Valid       *bool           `json:"valid,omitempty"`
	Address     *common.Address `json:"address,omitempty"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	Balance     string          `json:"balance,omitempty"`
	Status      *StatusView     `json:"status,omitempty"`

	// PublicKey is the PEM encoded receipt verification key
	PublicKey string `json:"public_key,omitempty"`

	// Receipt is a base64 COSE_Sign1 envelope over a CBOR Receipt
	Receipt ReceiptCOSEBase64 `json:"receipt,omitempty"`

	ProcessingTime int64 `json:"processing_time_ms"`
}

// ResponseType names the response to a request of type t.
func ResponseType(t string) string {
	if t == TypePing {
		return "pong"
	}
	return t + "_response"
}

// ErrorResponse builds a failed response for req.
func ErrorResponse(req Request, err error) Response {
	return Response{
		Type:      ResponseType(req.Type),
		RequestID: req.RequestID,
		Success:   false,
		Message:   err.Error(),
	}
}

// Bool returns a pointer to b, for the optional response flags.
func Bool(b bool) *bool { return &b }
