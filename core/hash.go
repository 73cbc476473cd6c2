package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeStatusHash computes the digest that binds a receipt to an auction
// status. Used by the daemon to produce receipts and by validation to check
// them.
//
// Formula: keccak256(address|phase|block|start|highest_bid|highest_bidder|
// winner|activation_nonce|reveals|finalized_count|custody)
//
// Addresses are lower-case hex and amounts are decimal wei.
func ComputeStatusHash(s Status) common.Hash {
	data := fmt.Sprintf("%s|%s|%d|%d|%s|%s|%s|%d|%d|%d|%s",
		strings.ToLower(s.Address.Hex()),
		s.Phase,
		s.BlockNumber,
		s.StartBlock,
		orZero(s.HighestBid).Dec(),
		strings.ToLower(s.HighestBidder.Hex()),
		strings.ToLower(s.Winner.Hex()),
		s.ActivationNonce,
		s.Reveals,
		s.FinalizedCount,
		orZero(s.Custody).Dec(),
	)
	return crypto.Keccak256Hash([]byte(data))
}

// ComputeRevealsHash computes a digest over a set of reveals.
//
// Formula: keccak256(bidder1:value1:block1|bidder2:value2:block2|...)
// with the entries sorted lexicographically.
func ComputeRevealsHash(reveals []Reveal) common.Hash {
	entries := make([]string, 0, len(reveals))
	for _, r := range reveals {
		entries = append(entries, fmt.Sprintf("%s:%s:%d",
			strings.ToLower(r.Bidder.Hex()), orZero(r.Value).Dec(), r.Block))
	}
	sort.Strings(entries)
	return crypto.Keccak256Hash([]byte(strings.Join(entries, "|")))
}
