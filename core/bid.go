package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// IsActive reports whether addr hosts deployed code, i.e. has already been
// activated. Externally owned accounts are never active, and neither is
// the auction's own address unless the ledger placed code there.
func (a *Auction) IsActive(addr common.Address) bool {
	return a.ledger.HasCode(addr)
}

// CheckBid reports whether bidder's commit address for (value, witness)
// holds exactly value and has not been activated. It has no side effects
// and answers any caller; without the witness the answer reveals nothing.
func (a *Auction) CheckBid(value *uint256.Int, witness common.Hash, bidder common.Address) bool {
	if value == nil || value.IsZero() {
		return false
	}
	addr, err := a.CommitAddress(value, witness, bidder)
	if err != nil {
		return false
	}
	return a.ledger.Balance(addr).Eq(value) && !a.IsActive(addr)
}
