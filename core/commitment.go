package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// CommitSequence computes the sequence number hiding a bid.
//
// Formula: keccak256(value[32] || witness[32] || bidder[20]) & 0x7f
//
// The value is encoded as a 32-byte big-endian word so that the preimage
// layout matches abi.encodePacked(uint256, uint256, address).
func CommitSequence(value *uint256.Int, witness common.Hash, bidder common.Address) uint64 {
	valueBytes := orZero(value).Bytes32()
	hash := crypto.Keccak256(valueBytes[:], witness[:], bidder[:])
	return uint64(hash[len(hash)-1] & MaxSequence)
}

// CommitAddress returns the deposit address of a bid in the auction
// deployed at auction. Anyone knowing (value, witness, bidder) can
// recompute it; the address alone reveals nothing about the bid.
func CommitAddress(auction common.Address, value *uint256.Int, witness common.Hash, bidder common.Address) (common.Address, error) {
	return DeriveAddress(auction, CommitSequence(value, witness, bidder))
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
