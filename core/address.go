package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxSequence is the largest sequence number the derivation accepts.
// Larger values no longer fit the single-byte RLP slot used below.
const MaxSequence = 127

// DeriveAddress computes the address of the account created by owner at
// the given sequence number (the CREATE rule):
//
//	keccak256(rlp([owner, seq]))[12:]
//
// The RLP list is assembled by hand: a 0xd6 list header, a 0x94 string
// header followed by the 20 owner bytes, and the nonce as a single byte
// (0x80 encodes zero).
func DeriveAddress(owner common.Address, seq uint64) (common.Address, error) {
	if seq > MaxSequence {
		return common.Address{}, fmt.Errorf("%w: %d > %d", ErrSequenceOutOfRange, seq, MaxSequence)
	}

	var buf [2 + common.AddressLength + 1]byte
	buf[0] = 0xc0 + 1 + common.AddressLength + 1
	buf[1] = 0x80 + common.AddressLength
	copy(buf[2:], owner[:])
	if seq == 0 {
		buf[len(buf)-1] = 0x80
	} else {
		buf[len(buf)-1] = byte(seq)
	}

	return common.BytesToAddress(crypto.Keccak256(buf[:])[12:]), nil
}
