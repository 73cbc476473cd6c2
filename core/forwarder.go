package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Activate turns the caller's commit address into a forwarder, spending at
// most call.Gas. It returns done=false and the zero address when the budget
// ran out before the commit address was reached; the search position is
// kept, so the next call resumes where this one stopped.
//
// Activation is only possible in the finalize phase: an activated address
// fails CheckBid, so earlier activation would void unrevealed deposits.
func (a *Auction) Activate(call Call, value *uint256.Int, witness common.Hash) (bool, common.Address, error) {
	var (
		done bool
		addr common.Address
	)
	value = orZero(value)
	err := a.atomic(func() error {
		if phase := a.Phase(); phase != PhaseFinalize {
			return fmt.Errorf("%w: activate called in %s phase", ErrPhase, phase)
		}
		var err error
		done, addr, err = a.activate(call.From, value, witness, call.Gas)
		return err
	})
	if err != nil {
		return false, common.Address{}, err
	}
	return done, addr, nil
}

// activate deploys forwarders at successive sequence numbers of the auction
// address until the deployment lands on the commit address of the bid.
// Every deployment costs CloneMinGas. The cursor in State.ActivationNonce
// is advanced past every consumed slot, including slots that belong to
// other bidders: those become active too and are settled without further
// search.
func (a *Auction) activate(bidder common.Address, value *uint256.Int, witness common.Hash, gas uint64) (bool, common.Address, error) {
	target, err := a.CommitAddress(value, witness, bidder)
	if err != nil {
		return false, common.Address{}, err
	}
	if a.IsActive(target) {
		return true, target, nil
	}

	code := ForwarderCode(a.address)
	start := a.state.ActivationNonce
	for gas >= a.config.CloneMinGas {
		nonce := a.state.ActivationNonce
		if nonce > MaxSequence {
			return false, common.Address{}, fmt.Errorf("%w: activation cursor at %d", ErrSequenceOutOfRange, nonce)
		}

		addr, err := a.ledger.Deploy(a.address, nonce, code)
		if err != nil {
			return false, common.Address{}, fmt.Errorf("deploy forwarder at sequence %d: %w", nonce, err)
		}
		gas -= a.config.CloneMinGas
		a.state.ActivationNonce++

		if addr == target {
			a.logger.Debug("Commit address activated", "bidder", bidder, "address", addr,
				"sequence", nonce, "attempts", a.state.ActivationNonce-start)
			return true, target, nil
		}
	}

	a.logger.Debug("Activation budget exhausted", "bidder", bidder,
		"from", start, "cursor", a.state.ActivationNonce)
	return false, common.Address{}, nil
}
