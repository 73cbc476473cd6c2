package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// Auction is a single sealed-bid auction deployed at a ledger address.
//
// Bidders deposit exactly their bid to CommitAddress(value, witness, bidder)
// during the commit phase, reveal (value, witness) during the reveal phase,
// and settle in the finalize phase: the highest bidder's deposit moves into
// the auction's custody, every other deposit is refunded.
//
// Operations are not safe for concurrent use. Callers must apply them one
// at a time, in a total order.
type Auction struct {
	address common.Address
	config  Config
	ledger  Ledger
	state   *State
	logger  log.Logger
}

// NewAuction creates an auction living at address on ledger. A zero
// config.StartBlock is replaced by the current block height.
func NewAuction(address common.Address, config Config, ledger Ledger, logger log.Logger) (*Auction, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: nil ledger", ErrInvalidConfig)
	}
	if config.StartBlock == 0 {
		config.StartBlock = ledger.BlockNumber()
	}
	if logger == nil {
		logger = log.Root()
	}

	return &Auction{
		address: address,
		config:  config,
		ledger:  ledger,
		state:   newState(),
		logger:  logger.With("auction", address),
	}, nil
}

// Address returns the auction's own ledger address, which is also its
// custody account and the owner of every commit address.
func (a *Auction) Address() common.Address { return a.address }

// Config returns the immutable auction parameters.
func (a *Auction) Config() Config { return a.config }

func (a *Auction) StartBlock() uint64     { return a.config.StartBlock }
func (a *Auction) CloneMinGas() uint64    { return a.config.CloneMinGas }
func (a *Auction) FinalizeMinGas() uint64 { return a.config.FinalizeMinGas }

// HighestBid returns the highest revealed bid so far.
func (a *Auction) HighestBid() *uint256.Int { return a.state.HighestBid.Clone() }

// HighestBidder returns the bidder of HighestBid, or the zero address.
func (a *Auction) HighestBidder() common.Address { return a.state.HighestBidder }

// Winner returns the winner once it has finalized, or the zero address.
func (a *Auction) Winner() common.Address { return a.state.Winner }

// IsFinalized reports whether bidder has completed finalization.
func (a *Auction) IsFinalized(bidder common.Address) bool { return a.state.Finalized[bidder] }

// Phase returns the phase at the ledger's current height.
func (a *Auction) Phase() Phase {
	return a.config.PhaseAt(a.ledger.BlockNumber())
}

// Status returns a snapshot of the public auction state.
func (a *Auction) Status() Status {
	height := a.ledger.BlockNumber()
	return Status{
		Address:         a.address,
		Phase:           a.config.PhaseAt(height),
		BlockNumber:     height,
		StartBlock:      a.config.StartBlock,
		RevealBlock:     a.config.RevealBlock(),
		FinalizeBlock:   a.config.FinalizeBlock(),
		HighestBid:      a.state.HighestBid.Clone(),
		HighestBidder:   a.state.HighestBidder,
		Winner:          a.state.Winner,
		ActivationNonce: a.state.ActivationNonce,
		Reveals:         len(a.state.Revealed),
		FinalizedCount:  len(a.state.Finalized),
		Custody:         a.ledger.Balance(a.address),
	}
}

// CommitAddress returns the deposit address for a bid in this auction.
func (a *Auction) CommitAddress(value *uint256.Int, witness common.Hash, bidder common.Address) (common.Address, error) {
	return CommitAddress(a.address, value, witness, bidder)
}

// atomic runs fn against a ledger snapshot and a copy of the state. If fn
// fails, both are restored and the error is returned unchanged; otherwise
// the snapshot is released.
func (a *Auction) atomic(fn func() error) error {
	saved := a.state.clone()
	snap := a.ledger.Snapshot()
	if err := fn(); err != nil {
		a.ledger.RevertToSnapshot(snap)
		a.state = saved
		return err
	}
	a.ledger.DiscardSnapshot(snap)
	return nil
}

// RevealBid opens the caller's commitment. The deposit must hold exactly
// value and must not be activated yet. A value strictly above the current
// highest bid takes the lead; ties keep the earlier bidder.
func (a *Auction) RevealBid(call Call, value *uint256.Int, witness common.Hash) error {
	value = orZero(value)
	return a.atomic(func() error {
		if phase := a.Phase(); phase != PhaseReveal {
			return fmt.Errorf("%w: reveal called in %s phase", ErrPhase, phase)
		}
		if !a.CheckBid(value, witness, call.From) {
			return fmt.Errorf("%w: bidder %s", ErrInvalidCommitment, call.From.Hex())
		}

		a.state.Revealed = append(a.state.Revealed, Reveal{
			Bidder: call.From,
			Value:  value.Clone(),
			Block:  a.ledger.BlockNumber(),
		})
		if value.Gt(a.state.HighestBid) {
			a.state.HighestBid = value.Clone()
			a.state.HighestBidder = call.From
			a.logger.Info("New highest bid", "bidder", call.From, "value", value.Dec())
		} else {
			a.logger.Debug("Bid revealed below leader", "bidder", call.From, "value", value.Dec())
		}
		return nil
	})
}

// checkFinalize applies the checks shared by both finalize operations.
func (a *Auction) checkFinalize(call Call) error {
	if phase := a.Phase(); phase != PhaseFinalize {
		return fmt.Errorf("%w: currently %s", ErrNotFinalizePhase, phase)
	}
	if call.Gas < a.config.FinalizeMinGas {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientBudget, call.Gas, a.config.FinalizeMinGas)
	}
	return nil
}

// FinalizeWinner moves the highest bidder's deposit into the auction's
// custody and records the winner. It returns false without settling when
// the activation search did not finish within the budget; the caller
// retries later.
func (a *Auction) FinalizeWinner(call Call, value *uint256.Int, witness common.Hash) (bool, error) {
	value = orZero(value)
	var done bool
	err := a.atomic(func() error {
		if err := a.checkFinalize(call); err != nil {
			return err
		}
		if call.From != a.state.HighestBidder || !value.Eq(a.state.HighestBid) {
			return fmt.Errorf("%w: %s", ErrNotWinner, call.From.Hex())
		}
		if a.state.Finalized[call.From] {
			return fmt.Errorf("%w: %s", ErrAlreadyFinalized, call.From.Hex())
		}

		var err error
		done, err = a.settle(call, value, witness, a.address)
		if err != nil || !done {
			return err
		}
		a.state.Winner = call.From
		a.logger.Info("Winner finalized", "winner", call.From, "value", value.Dec())
		return nil
	})
	if err != nil {
		return false, err
	}
	return done, nil
}

// FinalizeLoser refunds a deposit that did not win. Bidders that never
// revealed may use it as well.
func (a *Auction) FinalizeLoser(call Call, value *uint256.Int, witness common.Hash) (bool, error) {
	value = orZero(value)
	var done bool
	err := a.atomic(func() error {
		if err := a.checkFinalize(call); err != nil {
			return err
		}
		if call.From == a.state.HighestBidder {
			return fmt.Errorf("%w: %s", ErrWinnerAsLoser, call.From.Hex())
		}
		if a.state.Finalized[call.From] {
			return fmt.Errorf("%w: %s", ErrAlreadyFinalized, call.From.Hex())
		}

		var err error
		done, err = a.settle(call, value, witness, call.From)
		if err != nil || !done {
			return err
		}
		a.logger.Info("Loser refunded", "bidder", call.From)
		return nil
	})
	if err != nil {
		return false, err
	}
	return done, nil
}

// settle activates the caller's commit address with the budget left after
// reserving the forwarding cost, then sweeps the deposit to dest.
func (a *Auction) settle(call Call, value *uint256.Int, witness common.Hash, dest common.Address) (bool, error) {
	budget := call.Gas - a.config.CloneMinGas
	done, addr, err := a.activate(call.From, value, witness, budget)
	if err != nil || !done {
		return false, err
	}

	amount, err := a.ledger.Forward(a.address, addr, dest)
	if err != nil {
		return false, fmt.Errorf("forward deposit at %s: %w", addr.Hex(), err)
	}
	a.state.Finalized[call.From] = true
	a.logger.Debug("Deposit forwarded", "from", addr, "to", dest, "amount", amount.Dec())
	return true, nil
}
