package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Config holds the auction parameters fixed at construction.
type Config struct {
	// CommitWindowBlocks is the length of the commit phase in blocks
	CommitWindowBlocks uint64 `json:"commit_window_blocks"`

	// RevealWindowBlocks is the length of the reveal phase in blocks
	RevealWindowBlocks uint64 `json:"reveal_window_blocks"`

	// StartBlock is the height at which the commit window opens.
	// Zero means "the height at which the auction is created".
	StartBlock uint64 `json:"start_block"`

	// CloneMinGas is the budget consumed by one forwarder deployment attempt
	CloneMinGas uint64 `json:"clone_min_gas"`

	// FinalizeMinGas is the minimum budget accepted by the finalize operations
	FinalizeMinGas uint64 `json:"finalize_min_gas"`
}

// DefaultConfig returns the parameters used when none are supplied.
func DefaultConfig() Config {
	return Config{
		CommitWindowBlocks: 10,
		RevealWindowBlocks: 10,
		CloneMinGas:        50_000,
		FinalizeMinGas:     400_000,
	}
}

// Validate checks the window lengths and the budget relation
// FinalizeMinGas > 5 * CloneMinGas.
func (c Config) Validate() error {
	if c.CommitWindowBlocks == 0 {
		return fmt.Errorf("%w: commit window must be positive", ErrInvalidConfig)
	}
	if c.RevealWindowBlocks == 0 {
		return fmt.Errorf("%w: reveal window must be positive", ErrInvalidConfig)
	}
	if c.CloneMinGas == 0 {
		return fmt.Errorf("%w: clone gas must be positive", ErrInvalidConfig)
	}
	if c.FinalizeMinGas <= 5*c.CloneMinGas {
		return fmt.Errorf("%w: finalize gas %d must exceed 5 x clone gas %d",
			ErrInvalidConfig, c.FinalizeMinGas, c.CloneMinGas)
	}
	return nil
}

// RevealBlock returns the first block of the reveal phase.
func (c Config) RevealBlock() uint64 {
	return c.StartBlock + c.CommitWindowBlocks
}

// FinalizeBlock returns the first block of the finalize phase.
func (c Config) FinalizeBlock() uint64 {
	return c.StartBlock + c.CommitWindowBlocks + c.RevealWindowBlocks
}

// Phase is the stage of the auction at a given block height.
type Phase int

const (
	// PhasePending is reported for heights before the start block
	PhasePending Phase = iota
	PhaseCommit
	PhaseReveal
	PhaseFinalize
)

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name produced by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for candidate := PhasePending; candidate <= PhaseFinalize; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseCommit:
		return "commit"
	case PhaseReveal:
		return "reveal"
	case PhaseFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PhaseAt maps a block height onto the auction schedule.
func (c Config) PhaseAt(height uint64) Phase {
	switch {
	case height < c.StartBlock:
		return PhasePending
	case height < c.RevealBlock():
		return PhaseCommit
	case height < c.FinalizeBlock():
		return PhaseReveal
	default:
		return PhaseFinalize
	}
}

// State is the mutable part of an auction. It is only changed through the
// Auction operations.
type State struct {
	HighestBid      *uint256.Int
	HighestBidder   common.Address
	Winner          common.Address
	ActivationNonce uint64
	Finalized       map[common.Address]bool
	Revealed        []Reveal
}

// Reveal records an accepted reveal.
type Reveal struct {
	Bidder common.Address `json:"bidder"`
	Value  *uint256.Int   `json:"value"`
	Block  uint64         `json:"block"`
}

func newState() *State {
	return &State{
		HighestBid: new(uint256.Int),
		Finalized:  make(map[common.Address]bool),
	}
}

// clone returns a deep copy used to roll back a failed operation.
func (s *State) clone() *State {
	finalized := make(map[common.Address]bool, len(s.Finalized))
	for addr := range s.Finalized {
		finalized[addr] = true
	}
	return &State{
		HighestBid:      s.HighestBid.Clone(),
		HighestBidder:   s.HighestBidder,
		Winner:          s.Winner,
		ActivationNonce: s.ActivationNonce,
		Finalized:       finalized,
		Revealed:        append([]Reveal(nil), s.Revealed...),
	}
}

// Call carries the identity of the caller and the compute budget attached
// to a state-changing operation.
type Call struct {
	From common.Address
	Gas  uint64
}

// Status is a read-only snapshot of an auction.
type Status struct {
	Address         common.Address `json:"address"`
	Phase           Phase          `json:"phase"`
	BlockNumber     uint64         `json:"block_number"`
	StartBlock      uint64         `json:"start_block"`
	RevealBlock     uint64         `json:"reveal_block"`
	FinalizeBlock   uint64         `json:"finalize_block"`
	HighestBid      *uint256.Int   `json:"highest_bid"`
	HighestBidder   common.Address `json:"highest_bidder"`
	Winner          common.Address `json:"winner"`
	ActivationNonce uint64         `json:"activation_nonce"`
	Reveals         int            `json:"reveals"`
	FinalizedCount  int            `json:"finalized_count"`
	Custody         *uint256.Int   `json:"custody"`
}
