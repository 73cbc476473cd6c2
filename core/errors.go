package core

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid auction config")

	// ErrSequenceOutOfRange is returned for sequence numbers that do not fit
	// the single-byte nonce slot of the derivation rule.
	ErrSequenceOutOfRange = errors.New("sequence number out of range")

	ErrInvalidCommitment  = errors.New("invalid or unfunded commitment")
	ErrPhase              = errors.New("phase violation")
	ErrNotFinalizePhase   = errors.New("not yet in finalize phase")
	ErrNotWinner          = errors.New("not the recorded winner")
	ErrWinnerAsLoser      = errors.New("winner cannot finalize as loser")
	ErrAlreadyFinalized   = errors.New("already finalized")
	ErrInsufficientBudget = errors.New("insufficient budget")
)
