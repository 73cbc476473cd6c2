package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ForwarderCode returns the runtime code placed at activated commit
// addresses of the auction at owner:
//
//	CALLER PUSH20 owner EQ PUSH1 0x1b JUMPI INVALID
//	JUMPDEST PUSH1 0 CALLDATALOAD SELFDESTRUCT
//
// Only owner may invoke it; the whole balance is swept to the address in
// the first calldata word and the account is inert afterwards.
func ForwarderCode(owner common.Address) []byte {
	code := make([]byte, 0, 32)
	code = append(code, 0x33, 0x73)
	code = append(code, owner[:]...)
	code = append(code, 0x14, 0x60, 0x1b, 0x57, 0xfe, 0x5b, 0x60, 0x00, 0x35, 0xff)
	return code
}

// Ledger is the runtime the auction executes against. It supplies block
// height, balances, code probes, deterministic deployment and value
// transfer out of forwarders.
//
// Implementations need not be safe for concurrent use; the auction is
// driven by a single writer.
type Ledger interface {
	// BlockNumber returns the current block height.
	BlockNumber() uint64

	// Balance returns the balance of addr. The result must not be modified.
	Balance(addr common.Address) *uint256.Int

	// HasCode reports whether addr hosts deployed code.
	HasCode(addr common.Address) bool

	// Nonce returns the next sequence number deployer will create at.
	Nonce(deployer common.Address) uint64

	// Deploy places code at the address derived from (deployer, nonce).
	// nonce must equal Nonce(deployer); the deployer nonce is advanced.
	Deploy(deployer common.Address, nonce uint64, code []byte) (common.Address, error)

	// Forward invokes the forwarder at addr on behalf of caller, moving its
	// whole balance to dest. It returns the amount moved.
	Forward(caller, forwarder, dest common.Address) (*uint256.Int, error)

	// Snapshot returns an identifier for the current ledger state.
	Snapshot() int

	// RevertToSnapshot discards every change made after the snapshot.
	RevertToSnapshot(id int)

	// DiscardSnapshot keeps every change made after the snapshot and
	// releases it. Later snapshots are released as well.
	DiscardSnapshot(id int)
}
