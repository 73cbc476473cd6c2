// Package chain provides an in-memory ledger the auction engine can run
// against: accounts with balances, code and creation nonces, a block
// counter and journalled snapshots.
package chain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonceMismatch       = errors.New("nonce mismatch")
	ErrCodeExists          = errors.New("code already deployed at address")
	ErrNoForwarder         = errors.New("no forwarder at address")
	ErrNotDeployer         = errors.New("caller is not the forwarder deployer")
	ErrForwarderSpent      = errors.New("forwarder already spent")
	ErrUnknownSnapshot     = errors.New("unknown snapshot")
)

type account struct {
	balance  *uint256.Int
	nonce    uint64
	code     []byte
	deployer common.Address
	spent    bool
}

func (a *account) copy() *account {
	cp := *a
	cp.balance = a.balance.Clone()
	return &cp
}

// Memory is a single-writer in-memory ledger. Every mutation is recorded in
// a journal so that Snapshot/RevertToSnapshot can undo it, the way a
// StateDB reverts a failed message.
type Memory struct {
	accounts map[common.Address]*account
	height   uint64

	journal   []func()
	snapshots []int
}

// NewMemory creates an empty ledger at the given block height.
func NewMemory(height uint64) *Memory {
	return &Memory{
		accounts: make(map[common.Address]*account),
		height:   height,
	}
}

func (m *Memory) get(addr common.Address) *account {
	if acc, ok := m.accounts[addr]; ok {
		return acc
	}
	return nil
}

// mutate returns the account for addr, creating it if needed, after
// journalling its previous state. Nothing is journalled while no snapshot
// is open.
func (m *Memory) mutate(addr common.Address) *account {
	prev, existed := m.accounts[addr]
	journal := len(m.snapshots) > 0
	if existed {
		if journal {
			saved := prev.copy()
			m.journal = append(m.journal, func() { m.accounts[addr] = saved })
		}
		return prev
	}
	if journal {
		m.journal = append(m.journal, func() { delete(m.accounts, addr) })
	}
	acc := &account{balance: new(uint256.Int)}
	m.accounts[addr] = acc
	return acc
}

// BlockNumber returns the current block height.
func (m *Memory) BlockNumber() uint64 {
	return m.height
}

// Mine advances the block height by n blocks. Sealing a block commits
// the pending changes, so earlier snapshots can no longer be reverted.
func (m *Memory) Mine(n uint64) uint64 {
	m.Commit()
	m.height += n
	return m.height
}

// Commit drops the undo journal and every outstanding snapshot.
func (m *Memory) Commit() {
	m.journal = nil
	m.snapshots = nil
}

// Balance returns a copy of the balance of addr.
func (m *Memory) Balance(addr common.Address) *uint256.Int {
	if acc := m.get(addr); acc != nil {
		return acc.balance.Clone()
	}
	return new(uint256.Int)
}

// HasCode reports whether code is deployed at addr.
func (m *Memory) HasCode(addr common.Address) bool {
	acc := m.get(addr)
	return acc != nil && len(acc.code) > 0
}

// Code returns the code deployed at addr, or nil.
func (m *Memory) Code(addr common.Address) []byte {
	if acc := m.get(addr); acc != nil {
		return bytes.Clone(acc.code)
	}
	return nil
}

// Nonce returns the next creation nonce of addr.
func (m *Memory) Nonce(addr common.Address) uint64 {
	if acc := m.get(addr); acc != nil {
		return acc.nonce
	}
	return 0
}

// Credit mints amount into addr (genesis allocation / faucet).
func (m *Memory) Credit(addr common.Address, amount *uint256.Int) {
	acc := m.mutate(addr)
	acc.balance = new(uint256.Int).Add(acc.balance, amount)
}

// Transfer moves amount from one account to another.
func (m *Memory) Transfer(from, to common.Address, amount *uint256.Int) error {
	src := m.get(from)
	if src == nil || src.balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), m.Balance(from).Dec(), amount.Dec())
	}
	src = m.mutate(from)
	src.balance = new(uint256.Int).Sub(src.balance, amount)
	dst := m.mutate(to)
	dst.balance = new(uint256.Int).Add(dst.balance, amount)
	return nil
}

// Deploy places code at the CREATE address of (deployer, nonce). The nonce
// must be the deployer's next nonce. Any balance already held by the
// target address is kept.
func (m *Memory) Deploy(deployer common.Address, nonce uint64, code []byte) (common.Address, error) {
	if want := m.Nonce(deployer); nonce != want {
		return common.Address{}, fmt.Errorf("%w: deployer %s at %d, got %d", ErrNonceMismatch, deployer.Hex(), want, nonce)
	}
	addr := crypto.CreateAddress(deployer, nonce)
	if m.HasCode(addr) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrCodeExists, addr.Hex())
	}

	m.mutate(deployer).nonce++

	acc := m.mutate(addr)
	acc.code = bytes.Clone(code)
	acc.deployer = deployer
	acc.spent = false
	return addr, nil
}

// Forward sweeps the whole balance of forwarder to dest. Only
// the deployer may invoke a forwarder, and only once.
func (m *Memory) Forward(caller, forwarder, dest common.Address) (*uint256.Int, error) {
	acc := m.get(forwarder)
	if acc == nil || len(acc.code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoForwarder, forwarder.Hex())
	}
	if acc.deployer != caller {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployer, caller.Hex())
	}
	if acc.spent {
		return nil, fmt.Errorf("%w: %s", ErrForwarderSpent, forwarder.Hex())
	}

	amount := acc.balance.Clone()
	src := m.mutate(forwarder)
	src.balance = new(uint256.Int)
	src.spent = true
	dst := m.mutate(dest)
	dst.balance = new(uint256.Int).Add(dst.balance, amount)
	return amount, nil
}

// Snapshot returns an identifier of the current state.
func (m *Memory) Snapshot() int {
	m.snapshots = append(m.snapshots, len(m.journal))
	return len(m.snapshots) - 1
}

// RevertToSnapshot undoes every change made since the snapshot was taken.
// Later snapshots are invalidated.
func (m *Memory) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		panic(fmt.Sprintf("%v: %d", ErrUnknownSnapshot, id))
	}
	mark := m.snapshots[id]
	for i := len(m.journal) - 1; i >= mark; i-- {
		m.journal[i]()
	}
	m.journal = m.journal[:mark]
	m.snapshots = m.snapshots[:id]
}

// DiscardSnapshot keeps the changes made since the snapshot and forgets it
// together with every later snapshot. Once no snapshot is left the undo
// journal is dropped.
func (m *Memory) DiscardSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		panic(fmt.Sprintf("%v: %d", ErrUnknownSnapshot, id))
	}
	m.snapshots = m.snapshots[:id]
	if len(m.snapshots) == 0 {
		m.journal = nil
	}
}
