package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/peterldowns/testy/assert"

	"github.com/cloudx-io/blindauction/chain"
)

var (
	auctionAddr = common.HexToAddress("0xEA674fdDe714fd979de3EdF0F56AA9716B898ec8")

	bidderA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	bidderB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	bidderC = common.HexToAddress("0x000000000000000000000000000000000000000c")

	// oneEther is credited to every test bidder
	oneEther = uint256.NewInt(1_000_000_000_000_000_000)
)

// genesisHeight mirrors a chain where a couple of blocks were mined before
// the auction was created.
const genesisHeight = 3

func wei(v uint64) *uint256.Int { return uint256.NewInt(v) }

func witness(v int64) common.Hash { return common.BigToHash(big.NewInt(v)) }

// newTestAuction creates an auction with the default config on a fresh
// in-memory ledger, with bidders A, B and C funded.
func newTestAuction(t *testing.T) (*Auction, *chain.Memory) {
	t.Helper()
	ledger := chain.NewMemory(genesisHeight)
	for _, bidder := range []common.Address{bidderA, bidderB, bidderC} {
		ledger.Credit(bidder, oneEther)
	}
	ledger.Commit()

	auction, err := NewAuction(auctionAddr, DefaultConfig(), ledger, nil)
	assert.NoError(t, err)
	return auction, ledger
}

// deposit sends value from bidder to its commit address and returns it.
func deposit(t *testing.T, a *Auction, ledger *chain.Memory, bidder common.Address, value *uint256.Int, w common.Hash) common.Address {
	t.Helper()
	addr, err := a.CommitAddress(value, w, bidder)
	assert.NoError(t, err)
	assert.NoError(t, ledger.Transfer(bidder, addr, value))
	return addr
}

// mineTo advances the ledger to height.
func mineTo(t *testing.T, ledger *chain.Memory, height uint64) {
	t.Helper()
	current := ledger.BlockNumber()
	assert.True(t, height >= current)
	ledger.Mine(height - current)
}

// finalizeUntilDone repeats a finalize call, mining a block between
// attempts, and returns the number of calls it took.
func finalizeUntilDone(t *testing.T, ledger *chain.Memory, maxCalls int, finalize func() (bool, error)) int {
	t.Helper()
	for i := 1; i <= maxCalls; i++ {
		done, err := finalize()
		assert.NoError(t, err)
		ledger.Mine(1)
		if done {
			return i
		}
	}
	t.Fatalf("finalize did not complete within %d calls", maxCalls)
	return 0
}
