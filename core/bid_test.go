package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestCheckBid(t *testing.T) {
	a, ledger := newTestAuction(t)
	value := wei(1)
	w := common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	wMinusOne := common.HexToHash("0xfffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffe")

	// Nothing deposited yet
	check.False(t, a.CheckBid(value, w, bidderA))

	deposit(t, a, ledger, bidderA, value, w)

	check.True(t, a.CheckBid(value, w, bidderA))
	check.False(t, a.CheckBid(wei(2), w, bidderA))
	check.False(t, a.CheckBid(value, wMinusOne, bidderA))
	check.False(t, a.CheckBid(value, w, bidderB))
}

func TestCheckBid_BalanceMustMatchExactly(t *testing.T) {
	a, ledger := newTestAuction(t)
	w := witness(42)

	addr := deposit(t, a, ledger, bidderA, wei(100), w)
	check.True(t, a.CheckBid(wei(100), w, bidderA))

	// Topping up breaks the exact match
	assert.NoError(t, ledger.Transfer(bidderB, addr, wei(1)))
	check.False(t, a.CheckBid(wei(100), w, bidderA))
}

func TestCheckBid_ZeroOrNilValue(t *testing.T) {
	a, _ := newTestAuction(t)

	check.False(t, a.CheckBid(nil, witness(1), bidderA))
	check.False(t, a.CheckBid(wei(0), witness(1), bidderA))
}

func TestCheckBid_FalseOnceActivated(t *testing.T) {
	a, ledger := newTestAuction(t)
	value := wei(937)
	w := witness(11)

	addr := deposit(t, a, ledger, bidderA, value, w)
	check.True(t, a.CheckBid(value, w, bidderA))
	check.False(t, a.IsActive(addr))

	mineTo(t, ledger, a.Config().FinalizeBlock())
	done, activated, err := a.Activate(Call{From: bidderA, Gas: 10_000_000}, value, w)
	assert.NoError(t, err)
	check.True(t, done)
	check.Equal(t, addr, activated)

	check.True(t, a.IsActive(addr))
	check.False(t, a.CheckBid(value, w, bidderA))
}

func TestIsActive(t *testing.T) {
	a, ledger := newTestAuction(t)

	// Externally owned accounts and the auction itself host no code
	check.False(t, a.IsActive(bidderA))
	check.False(t, a.IsActive(common.HexToAddress("0xEA674fdDe714fd979de3EdF0F56AA9716B898ec8")))
	check.False(t, a.IsActive(a.Address()))

	addr, err := ledger.Deploy(a.Address(), 0, ForwarderCode(a.Address()))
	assert.NoError(t, err)
	check.True(t, a.IsActive(addr))
}

func TestCheckBid_HasNoSideEffects(t *testing.T) {
	a, ledger := newTestAuction(t)
	value := wei(1000)
	w := witness(99)
	addr := deposit(t, a, ledger, bidderA, value, w)

	before := a.Status()
	for i := 0; i < 3; i++ {
		check.True(t, a.CheckBid(value, w, bidderA))
		check.False(t, a.CheckBid(value, w, bidderC))
	}
	after := a.Status()

	check.Equal(t, before.ActivationNonce, after.ActivationNonce)
	check.Equal(t, before.Reveals, after.Reveals)
	check.Equal(t, value.Dec(), ledger.Balance(addr).Dec())
	check.False(t, a.IsActive(addr))
}
