package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestRankReveals(t *testing.T) {
	reveals := []Reveal{
		{Bidder: bidderA, Value: wei(250), Block: 14},
		{Bidder: bidderB, Value: wei(225), Block: 14},
		{Bidder: bidderC, Value: wei(275), Block: 15},
	}

	result := RankReveals(reveals)

	check.Equal(t, []common.Address{bidderC, bidderA, bidderB}, result.Sorted)
	check.Equal(t, 1, result.Ranks[bidderC])
	check.Equal(t, 2, result.Ranks[bidderA])
	check.Equal(t, 3, result.Ranks[bidderB])
	check.Equal(t, uint64(275), result.Best[bidderC].Value.Uint64())
}

func TestRankReveals_Empty(t *testing.T) {
	result := RankReveals(nil)

	check.NotNil(t, result)
	check.Equal(t, 0, len(result.Sorted))
	check.Equal(t, 0, len(result.Ranks))
	check.Equal(t, 0, len(result.Best))
}

func TestRankReveals_KeepsBestPerBidder(t *testing.T) {
	reveals := []Reveal{
		{Bidder: bidderA, Value: wei(5), Block: 14},
		{Bidder: bidderB, Value: wei(7), Block: 14},
		{Bidder: bidderA, Value: wei(9), Block: 15},
		{Bidder: bidderA, Value: wei(1), Block: 16},
	}

	result := RankReveals(reveals)

	check.Equal(t, []common.Address{bidderA, bidderB}, result.Sorted)
	check.Equal(t, uint64(9), result.Best[bidderA].Value.Uint64())
	check.Equal(t, uint64(15), result.Best[bidderA].Block)
}

func TestRankReveals_TiesKeepRevealOrder(t *testing.T) {
	reveals := []Reveal{
		{Bidder: bidderA, Value: wei(5)},
		{Bidder: bidderB, Value: wei(7)},
		{Bidder: bidderC, Value: wei(7)},
		// A reaches 7 after B and C
		{Bidder: bidderA, Value: wei(7)},
	}

	for i := 0; i < 10; i++ {
		result := RankReveals(reveals)
		check.Equal(t, []common.Address{bidderB, bidderC, bidderA}, result.Sorted)
	}
}

func TestAuction_RankingMatchesLeader(t *testing.T) {
	a, ledger := newTestAuction(t)
	for _, bid := range []sealedBid{bidA, bidB, bidC} {
		deposit(t, a, ledger, bid.bidder, bid.value, bid.witness)
	}
	mineTo(t, ledger, a.Config().RevealBlock())
	for _, bid := range []sealedBid{bidA, bidB, bidC} {
		assert.NoError(t, a.RevealBid(Call{From: bid.bidder}, bid.value, bid.witness))
	}

	ranking := a.Ranking()
	check.Equal(t, []common.Address{bidderB, bidderC, bidderA}, ranking.Sorted)
	check.Equal(t, a.HighestBidder(), ranking.Sorted[0])

	reveals := a.Reveals()
	check.Equal(t, 3, len(reveals))
	check.Equal(t, bidderA, reveals[0].Bidder)
	check.Equal(t, a.Config().RevealBlock(), reveals[0].Block)

	// Returned reveals are copies
	reveals[0].Value.SetUint64(1)
	check.Equal(t, bidA.value.Dec(), a.Reveals()[0].Value.Dec())
}
