package core

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Ranking orders the bidders that revealed by their best revealed value.
type Ranking struct {
	// Ranks maps a bidder to its 1-based position
	Ranks map[common.Address]int `json:"ranks"`

	// Best holds the highest reveal of every bidder
	Best map[common.Address]Reveal `json:"best"`

	// Sorted lists bidders from highest to lowest
	Sorted []common.Address `json:"sorted"`
}

// RankReveals keeps the highest reveal per bidder and sorts bidders by it,
// highest first. Equal values keep reveal order, so the first bidder to
// reveal a value ranks above later bidders revealing the same value. This
// matches how the auction picks its leader.
func RankReveals(reveals []Reveal) *Ranking {
	result := &Ranking{
		Ranks:  make(map[common.Address]int),
		Best:   make(map[common.Address]Reveal),
		Sorted: make([]common.Address, 0),
	}
	if len(reveals) == 0 {
		return result
	}

	// Highest reveal per bidder, ordered by the bidder's first reveal that
	// reached that value
	type entry struct {
		bidder common.Address
		reveal Reveal
		order  int
	}
	best := make(map[common.Address]*entry)
	for i, r := range reveals {
		existing, ok := best[r.Bidder]
		if !ok || r.Value.Gt(existing.reveal.Value) {
			best[r.Bidder] = &entry{bidder: r.Bidder, reveal: r, order: i}
		}
	}

	entries := make([]*entry, 0, len(best))
	for _, e := range best {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if cmp := entries[i].reveal.Value.Cmp(entries[j].reveal.Value); cmp != 0 {
			return cmp > 0
		}
		return entries[i].order < entries[j].order
	})

	for rank, e := range entries {
		result.Ranks[e.bidder] = rank + 1
		result.Best[e.bidder] = e.reveal
		result.Sorted = append(result.Sorted, e.bidder)
	}
	return result
}

// Ranking ranks the reveals accepted so far.
func (a *Auction) Ranking() *Ranking {
	return RankReveals(a.state.Revealed)
}

// Reveals returns the accepted reveals in order.
func (a *Auction) Reveals() []Reveal {
	out := make([]Reveal, len(a.state.Revealed))
	for i, r := range a.state.Revealed {
		out[i] = Reveal{Bidder: r.Bidder, Value: r.Value.Clone(), Block: r.Block}
	}
	return out
}
