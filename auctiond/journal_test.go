package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/blindauction/api"
)

func TestJournal_ReplayRebuildsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auction.journal")

	live, _ := newTestEngine(t)
	journal, _, err := OpenJournal(path, func(JournalEntry) error { return nil })
	assert.NoError(t, err)

	reqs := append(commitPhaseRequests(),
		api.Request{Type: api.TypeRevealBid, From: bidderB, Value: "0.007", Witness: witnessB},
		api.Request{Type: api.TypeRevealBid, From: bidderA, Value: "0.005", Witness: witnessA},
		api.Request{Type: api.TypeMine, Blocks: 10},
		api.Request{Type: api.TypeFinalizeLoser, From: bidderA, Value: "0.005", Witness: witnessA, Gas: 2_000_000},
	)
	for _, req := range reqs {
		mustHandle(t, live, req)
		assert.NoError(t, journal.Append(req))
	}
	check.Equal(t, uint64(len(reqs)), journal.Seq())
	assert.NoError(t, journal.Close())

	restored, err := NewEngine(testConfig(), nil, nil)
	assert.NoError(t, err)
	reopened, n, err := OpenJournal(path, func(entry JournalEntry) error {
		return restored.Replay(entry.Request)
	})
	assert.NoError(t, err)
	defer reopened.Close()

	check.Equal(t, len(reqs), n)
	check.Equal(t, uint64(len(reqs)), reopened.Seq())

	want := api.NewStatusView(live.auction)
	got := api.NewStatusView(restored.auction)
	check.Equal(t, want.StatusHash, got.StatusHash)
	check.Equal(t, want.RevealsHash, got.RevealsHash)
	check.Equal(t, live.ledger.Balance(bidderA), restored.ledger.Balance(bidderA))

	// Appends continue the sequence after a reopen
	assert.NoError(t, reopened.Append(api.Request{Type: api.TypeMine, Blocks: 1}))
	check.Equal(t, uint64(len(reqs)+1), reopened.Seq())
}

func TestJournal_EmptyFile(t *testing.T) {
	n, last, err := ReplayJournal(bytes.NewReader(nil), func(JournalEntry) error {
		t.Fatal("apply called on empty journal")
		return nil
	})
	assert.NoError(t, err)
	check.Equal(t, 0, n)
	check.Equal(t, uint64(0), last)
}

func TestJournal_OutOfOrder(t *testing.T) {
	var buf bytes.Buffer
	enc := cbor.NewEncoder(&buf)
	for _, seq := range []uint64{1, 2, 2} {
		assert.NoError(t, enc.Encode(JournalEntry{Seq: seq, Request: api.Request{Type: api.TypeMine, Blocks: 1}}))
	}

	n, last, err := ReplayJournal(&buf, func(JournalEntry) error { return nil })
	check.Error(t, err)
	check.Equal(t, 2, n)
	check.Equal(t, uint64(2), last)
}

func TestJournal_ApplyFailureStopsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auction.journal")
	journal, _, err := OpenJournal(path, func(JournalEntry) error { return nil })
	assert.NoError(t, err)
	// Revealing before anything was deposited cannot be replayed
	assert.NoError(t, journal.Append(api.Request{Type: api.TypeRevealBid, From: bidderA, Value: "0.005", Witness: witnessA}))
	assert.NoError(t, journal.Close())

	e, err := NewEngine(testConfig(), nil, nil)
	assert.NoError(t, err)
	_, _, err = OpenJournal(path, func(entry JournalEntry) error {
		return e.Replay(entry.Request)
	})
	check.Error(t, err)
}

func TestJournal_CorruptTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auction.journal")
	journal, _, err := OpenJournal(path, func(JournalEntry) error { return nil })
	assert.NoError(t, err)
	assert.NoError(t, journal.Append(api.Request{Type: api.TypeMine, Blocks: 1}))
	assert.NoError(t, journal.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	assert.NoError(t, err)
	_, err = f.Write([]byte{0xa3, 0x63})
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	n, _, err := ReplayJournal(mustOpen(t, path), func(JournalEntry) error { return nil })
	check.Error(t, err)
	check.Equal(t, 1, n)
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestJournal_OpenTruncatesTornEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auction.journal")
	journal, _, err := OpenJournal(path, func(JournalEntry) error { return nil })
	assert.NoError(t, err)
	assert.NoError(t, journal.Append(api.Request{Type: api.TypeMine, Blocks: 1}))
	assert.NoError(t, journal.Close())

	info, err := os.Stat(path)
	assert.NoError(t, err)
	intact := info.Size()

	// The first bytes of a second entry, as left by a crash mid-write
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	assert.NoError(t, err)
	_, err = f.Write([]byte{0xa3, 0x63})
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	e, err := NewEngine(testConfig(), nil, nil)
	assert.NoError(t, err)
	reopened, n, err := OpenJournal(path, func(entry JournalEntry) error {
		return e.Replay(entry.Request)
	})
	assert.NoError(t, err)
	check.Equal(t, 1, n)
	check.Equal(t, uint64(1), reopened.Seq())
	check.Equal(t, uint64(4), e.ledger.BlockNumber())

	info, err = os.Stat(path)
	assert.NoError(t, err)
	check.Equal(t, intact, info.Size())

	assert.NoError(t, reopened.Append(api.Request{Type: api.TypeMine, Blocks: 2}))
	assert.NoError(t, reopened.Close())

	n, last, err := ReplayJournal(mustOpen(t, path), func(JournalEntry) error { return nil })
	assert.NoError(t, err)
	check.Equal(t, 2, n)
	check.Equal(t, uint64(2), last)
}

func TestJournal_OpenRejectsMalformedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auction.journal")
	journal, _, err := OpenJournal(path, func(JournalEntry) error { return nil })
	assert.NoError(t, err)
	assert.NoError(t, journal.Append(api.Request{Type: api.TypeMine, Blocks: 1}))
	assert.NoError(t, journal.Close())

	// A lone break code is not a partial entry
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	assert.NoError(t, err)
	_, err = f.Write([]byte{0xff})
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	_, _, err = OpenJournal(path, func(JournalEntry) error { return nil })
	check.Error(t, err)
}
