package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/blindauction/api"
)

// JournalEntry is one applied request, stored as a CBOR data item.
type JournalEntry struct {
	Seq     uint64      `cbor:"seq"`
	Time    int64       `cbor:"time"`
	Request api.Request `cbor:"request"`
}

// Journal is an append-only file of CBOR encoded JournalEntry items.
// Replaying it against a fresh engine rebuilds the daemon state.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *cbor.Encoder
	seq  uint64
}

// OpenJournal replays the entries already in path through apply and opens
// the file for appending. It returns the number of entries replayed.
//
// A final entry that was only partly written, as left by a crash or a
// failed append, is cut off. Any other decoding failure is an error.
func OpenJournal(path string, apply func(JournalEntry) error) (*Journal, int, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("open journal: %w", err)
	}

	n, last, size, err := replay(file, apply)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		log.Warn("Truncating torn journal entry", "path", path, "entries", n, "offset", size)
		err = file.Truncate(size)
	}
	if err != nil {
		_ = file.Close()
		return nil, n, err
	}
	if _, err := file.Seek(size, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, n, fmt.Errorf("seek journal: %w", err)
	}

	return &Journal{
		file: file,
		enc:  cbor.NewEncoder(file),
		seq:  last,
	}, n, nil
}

// ReplayJournal decodes entries from r in order and passes each to apply.
// It returns the number of entries and the last sequence number seen.
func ReplayJournal(r io.Reader, apply func(JournalEntry) error) (int, uint64, error) {
	n, last, _, err := replay(r, apply)
	return n, last, err
}

// replay also reports the number of bytes taken by the entries applied.
func replay(r io.Reader, apply func(JournalEntry) error) (int, uint64, int64, error) {
	dec := cbor.NewDecoder(r)
	var (
		n    int
		last uint64
		size int64
	)
	for {
		var entry JournalEntry
		err := dec.Decode(&entry)
		if errors.Is(err, io.EOF) {
			return n, last, size, nil
		}
		if err != nil {
			return n, last, size, fmt.Errorf("decode journal entry %d: %w", n+1, err)
		}
		if entry.Seq <= last {
			return n, last, size, fmt.Errorf("journal entry %d out of order: seq %d after %d", n+1, entry.Seq, last)
		}
		if err := apply(entry); err != nil {
			return n, last, size, fmt.Errorf("apply journal entry %d: %w", entry.Seq, err)
		}
		n++
		last = entry.Seq
		size = int64(dec.NumBytesRead())
	}
}

// Append writes req as the next entry and syncs the file.
func (j *Journal) Append(req api.Request) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := JournalEntry{
		Seq:     j.seq + 1,
		Time:    time.Now().Unix(),
		Request: req,
	}
	if err := j.enc.Encode(entry); err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	j.seq = entry.Seq
	return nil
}

// Seq returns the sequence number of the last entry.
func (j *Journal) Seq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
