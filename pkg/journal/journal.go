// Package journal — append-only record of escrow fund movements.
//
//   - One entry per deposit or disbursement
//   - Each entry is hash-chained to its predecessor
//   - Append-only; no deletions or mutations
package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
)

// EntryKind categorizes a fund movement.
type EntryKind string

const (
	KindDeposit  EntryKind = "DEPOSIT"
	KindDisburse EntryKind = "DISBURSE"
)

// Entry is an immutable, hash-chained record of one fund movement.
type Entry struct {
	Sequence    uint64    `json:"sequence"`
	Kind        EntryKind `json:"kind"`
	Escrow      string    `json:"escrow"`
	Party       string    `json:"party"`
	AmountMicro int64     `json:"amount_micro"`
	TxRef       string    `json:"tx_ref"`
	ContentHash string    `json:"content_hash"`
	PrevHash    string    `json:"prev_hash"`
	Timestamp   time.Time `json:"timestamp"`
}

// Journal is an append-only, hash-chained movement log.
type Journal struct {
	mu       sync.RWMutex
	entries  []Entry
	headHash string
	clock    func() time.Time
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{
		entries:  make([]Entry, 0),
		headHash: "genesis",
		clock:    time.Now,
	}
}

// WithClock overrides clock for testing.
func (j *Journal) WithClock(clock func() time.Time) *Journal {
	j.clock = clock
	return j
}

type hashInput struct {
	Seq      uint64 `json:"seq"`
	Kind     string `json:"kind"`
	Escrow   string `json:"escrow"`
	Party    string `json:"party"`
	Amount   int64  `json:"amount"`
	TxRef    string `json:"tx_ref"`
	PrevHash string `json:"prev"`
}

func contentHash(in hashInput) (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry: %w", err)
	}
	// Canonicalize so the hash is stable across encoders.
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize entry: %w", err)
	}
	h := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// Append records a movement. Returns the sequence number.
func (j *Journal) Append(kind EntryKind, escrow, party string, amountMicro int64, txRef string) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	seq := uint64(len(j.entries)) + 1
	hash, err := contentHash(hashInput{
		Seq: seq, Kind: string(kind), Escrow: escrow, Party: party,
		Amount: amountMicro, TxRef: txRef, PrevHash: j.headHash,
	})
	if err != nil {
		return 0, err
	}

	j.entries = append(j.entries, Entry{
		Sequence:    seq,
		Kind:        kind,
		Escrow:      escrow,
		Party:       party,
		AmountMicro: amountMicro,
		TxRef:       txRef,
		ContentHash: hash,
		PrevHash:    j.headHash,
		Timestamp:   j.clock(),
	})
	j.headHash = hash
	return seq, nil
}

// Get retrieves an entry by sequence number.
func (j *Journal) Get(seq uint64) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if seq == 0 || seq > uint64(len(j.entries)) {
		return nil, fmt.Errorf("entry %d not found", seq)
	}
	entry := j.entries[seq-1]
	return &entry, nil
}

// Head returns the current head hash.
func (j *Journal) Head() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.headHash
}

// Length returns the number of entries.
func (j *Journal) Length() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Verify checks the integrity of the entire chain.
func (j *Journal) Verify() (bool, string) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	prevHash := "genesis"
	for i, e := range j.entries {
		if e.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prevHash, e.PrevHash)
		}
		computed, err := contentHash(hashInput{
			Seq: e.Sequence, Kind: string(e.Kind), Escrow: e.Escrow, Party: e.Party,
			Amount: e.AmountMicro, TxRef: e.TxRef, PrevHash: e.PrevHash,
		})
		if err != nil {
			return false, fmt.Sprintf("failed to hash entry %d", i+1)
		}
		if computed != e.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prevHash = e.ContentHash
	}
	return true, "chain verified"
}
