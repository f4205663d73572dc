package papergen

import (
	"context"
	"sync"
	"time"
)

// Ledger is the persistent set of fingerprints of every question ever
// accepted. It is the only state shared between concurrently generating
// cells.
//
// Record is the atomic check-then-act: it inserts the fingerprint and reports
// whether it was newly recorded. A false return means some earlier run or a
// racing cell already owns it, and the candidate must be discarded. Entries
// are never overwritten.
type Ledger interface {
	Seen(ctx context.Context, fp Fingerprint) (bool, error)
	Record(ctx context.Context, fp Fingerprint, questionID string) (bool, error)
}

// LedgerEntry is what the ledger keeps per fingerprint.
type LedgerEntry struct {
	QuestionID string    `json:"question_id"`
	FirstSeen  time.Time `json:"first_seen"`
}

// MemoryLedger is an in-process Ledger. Useful for tests and for one-off runs
// where cross-run dedup is deliberately disabled; production runs use the
// sqlite-backed ledger on DB.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[Fingerprint]LedgerEntry
}

// NewMemoryLedger creates an empty in-process ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[Fingerprint]LedgerEntry)}
}

// Seen reports whether the fingerprint has been recorded.
func (l *MemoryLedger) Seen(_ context.Context, fp Fingerprint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[fp]
	return ok, nil
}

// Record inserts the fingerprint if absent and reports whether it was new.
func (l *MemoryLedger) Record(_ context.Context, fp Fingerprint, questionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[fp]; ok {
		return false, nil
	}
	l.entries[fp] = LedgerEntry{QuestionID: questionID, FirstSeen: time.Now()}
	return true, nil
}

// Len returns the number of recorded fingerprints.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
