// Package ledger records per-file upload attempts so an interrupted or
// partially failed batch can be resumed with exactly the files that failed.
//
// Entry lifecycle: pending -> success (terminal) or pending -> failed
// (retryable). Attempts only grow until the ledger is removed.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"promo-pipelines/types"
)

// TimeLayout formats ledger timestamps
const TimeLayout = "2006-01-02 15:04:05"

// ErrNotPersisted wraps a store failure after the in-memory state was updated
var ErrNotPersisted = errors.New("ledger update not persisted")

const defaultFailure = "submission failed"

// Status of one file's upload
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is the ledger record for one generated file
type Entry struct {
	Status      Status             `json:"status"`
	Attempts    int                `json:"attempts"`
	LastAttempt string             `json:"last_attempt,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	Kind        types.CampaignKind `json:"type"`
	UploadedAt  string             `json:"uploaded_at,omitempty"`
	Sheet       string             `json:"sheet,omitempty"` // source tab, stamped after a resume
}

// Document is the persisted ledger layout
type Document struct {
	LastUpdated string            `json:"last_updated"`
	Files       map[string]*Entry `json:"files"`
}

// FileRef names a file about to be submitted
type FileRef struct {
	Name  string
	Kind  types.CampaignKind
	Sheet string
}

// Ledger is the write-through upload status state machine
type Ledger struct {
	mu    sync.Mutex
	store Store
	doc   *Document
	now   func() time.Time
}

// Open loads the ledger from store, starting empty when none exists
func Open(store Store) (*Ledger, error) {
	doc, err := store.Load()
	if errors.Is(err, ErrNoLedger) {
		doc = &Document{Files: make(map[string]*Entry)}
	} else if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Ledger{store: store, doc: doc, now: time.Now}, nil
}

// WithClock replaces the timestamp source
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	return l
}

// BeginBatch marks every file pending, keeping attempt counts of existing entries
func (l *Ledger) BeginBatch(files []FileRef) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range files {
		e, ok := l.doc.Files[f.Name]
		if !ok {
			e = &Entry{}
			l.doc.Files[f.Name] = e
		}
		e.Status = StatusPending
		e.Kind = f.Kind
		if f.Sheet != "" {
			e.Sheet = f.Sheet
		}
	}
	return l.saveLocked()
}

// RecordSuccess completes an attempt successfully
func (l *Ledger) RecordSuccess(name string, kind types.CampaignKind) (Entry, error) {
	return l.record(name, kind, StatusSuccess, "")
}

// RecordFailure completes an attempt with an error message
func (l *Ledger) RecordFailure(name string, kind types.CampaignKind, msg string) (Entry, error) {
	if msg == "" {
		msg = defaultFailure
	}
	return l.record(name, kind, StatusFailed, msg)
}

// RecordAttempt records the outcome of one submission: success when err is nil
func (l *Ledger) RecordAttempt(name string, kind types.CampaignKind, err error) (Entry, error) {
	if err == nil {
		return l.RecordSuccess(name, kind)
	}
	return l.RecordFailure(name, kind, err.Error())
}

func (l *Ledger) record(name string, kind types.CampaignKind, status Status, msg string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.doc.Files[name]
	if !ok {
		e = &Entry{Kind: kind}
		l.doc.Files[name] = e
	}
	ts := l.now().Format(TimeLayout)
	e.Status = status
	e.Attempts++
	e.LastAttempt = ts
	if kind != "" {
		e.Kind = kind
	}
	if status == StatusSuccess {
		e.LastError = ""
		e.UploadedAt = ts
	} else {
		e.LastError = msg
	}

	return *e, l.saveLocked()
}

func (l *Ledger) saveLocked() error {
	l.doc.LastUpdated = l.now().Format(TimeLayout)
	if err := l.store.Save(l.doc); err != nil {
		zap.L().Warn("ledger write failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}

// Entry returns a copy of one file's entry
func (l *Ledger) Entry(name string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.doc.Files[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns a copy of all entries keyed by file name
func (l *Ledger) Entries() map[string]Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Entry, len(l.doc.Files))
	for name, e := range l.doc.Files {
		out[name] = *e
	}
	return out
}

// Names returns entry names sorted, optionally filtered by kind (empty kind for all)
func (l *Ledger) Names(kind types.CampaignKind) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for name, e := range l.doc.Files {
		if kind == "" || e.Kind == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllSucceeded reports whether every entry of kind is success (empty kind for all)
func (l *Ledger) AllSucceeded(kind types.CampaignKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.doc.Files {
		if (kind == "" || e.Kind == kind) && e.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// Sheet returns the source tab recorded for kind, or ""
func (l *Ledger) Sheet(kind types.CampaignKind) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.doc.Files))
	for name := range l.doc.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if e := l.doc.Files[name]; e.Kind == kind && e.Sheet != "" {
			return e.Sheet
		}
	}
	return ""
}

// Finalize removes the ledger when every entry succeeded. It reports whether it did.
func (l *Ledger) Finalize() (bool, error) {
	if !l.AllSucceeded("") {
		return false, nil
	}
	return true, l.Reset()
}

// Reset drops all entries and removes the persisted document
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc = &Document{Files: make(map[string]*Entry)}
	if err := l.store.Remove(); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}
