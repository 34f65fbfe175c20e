package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// Action is the kind of event being recorded.
type Action string

const (
	ActionSign         Action = "sign"
	ActionVerify       Action = "verify"
	ActionVerifyFailed Action = "verify_failed"
	ActionBiometric    Action = "biometric_check"
)

// Entry is one write-once audit record. DocumentHash is always a content
// hash, never raw document bytes, and SignatureSnippet is truncated so the
// trail never holds a full signature.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	Actor            string    `json:"actor"`
	Action           Action    `json:"action"`
	DocumentHash     string    `json:"document_hash"`
	SignatureSnippet string    `json:"signature_snippet,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Snippet truncates a signature or identifier for inclusion in the trail.
func Snippet(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "..."
}

// Trail is the interface for recording audit events. Appends happen
// regardless of the outcome of the action they describe, so failures leave
// the same trail as successes.
type Trail interface {
	Append(entry Entry) error
	Entries() ([]Entry, error)
}

// auditStore is the subset of the storage layer the trail needs.
type auditStore interface {
	AppendAudit(record []byte) error
	AuditRecords() ([][]byte, error)
}

// StoreTrail persists entries through the node's LevelDB storage.
type StoreTrail struct {
	store auditStore
}

func NewStoreTrail(store auditStore) *StoreTrail {
	return &StoreTrail{store: store}
}

func (t *StoreTrail) Append(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return t.store.AppendAudit(data)
}

func (t *StoreTrail) Entries() ([]Entry, error) {
	records, err := t.store.AuditRecords()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(records))
	for _, raw := range records {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// StdoutTrail logs entries without persistence. Used in tests and as a
// fallback before storage is up.
type StdoutTrail struct {
	mu      sync.Mutex
	records []Entry
}

func NewStdoutTrail() *StdoutTrail {
	return &StdoutTrail{}
}

func (t *StdoutTrail) Append(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	t.mu.Lock()
	t.records = append(t.records, entry)
	t.mu.Unlock()
	log.Printf("[AUDIT] %s actor=%s action=%s doc=%s sig=%s err=%q",
		entry.Timestamp.Format(time.RFC3339), entry.Actor, entry.Action,
		entry.DocumentHash, entry.SignatureSnippet, entry.Error)
	return nil
}

func (t *StdoutTrail) Entries() ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.records))
	copy(out, t.records)
	return out, nil
}

var _ Trail = (*StoreTrail)(nil)
var _ Trail = (*StdoutTrail)(nil)

// Describe renders an entry for CLI output.
func Describe(e Entry) string {
	return fmt.Sprintf("[%s] %s %s doc=%s", e.Timestamp.Format(time.RFC3339), e.Actor, e.Action, e.DocumentHash)
}
