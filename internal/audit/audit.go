// Package audit records who changed which rainfall record, from where.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions written by the web handlers.
const (
	ActionRecordCreate = "record.create"
	ActionRecordUpdate = "record.update"
	ActionRecordInline = "record.inline_update"
	ActionRecordDelete = "record.delete"
	ActionExport       = "records.export"
	ActionLogin        = "user.login"
	ActionRegister     = "user.register"
)

// ResourceObservation is the resource type of rainfall records.
const ResourceObservation = "rain_record"

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	StationID     string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Metadata marshals v for Entry.Metadata; nil or unmarshalable values yield nil.
func Metadata(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func (e *Entry) fill(now time.Time) {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	if e.PayloadDigest == "" {
		e.PayloadDigest = DigestJSON(e.Metadata)
	}
}

// MemoryLog keeps entries in memory. Used when no database is configured.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLog constructs an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Log appends an entry.
func (m *MemoryLog) Log(_ context.Context, entry Entry) error {
	entry.fill(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries in insertion order.
func (m *MemoryLog) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
