package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnippetTruncates(t *testing.T) {
	require.Equal(t, "short", Snippet("short"))
	require.Equal(t, "123456789012", Snippet("123456789012"))
	require.Equal(t, "123456789012...", Snippet("1234567890123456"))
}

func TestStdoutTrailAppendAndEntries(t *testing.T) {
	trail := NewStdoutTrail()
	require.NoError(t, trail.Append(Entry{Actor: "a@x.com", Action: ActionSign, DocumentHash: "hash1"}))
	require.NoError(t, trail.Append(Entry{Actor: "b@x.com", Action: ActionVerifyFailed, Error: "signature not found"}))

	entries, err := trail.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ActionSign, entries[0].Action)
	require.False(t, entries[0].Timestamp.IsZero(), "append must stamp the entry")
	require.Equal(t, "signature not found", entries[1].Error)
}

// fakeStore collects audit records in memory the way the LevelDB layer
// does, keyed by append order.
type fakeStore struct {
	records [][]byte
	fail    bool
}

func (f *fakeStore) AppendAudit(record []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.records = append(f.records, append([]byte(nil), record...))
	return nil
}

func (f *fakeStore) AuditRecords() ([][]byte, error) {
	return f.records, nil
}

func TestStoreTrailRoundTrip(t *testing.T) {
	store := &fakeStore{}
	trail := NewStoreTrail(store)

	stamp := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, trail.Append(Entry{
		Timestamp:        stamp,
		Actor:            "recruiter@example.com",
		Action:           ActionSign,
		DocumentHash:     "deadbeef",
		SignatureSnippet: Snippet("augmented-signature-id"),
	}))

	entries, err := trail.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, stamp.Equal(entries[0].Timestamp))
	require.Equal(t, "augmented-si...", entries[0].SignatureSnippet)
}

func TestStoreTrailSurfacesStorageErrors(t *testing.T) {
	trail := NewStoreTrail(&fakeStore{fail: true})
	require.Error(t, trail.Append(Entry{Action: ActionVerify}))
}
