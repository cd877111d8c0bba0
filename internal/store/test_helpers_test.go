package store

import (
	"path/filepath"
	"testing"

	"github.com/sksthrs/mekiku/internal/ir"
)

// createTestStore creates a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a remote display packet record.
func createTestRecord(seq int64, sender ir.SenderID, receivedAt ir.Timestamp, text string) Record {
	return Record{
		Seq:        seq,
		Origin:     OriginRemote,
		SenderID:   sender,
		ReceivedAt: receivedAt,
		Payload:    []byte(`{"seqCount":1,"sendTimeCount":1,"senderName":"x","memberType":"wi","D":"` + text + `"}`),
	}
}
