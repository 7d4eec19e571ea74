package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/scenesync/internal/element"
)

// createTestStore creates a new store in a temp directory for testing.
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

// createTestBatch creates a batch record with minimal required fields.
func createTestBatch(sceneID, batchID string, seq int64, elements []element.Element) BatchRecord {
	return BatchRecord{
		Seq:          seq,
		SceneID:      sceneID,
		BatchID:      batchID,
		Source:       "peer-test",
		Payload:      []byte{0x80},
		ResultHash:   element.MustSnapshotHash(elements),
		ElementCount: len(elements),
	}
}

func testElement(id string, version int64, index string) element.Element {
	return element.Element{ID: id, Type: "rectangle", Version: version, VersionNonce: 1, Index: index}
}
