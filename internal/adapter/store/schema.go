package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"docqa/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// Checksum hashes the chunk texts in order. Both artifacts record it so a
// reader can tell whether they came from the same ingestion run.
func Checksum(chunks []domain.Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// checkSchema rejects artifacts written by a different schema version.
func checkSchema(m domain.Manifest) error {
	switch {
	case m.SchemaVersion == 0:
		return fmt.Errorf("%w: artifact has no schema version, re-run ingest", domain.ErrRetrieval)
	case m.SchemaVersion < CurrentSchemaVersion:
		return fmt.Errorf("%w: schema v%d is older than v%d, re-run ingest",
			domain.ErrRetrieval, m.SchemaVersion, CurrentSchemaVersion)
	case m.SchemaVersion > CurrentSchemaVersion:
		return fmt.Errorf("%w: artifact created by newer version (v%d > v%d)",
			domain.ErrRetrieval, m.SchemaVersion, CurrentSchemaVersion)
	}
	return nil
}

// checkManifests verifies that index.db and chunks.db describe the same run.
func checkManifests(index, chunks domain.Manifest) error {
	if err := checkSchema(index); err != nil {
		return err
	}
	if err := checkSchema(chunks); err != nil {
		return err
	}
	if index.Count != chunks.Count {
		return fmt.Errorf("%w: index has %d vectors but chunk store has %d chunks",
			domain.ErrRetrieval, index.Count, chunks.Count)
	}
	if index.Checksum != chunks.Checksum {
		return fmt.Errorf("%w: index and chunk store come from different ingestion runs (%s != %s)",
			domain.ErrRetrieval, index.Checksum, chunks.Checksum)
	}
	if index.Dimension != chunks.Dimension {
		return fmt.Errorf("%w: dimension mismatch between index (%d) and chunk store (%d)",
			domain.ErrRetrieval, index.Dimension, chunks.Dimension)
	}
	return nil
}
