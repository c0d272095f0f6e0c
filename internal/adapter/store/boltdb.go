package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
)

const (
	IndexFile  = "index.db"
	ChunksFile = "chunks.db"
)

var (
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")
	bucketChunks  = []byte("chunks")
	keyManifest   = []byte("manifest")
)

type storedChunk struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Exists reports whether both artifacts are present in dir.
func Exists(dir string) bool {
	for _, name := range []string{IndexFile, ChunksFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Save writes idx to dir as index.db and chunks.db, replacing any previous
// artifacts. Both files are written to *.tmp first and renamed only once
// both are complete, so a failed save leaves the old pair in place.
func Save(dir string, idx *Index) error {
	if idx == nil {
		return fmt.Errorf("%w: nothing to save", domain.ErrIndexBuild)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	indexTmp := filepath.Join(dir, IndexFile+".tmp")
	chunksTmp := filepath.Join(dir, ChunksFile+".tmp")

	if err := writeDB(indexTmp, idx.manifest, bucketVectors, func(b *bbolt.Bucket) error {
		for i, v := range idx.vectors {
			if err := b.Put(positionKey(i), encodeVector(v)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("write %s: %w", IndexFile, err)
	}

	if err := writeDB(chunksTmp, idx.manifest, bucketChunks, func(b *bbolt.Bucket) error {
		for _, c := range idx.chunks {
			data, err := json.Marshal(storedChunk{Source: c.Source, Text: c.Text})
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(c.Position), data); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		os.Remove(indexTmp)
		return fmt.Errorf("write %s: %w", ChunksFile, err)
	}

	// A crash between the two renames leaves a mismatched pair, which Load
	// detects through the manifest checksum.
	if err := os.Rename(indexTmp, filepath.Join(dir, IndexFile)); err != nil {
		return fmt.Errorf("replace %s: %w", IndexFile, err)
	}
	if err := os.Rename(chunksTmp, filepath.Join(dir, ChunksFile)); err != nil {
		return fmt.Errorf("replace %s: %w", ChunksFile, err)
	}
	return nil
}

func writeDB(path string, manifest domain.Manifest, bucket []byte, fill func(*bbolt.Bucket) error) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", filepath.Base(path), err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		data, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		if err := meta.Put(keyManifest, data); err != nil {
			return err
		}

		b, err := tx.CreateBucket(bucket)
		if err != nil {
			return err
		}
		b.FillPercent = 1.0 // keys are appended in order
		return fill(b)
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

// Load reads both artifacts from dir and checks that they belong together.
// Every failure wraps domain.ErrRetrieval.
func Load(dir string) (*Index, error) {
	indexPath := filepath.Join(dir, IndexFile)
	chunksPath := filepath.Join(dir, ChunksFile)

	var (
		indexManifest domain.Manifest
		vectors       [][]float32
	)
	err := readDB(indexPath, bucketVectors, &indexManifest, func(k, v []byte) error {
		if int(binary.BigEndian.Uint64(k)) != len(vectors) {
			return fmt.Errorf("vector key %d out of sequence", binary.BigEndian.Uint64(k))
		}
		vec, err := decodeVector(v)
		if err != nil {
			return err
		}
		vectors = append(vectors, vec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrRetrieval, IndexFile, err)
	}

	var (
		chunksManifest domain.Manifest
		chunks         []domain.Chunk
	)
	err = readDB(chunksPath, bucketChunks, &chunksManifest, func(k, v []byte) error {
		pos := int(binary.BigEndian.Uint64(k))
		if pos != len(chunks) {
			return fmt.Errorf("chunk key %d out of sequence", pos)
		}
		var sc storedChunk
		if err := json.Unmarshal(v, &sc); err != nil {
			return fmt.Errorf("chunk %d: %w", pos, err)
		}
		chunks = append(chunks, domain.Chunk{Position: pos, Source: sc.Source, Text: sc.Text})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrRetrieval, ChunksFile, err)
	}

	if err := checkManifests(indexManifest, chunksManifest); err != nil {
		return nil, err
	}

	switch {
	case len(vectors) != indexManifest.Count:
		return nil, fmt.Errorf("%w: index holds %d vectors, manifest says %d",
			domain.ErrRetrieval, len(vectors), indexManifest.Count)
	case len(chunks) != chunksManifest.Count:
		return nil, fmt.Errorf("%w: chunk store holds %d chunks, manifest says %d",
			domain.ErrRetrieval, len(chunks), chunksManifest.Count)
	case len(chunks) == 0:
		return nil, fmt.Errorf("%w: index is empty, ingest some documents first", domain.ErrRetrieval)
	case Checksum(chunks) != chunksManifest.Checksum:
		return nil, fmt.Errorf("%w: chunk store content does not match its checksum", domain.ErrRetrieval)
	}
	for i, v := range vectors {
		if len(v) != indexManifest.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, manifest says %d",
				domain.ErrRetrieval, i, len(v), indexManifest.Dimension)
		}
	}

	return &Index{vectors: vectors, chunks: chunks, manifest: indexManifest}, nil
}

func readDB(path string, bucket []byte, manifest *domain.Manifest, each func(k, v []byte) error) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return errors.New("manifest bucket not found")
		}
		data := meta.Get(keyManifest)
		if data == nil {
			return errors.New("manifest not found")
		}
		if err := json.Unmarshal(data, manifest); err != nil {
			return fmt.Errorf("decode manifest: %w", err)
		}

		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("%s bucket not found", bucket)
		}
		return b.ForEach(each)
	})
}

func positionKey(pos int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(pos))
	return k
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
