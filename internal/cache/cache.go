// Package cache implements the sidecar digest cache: a mapping from
// (absolute path, size, mtime) to (algorithm, digest bytes), read at
// startup and written at shutdown so a second run over an unchanged
// tree can skip hashing entirely.
//
// The store is self-cleaning: each run opens the prior file read-only
// and writes a fresh database that atomically replaces it on close, so
// entries for files that vanished do not accumulate.
package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ivoronin/lint/internal/types"
)

const bucketName = "digests"

// Cache provides persistent caching of whole-file digests using BoltDB.
// Implements self-cleaning: each run creates a new database, only
// entries actually looked up or stored this run survive into it.
type Cache struct {
	readDBs []*bolt.DB // Existing caches (read-only), primary first
	writeDB *bolt.DB   // New cache (write) -- BoltDB locks this file
	path    string     // Final path (for atomic swap)
	enabled bool
}

// Open opens the existing cache files for reading and creates a new
// cache file (replacing path, the primary) for writing. extra paths
// are consulted read-only on lookup, in order, after the primary.
// Returns a disabled Cache if path is empty; an unopenable non-empty
// path is an error for the caller to warn about and proceed without.
func Open(path string, extra ...string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}

	for _, p := range append([]string{path}, extra...) {
		if _, statErr := os.Stat(p); statErr != nil {
			continue
		}
		readDB, err := bolt.Open(p, 0o600, &bolt.Options{
			ReadOnly: true,
			Timeout:  1 * time.Second,
		})
		if err == nil {
			c.readDBs = append(c.readDBs, readDB)
		}
	}

	newPath := path + ".new"
	writeDB, err := bolt.Open(newPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}
	c.writeDB = writeDB

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces the old cache
// file with the new one. Only replaces if the write database closed
// successfully, to avoid losing the prior cache to a half-written one.
func (c *Cache) Close() error {
	var errs []error
	for _, db := range c.readDBs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else if err := os.Rename(c.path+".new", c.path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

const keyVersion byte = 2 // bumped: whole-file schema, not per-range

// makeKey builds the deterministic lookup key: ver(1) + path + NUL +
// size(8) + mtime(8).
func makeKey(rec *types.FileRecord) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(rec.Path)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, rec.Size)
	_ = binary.Write(buf, binary.BigEndian, rec.ModTime.UnixNano())
	return buf.Bytes()
}

// encodeValue packs algorithm name + digest into one blob:
// len(algorithm)(1) + algorithm + digest.
func encodeValue(algorithm string, digest []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(len(algorithm)))
	buf.WriteString(algorithm)
	buf.Write(digest)
	return buf.Bytes()
}

func decodeValue(data []byte) (algorithm string, digest []byte, ok bool) {
	if len(data) < 1 {
		return "", nil, false
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", nil, false
	}
	algorithm = string(data[1 : 1+n])
	digest = data[1+n:]
	return algorithm, digest, true
}

// Lookup returns the cached digest for rec if any cache file holds an
// entry for the exact (path, size, mtime) key using the requested
// algorithm. A hit is also copied into the new (self-cleaning) database
// so a third run's cache stays warm for files this run touched.
func (c *Cache) Lookup(rec *types.FileRecord, algorithm string) ([]byte, error) {
	if !c.enabled || len(c.readDBs) == 0 {
		return nil, nil
	}

	key := makeKey(rec)
	var data []byte
	for _, db := range c.readDBs {
		err := db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(bucketName))
			if b == nil {
				return nil
			}
			if v := b.Get(key); v != nil {
				data = append([]byte(nil), v...)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
		if data != nil {
			break
		}
	}
	if data == nil {
		return nil, nil
	}

	gotAlgorithm, digest, ok := decodeValue(data)
	if !ok || gotAlgorithm != algorithm {
		return nil, nil
	}

	_ = c.Store(rec, algorithm, digest)
	return digest, nil
}

// Store saves rec's digest into the new database.
func (c *Cache) Store(rec *types.FileRecord, algorithm string, digest []byte) error {
	if !c.enabled || c.writeDB == nil || len(digest) == 0 {
		return nil
	}
	err := c.writeDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(rec), encodeValue(algorithm, digest))
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
