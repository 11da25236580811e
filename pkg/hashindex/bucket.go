// Package hashindex implements the open-addressed Hash Bucket (HB) and
// its sharded fan-out (SB) from .
package hashindex

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MaxSearch bounds linear probing
const MaxSearch = 32

// ErrMaxSearchReached is returned by Bucket.Put when 32 consecutive
// slots were inspected without finding a free, tombstoned, or
// matching slot.
var ErrMaxSearchReached = errors.New("hashindex: max search reached")

// Bucket is one open-addressed hash table backed by a single file of
// fixed-width slots.
type Bucket struct {
	path     string
	f        *os.File
	keySize  int
	entryNum int
	codec    slotCodec

	// mu arbitrates the file handle: Get takes a read lock (positional
	// reads may run concurrently at the OS level); Put/Del/Expand take
	// a write lock.
	mu sync.RWMutex
}

// OpenBucket opens or creates the bucket file at path with the given
// key size; a freshly created file starts with initialEntryNum slots,
// all Free.
func OpenBucket(path string, keySize, initialEntryNum int) (*Bucket, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	codec := slotCodec{keySize: keySize}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	b := &Bucket{path: path, f: f, keySize: keySize, codec: codec}

	if existed {
		stat, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		b.entryNum = int(stat.Size()) / codec.width()
	} else {
		b.entryNum = initialEntryNum
		if err := f.Truncate(int64(initialEntryNum) * int64(codec.width())); err != nil {
			f.Close()
			return nil, err
		}
	}

	return b, nil
}

func (b *Bucket) slotOffset(i int) int64 {
	return int64(i) * int64(b.codec.width())
}

func (b *Bucket) readSlot(i int) ([]byte, error) {
	buf := make([]byte, b.codec.width())
	if _, err := b.f.ReadAt(buf, b.slotOffset(i)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *Bucket) writeSlot(i int, buf []byte) error {
	_, err := b.f.WriteAt(buf, b.slotOffset(i))
	return err
}

// Put inserts or overwrites the value for key, probing linearly from
// hash(key) mod entryNum over MaxSearch slots. An Occupied slot holding
// key is overwritten in place; otherwise the first Free or Tombstone
// slot in the window is used, so a key never occupies two slots.
func (b *Bucket) Put(key []byte, info DataInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := int(hashKey(key) % uint64(b.entryNum))
	reuse := -1
	for probe := 0; probe < MaxSearch; probe++ {
		i := (start + probe) % b.entryNum
		slot, err := b.readSlot(i)
		if err != nil {
			return err
		}
		meta := b.codec.decodeMeta(slot)
		if meta == metaOccupied && bytes.Equal(b.codec.decodeKey(slot), key) {
			return b.writeSlot(i, b.codec.encode(metaOccupied, key, info))
		}
		if reuse < 0 && (meta == metaFree || meta == metaTombstone) {
			reuse = i
		}
	}
	if reuse >= 0 {
		return b.writeSlot(reuse, b.codec.encode(metaOccupied, key, info))
	}
	return ErrMaxSearchReached
}

// Get returns the value for key if present. Probing never stops early
// on a Free or Tombstone slot; it always inspects up to MaxSearch
// slots looking for an Occupied match.
func (b *Bucket) Get(key []byte) (DataInfo, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := int(hashKey(key) % uint64(b.entryNum))
	for probe := 0; probe < MaxSearch; probe++ {
		i := (start + probe) % b.entryNum
		slot, err := b.readSlot(i)
		if err != nil {
			return DataInfo{}, false, err
		}
		if b.codec.decodeMeta(slot) == metaOccupied && bytes.Equal(b.codec.decodeKey(slot), key) {
			return b.codec.decodeInfo(slot), true, nil
		}
	}
	return DataInfo{}, false, nil
}

// Del marks the first Occupied match as a Tombstone and returns its
// previous value.
func (b *Bucket) Del(key []byte) (DataInfo, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := int(hashKey(key) % uint64(b.entryNum))
	for probe := 0; probe < MaxSearch; probe++ {
		i := (start + probe) % b.entryNum
		slot, err := b.readSlot(i)
		if err != nil {
			return DataInfo{}, false, err
		}
		if b.codec.decodeMeta(slot) == metaOccupied && bytes.Equal(b.codec.decodeKey(slot), key) {
			info := b.codec.decodeInfo(slot)
			if err := b.writeSlot(i, b.codec.encode(metaTombstone, key, DataInfo{})); err != nil {
				return DataInfo{}, false, err
			}
			return info, true, nil
		}
	}
	return DataInfo{}, false, nil
}

// Expand doubles entryNum and rehashes every live (Occupied) slot into
// a new sibling file, retrying with a further doubling if any key
// needs more than MaxSearch probes in the new layout. On success the
// new file atomically replaces the old one. Callers must ensure no
// other Put/Del/Expand runs concurrently on this bucket: a single
// writer is assumed.
func (b *Bucket) Expand() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	newEntryNum := b.entryNum * 2
	for {
		ok, err := b.tryRehash(newEntryNum)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		newEntryNum *= 2
	}
}

// tryRehash attempts a full rehash into a fresh file of newEntryNum
// slots, returning ok=false (and discarding the attempt) if any live
// key would need more than MaxSearch probes.
func (b *Bucket) tryRehash(newEntryNum int) (bool, error) {
	tmpPath := fmt.Sprintf("%s.rehash-%d", b.path, newEntryNum)
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmpPath)

	if err := tmp.Truncate(int64(newEntryNum) * int64(b.codec.width())); err != nil {
		tmp.Close()
		return false, err
	}

	for i := 0; i < b.entryNum; i++ {
		slot, err := b.readSlot(i)
		if err != nil {
			tmp.Close()
			return false, err
		}
		if b.codec.decodeMeta(slot) != metaOccupied {
			continue
		}
		key := append([]byte(nil), b.codec.decodeKey(slot)...)
		info := b.codec.decodeInfo(slot)

		placed := false
		start := int(hashKey(key) % uint64(newEntryNum))
		for probe := 0; probe < MaxSearch; probe++ {
			j := (start + probe) % newEntryNum
			existing := make([]byte, b.codec.width())
			if _, err := tmp.ReadAt(existing, int64(j)*int64(b.codec.width())); err != nil {
				tmp.Close()
				return false, err
			}
			if b.codec.decodeMeta(existing) == metaFree {
				if _, err := tmp.WriteAt(b.codec.encode(metaOccupied, key, info), int64(j)*int64(b.codec.width())); err != nil {
					tmp.Close()
					return false, err
				}
				placed = true
				break
			}
		}
		if !placed {
			tmp.Close()
			return false, nil
		}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return false, err
	}

	newFile, err := os.OpenFile(b.path, os.O_RDWR, 0o644)
	if err != nil {
		return false, err
	}
	oldFile := b.f
	b.f = newFile
	b.entryNum = newEntryNum
	oldFile.Close()
	return true, nil
}

// EntryNum returns the current slot count.
func (b *Bucket) EntryNum() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entryNum
}

// Close releases the bucket's file handle.
func (b *Bucket) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Close()
}
