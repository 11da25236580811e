package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ListIDs returns the ids of every "<id>.wal" file in dir, ascending.
// A missing directory is reported as an empty list, matching "no meta
// file exists" fresh-start handling one level up in the KV façade.
func ListIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var id uint64
		if _, err := fmt.Sscanf(e.Name(), "%d.wal", &id); err != nil {
			continue
		}
		if e.Name() != FileName(id) {
			continue // reject stray suffixes Sscanf would otherwise ignore
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Remove deletes the WAL file for id.
func Remove(dir string, id uint64) error {
	return os.Remove(filepath.Join(dir, FileName(id)))
}

// ReplayFunc is invoked once per decoded batch, in the order the
// batches were originally appended.
type ReplayFunc func(Batch) error

// Replay reads every record in the WAL file at path and calls fn for
// each decoded batch. It stops cleanly (returning nil) at the first
// truncated or CRC-corrupt record, treating that point as the end of
// this file's valid history: the keys surviving must form a contiguous
// prefix of the originally written sequence, not an arbitrary subset.
func Replay(path string, keySize int, fn ReplayFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	codec, err := newPayloadCodec()
	if err != nil {
		return err
	}
	defer codec.Close()

	for {
		raw, err := readRecord(f, codec)
		if err == io.EOF || err == ErrTruncated || err == ErrCorrupted {
			return nil
		}
		if err != nil {
			return err
		}

		batch, err := DecodeBatch(raw, keySize)
		if err != nil {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
}
