package wal

import "encoding/binary"

// KVOp tags a single batch entry: Put(value) or Del.
type KVOp int

const (
	OpPut KVOp = iota
	OpDel
)

// BatchEntry is one (key, KVOp) pair within a Batch.
type BatchEntry struct {
	Key   []byte
	Op    KVOp
	Value []byte // unused when Op == OpDel
}

// Batch is an ordered sequence of key/op pairs applied atomically to
// the WAL and then folded into the in-memory write buffer, later
// entries for the same key overriding earlier ones on fold.
type Batch []BatchEntry

// EncodeBatch produces the WAL record payload for a batch:
// [u32 total_size] followed by one [u32 entry_len][entry_bytes] per
// entry. An entry's key occupies the first keySize bytes of
// entry_bytes; anything beyond that is the Put value. entry_len ==
// keySize signals a Delete.
func EncodeBatch(batch Batch, keySize int) []byte {
	entrySize := func(e BatchEntry) int {
		if e.Op == OpDel {
			return keySize
		}
		return keySize + len(e.Value)
	}

	total := 0
	for _, e := range batch {
		total += 4 + entrySize(e)
	}

	buf := make([]byte, 4+total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))

	off := 4
	for _, e := range batch {
		n := entrySize(e)
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(n))
		off += 4
		copy(buf[off:off+keySize], e.Key)
		if e.Op == OpPut {
			copy(buf[off+keySize:off+n], e.Value)
		}
		off += n
	}
	return buf
}

// DecodeBatch parses a payload produced by EncodeBatch.
func DecodeBatch(payload []byte, keySize int) (Batch, error) {
	if len(payload) < 4 {
		return nil, ErrMalformedBatch
	}
	total := binary.LittleEndian.Uint32(payload[0:4])
	if int(total) != len(payload)-4 {
		return nil, ErrMalformedBatch
	}

	var batch Batch
	off := 4
	end := len(payload)
	for off < end {
		if off+4 > end {
			return nil, ErrMalformedBatch
		}
		entryLen := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		if entryLen < keySize || off+entryLen > end {
			return nil, ErrMalformedBatch
		}

		key := append([]byte(nil), payload[off:off+keySize]...)
		if entryLen == keySize {
			batch = append(batch, BatchEntry{Key: key, Op: OpDel})
		} else {
			value := append([]byte(nil), payload[off+keySize:off+entryLen]...)
			batch = append(batch, BatchEntry{Key: key, Op: OpPut, Value: value})
		}
		off += entryLen
	}
	return batch, nil
}
