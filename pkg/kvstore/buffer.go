package kvstore

import "github.com/nainya/slabkv/pkg/wal"

// entry is one key's most recent op in a buffer.
type entry struct {
	op    wal.KVOp
	value []byte
}

// buffer is the in-memory write buffer (or a sealed flushing buffer):
// key → most-recent KVOp, last write wins, iteration order irrelevant.
// It has no internal lock of its own — the active buffer is guarded by
// KV.bufMu (lock hierarchy step 2); once sealed into flushing_buffers a
// buffer is never mutated again, so the flusher reads it lock-free.
type buffer struct {
	entries map[string]entry
}

func newBuffer() *buffer {
	return &buffer{entries: make(map[string]entry)}
}

// fold applies every entry of a batch into the buffer, later ops for
// the same key overriding earlier ones.
func (b *buffer) fold(batch wal.Batch) {
	for _, e := range batch {
		b.entries[string(e.Key)] = entry{op: e.Op, value: e.Value}
	}
}

func (b *buffer) get(key []byte) (entry, bool) {
	e, ok := b.entries[string(key)]
	return e, ok
}

func (b *buffer) len() int { return len(b.entries) }

// snapshot returns the buffer's entries for the flusher to drain.
func (b *buffer) snapshot() map[string]entry {
	return b.entries
}
