package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nainya/slabkv/internal/config"
	"github.com/nainya/slabkv/internal/logger"
	"github.com/nainya/slabkv/internal/metrics"
	"github.com/nainya/slabkv/pkg/hashindex"
	"github.com/nainya/slabkv/pkg/pagestore"
	"github.com/nainya/slabkv/pkg/wal"
)

// KV is the façade orchestrating the WAL, the write buffer and
// flushing-buffer queue, the background flusher, Sharded Buckets, and
// the Level-Page Value Store for a single directory. A KV exclusively
// owns every component for the lifetime of the directory.
type KV struct {
	dir    string
	walDir string
	opts   config.Options

	log     *logger.Logger
	metrics *metrics.Metrics

	// walMu is lock-hierarchy step 1: the WAL writer lock. It also
	// guards meta (current_wal_id) and the closed flag.
	walMu  sync.Mutex
	wal    *wal.WAL
	meta   kvMeta
	closed bool

	// bufMu is lock-hierarchy step 2: the current write buffer.
	bufMu sync.RWMutex
	buf   *buffer

	// flushMu is lock-hierarchy step 3: flushing_buffers.
	flushMu  sync.RWMutex
	flushing []*sealedBuffer

	flushRunningMu sync.Mutex
	flushRunning   bool
	flushWG        sync.WaitGroup

	sb   *hashindex.ShardedBuckets
	lpvs *pagestore.LevelStore
}

// Open opens or creates the directory tree at dir, recovers any WAL
// files left by a prior process, and returns a KV ready for reads and
// writes.
func Open(dir string, opts config.Options, log *logger.Logger, m *metrics.Metrics) (*KV, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	walDir := filepath.Join(dir, "wal")
	mPath := metaPath(dir)

	meta, existed, err := loadMeta(mPath)
	if err != nil {
		return nil, err
	}
	if !existed {
		if err := os.MkdirAll(walDir, 0o755); err != nil {
			return nil, err
		}
		meta = kvMeta{CurrentWalID: 0, KeySize: opts.KeySize}
		if err := saveMeta(mPath, meta); err != nil {
			return nil, err
		}
	}

	activeBuf, flushing, err := recoverWAL(walDir, meta, log)
	if err != nil {
		return nil, err
	}

	activeWAL, err := wal.Open(walDir, meta.CurrentWalID, opts.WalFsync)
	if err != nil {
		return nil, err
	}

	sb, err := hashindex.Open(filepath.Join(dir, "buckets-index"), opts.BucketCount, meta.KeySize, opts.InitEntryNumForEachBucket)
	if err != nil {
		activeWAL.Close()
		return nil, err
	}

	lpvs, err := pagestore.Open(dir, opts.LevelsConfig, opts.SmallPageCacheSize)
	if err != nil {
		activeWAL.Close()
		sb.Close()
		return nil, err
	}

	kv := &KV{
		dir:     dir,
		walDir:  walDir,
		opts:    opts,
		log:     log,
		metrics: m,
		wal:     activeWAL,
		meta:    meta,
		buf:     activeBuf,
		sb:      sb,
		lpvs:    lpvs,
	}
	kv.flushing = flushing

	if log != nil {
		log.LogEngineOpen(dir, meta.CurrentWalID, len(flushing))
	}
	if len(flushing) > 0 {
		kv.triggerFlush()
	}
	return kv, nil
}

// recoverWAL implements delete WALs rotated but never
// committed to meta, then replay the rest in ascending id order, the
// current id's records folding into the new active buffer and every
// older id's records folding into their own sealed buffer.
func recoverWAL(walDir string, meta kvMeta, log *logger.Logger) (*buffer, []*sealedBuffer, error) {
	ids, err := wal.ListIDs(walDir)
	if err != nil {
		return nil, nil, err
	}

	activeBuf := newBuffer()
	var flushing []*sealedBuffer

	for _, id := range ids {
		if id > meta.CurrentWalID {
			if err := wal.Remove(walDir, id); err != nil {
				return nil, nil, err
			}
			continue
		}

		path := filepath.Join(walDir, wal.FileName(id))
		target := activeBuf
		sealed := id != meta.CurrentWalID
		if sealed {
			target = newBuffer()
		}

		batches := 0
		err := wal.Replay(path, meta.KeySize, func(b wal.Batch) error {
			target.fold(b)
			batches++
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		if log != nil {
			log.LogRecovery(path, batches, sealed)
		}
		if sealed {
			flushing = append(flushing, &sealedBuffer{buf: target, walPath: path, walID: id})
		}
	}

	return activeBuf, flushing, nil
}

// Put writes value for key.
func (k *KV) Put(key, value []byte) error {
	return k.DoBatch(wal.Batch{{Key: key, Op: wal.OpPut, Value: value}})
}

// Delete removes key.
func (k *KV) Delete(key []byte) error {
	return k.DoBatch(wal.Batch{{Key: key, Op: wal.OpDel}})
}

// DoBatch applies batch atomically to the WAL, then folds it into the
// in-memory write buffer, rotating the WAL first if the append pushed
// it past wal_flush_size.
func (k *KV) DoBatch(batch wal.Batch) error {
	opStart := time.Now()
	defer func() {
		if k.metrics != nil {
			k.metrics.RecordOperation("do_batch", time.Since(opStart))
		}
	}()

	for _, e := range batch {
		if len(e.Key) != k.meta.KeySize {
			return ErrInvalidKeyLength
		}
	}

	k.walMu.Lock()
	if k.closed {
		k.walMu.Unlock()
		return ErrClosed
	}

	endOffset, err := k.wal.Append(batch, k.meta.KeySize)
	if err != nil {
		k.walMu.Unlock()
		return err
	}
	if k.metrics != nil {
		k.metrics.WalAppendsTotal.Inc()
	}

	var sealed *sealedBuffer
	if endOffset > k.opts.WalFlushSize {
		sealed, err = k.rotateLocked(endOffset)
		if err != nil {
			k.walMu.Unlock()
			return err
		}
	}

	k.bufMu.Lock()
	k.buf.fold(batch)
	if sealed != nil {
		// The batch just folded belongs to the buffer that was active
		// when it was written to WAL (the one now being sealed), not
		// the fresh buffer taking over as active.
		sealed.buf = k.buf
		k.buf = newBuffer()
	}
	k.bufMu.Unlock()

	k.walMu.Unlock()

	if sealed != nil {
		k.flushMu.Lock()
		k.flushing = append(k.flushing, sealed)
		if k.metrics != nil {
			k.metrics.FlushingBuffersDepth.Set(float64(len(k.flushing)))
		}
		k.flushMu.Unlock()
		k.triggerFlush()
	}
	return nil
}

// rotateLocked opens the next WAL id, persists kv.meta with the new
// current_wal_id after the new WAL file exists but before the old one
// is deleted by the flusher, and swaps the active WAL handle. Caller
// holds walMu.
func (k *KV) rotateLocked(endOffset int64) (*sealedBuffer, error) {
	oldWAL := k.wal
	oldID := k.meta.CurrentWalID
	newID := oldID + 1

	newWAL, err := wal.Open(k.walDir, newID, k.opts.WalFsync)
	if err != nil {
		return nil, err
	}

	newMeta := kvMeta{CurrentWalID: newID, KeySize: k.meta.KeySize}
	if err := saveMeta(metaPath(k.dir), newMeta); err != nil {
		newWAL.Close()
		return nil, err
	}

	k.meta = newMeta
	k.wal = newWAL
	oldWAL.Close()

	if k.log != nil {
		k.log.LogRotate(oldID, newID, endOffset)
	}
	if k.metrics != nil {
		k.metrics.WalRotationsTotal.Inc()
	}

	return &sealedBuffer{walPath: oldWAL.Path(), walID: oldID}, nil
}

// Get returns the value for key, consulting the active buffer, then
// flushing buffers newest-to-oldest, then the durable index.
func (k *KV) Get(key []byte) ([]byte, bool, error) {
	start := time.Now()
	defer func() {
		if k.metrics != nil {
			k.metrics.RecordOperation("get", time.Since(start))
		}
	}()

	if len(key) != k.meta.KeySize {
		return nil, false, ErrInvalidKeyLength
	}

	k.bufMu.RLock()
	e, ok := k.buf.get(key)
	k.bufMu.RUnlock()
	if ok {
		return resolveEntry(e)
	}

	k.flushMu.RLock()
	for i := len(k.flushing) - 1; i >= 0; i-- {
		if e, ok := k.flushing[i].buf.get(key); ok {
			k.flushMu.RUnlock()
			return resolveEntry(e)
		}
	}
	k.flushMu.RUnlock()

	info, ok, err := k.sb.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	page, err := k.lpvs.Read(info.DataID)
	if err != nil {
		return nil, false, err
	}
	if info.DataLen > uint32(len(page)) {
		return nil, false, fmt.Errorf("kvstore: data_len %d exceeds page size %d for key", info.DataLen, len(page))
	}
	value := make([]byte, info.DataLen)
	copy(value, page[:info.DataLen])
	return value, true, nil
}

func resolveEntry(e entry) ([]byte, bool, error) {
	if e.op == wal.OpDel {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Close quiesces the background flusher and releases every component's
// file handles. No further Put/Delete/DoBatch/Get calls are valid
// afterward.
func (k *KV) Close() error {
	k.walMu.Lock()
	k.closed = true
	k.walMu.Unlock()

	k.flushWG.Wait()

	var firstErr error
	if err := k.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := k.sb.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := k.lpvs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
