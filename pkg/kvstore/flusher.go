package kvstore

import (
	"fmt"
	"os"
	"time"

	"github.com/nainya/slabkv/pkg/hashindex"
	"github.com/nainya/slabkv/pkg/wal"
)

// sealedBuffer is one (buffer, wal_path) pair enqueued on rotation,
// awaiting drain by the background flusher.
type sealedBuffer struct {
	buf     *buffer
	walPath string
	walID   uint64
}

// retryUntilSuccess calls fn until it returns nil, sleeping backoff
// between attempts. The flusher treats local-disk I/O errors as always
// eventually retryable.
func retryUntilSuccess(backoff time.Duration, fn func() error) {
	for {
		if err := fn(); err == nil {
			return
		}
		time.Sleep(backoff)
	}
}

// triggerFlush spawns the flusher goroutine if one isn't already
// running. Guarded by a plain "running" flag rather than a try-lock
// held for the worker's whole lifetime, per the design note against
// that double-locking pitfall.
func (k *KV) triggerFlush() {
	k.flushRunningMu.Lock()
	defer k.flushRunningMu.Unlock()
	if k.flushRunning {
		return
	}
	k.flushRunning = true
	k.flushWG.Add(1)
	go k.runFlusher()
}

// runFlusher drains flushing_buffers strictly oldest-first, one at a
// time, until the queue is empty, then exits.
func (k *KV) runFlusher() {
	defer k.flushWG.Done()

	for {
		k.flushMu.RLock()
		empty := len(k.flushing) == 0
		var head *sealedBuffer
		if !empty {
			head = k.flushing[0]
		}
		k.flushMu.RUnlock()

		if empty {
			if k.stopIfStillEmpty() {
				return
			}
			continue
		}

		k.drainSealed(head)

		k.flushMu.Lock()
		k.flushing = k.flushing[1:]
		k.flushMu.Unlock()
	}
}

// stopIfStillEmpty clears the running flag and returns true only if
// the queue is still empty once flushRunningMu is held — closing the
// race where a new seal is pushed between runFlusher's last peek and
// here (see DoBatch in kv.go, which pushes under flushMu then calls
// triggerFlush separately).
func (k *KV) stopIfStillEmpty() bool {
	k.flushRunningMu.Lock()
	defer k.flushRunningMu.Unlock()

	k.flushMu.RLock()
	stillEmpty := len(k.flushing) == 0
	k.flushMu.RUnlock()

	if !stillEmpty {
		return false
	}
	k.flushRunning = false
	return true
}

// drainSealed applies every op in s.buf to LPVS/SB, then deletes the
// sealed WAL file. Errors are retried forever with bounded backoff;
// the flusher never surfaces an error to a caller because the
// operation was already acknowledged.
func (k *KV) drainSealed(s *sealedBuffer) {
	start := time.Now()
	snap := s.buf.snapshot()

	for key, e := range snap {
		if e.op == wal.OpPut {
			var dataID uint64
			retryUntilSuccess(time.Second, func() error {
				id, err := k.lpvs.Write(e.value)
				if err != nil {
					return err
				}
				dataID = id
				return nil
			})
			k.metrics.PageAllocationsTotal.WithLabelValues(levelLabel(dataID)).Inc()

			retryUntilSuccess(time.Second, func() error {
				return k.sb.Put([]byte(key), hashindex.DataInfo{DataID: dataID, DataLen: uint32(len(e.value))})
			})
			k.metrics.RecordFlushOp("put")
			continue
		}

		var info hashindex.DataInfo
		var existed bool
		retryUntilSuccess(5*time.Second, func() error {
			i, ok, err := k.sb.Del([]byte(key))
			if err != nil {
				return err
			}
			info, existed = i, ok
			return nil
		})
		if existed {
			retryUntilSuccess(time.Second, func() error {
				return k.lpvs.Free(info.DataID)
			})
			k.metrics.PageFreesTotal.WithLabelValues(levelLabel(info.DataID)).Inc()
		}
		k.metrics.RecordFlushOp("del")
	}

	retryUntilSuccess(5*time.Second, func() error {
		err := wal.Remove(k.walDir, s.walID)
		if err != nil && os.IsNotExist(err) {
			return nil
		}
		return err
	})

	k.metrics.FlushCycleDuration.Observe(time.Since(start).Seconds())
	k.log.LogFlushCycle(s.walPath, time.Since(start), len(snap), nil)
}

func levelLabel(dataID uint64) string {
	return fmt.Sprintf("%d", dataID>>56)
}
