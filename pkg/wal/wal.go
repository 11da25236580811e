package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName returns the on-disk filename for a WAL id: "<id>.wal", id
// monotonically increasing.
func FileName(id uint64) string {
	return fmt.Sprintf("%d.wal", id)
}

// WAL is a single append-only log file for one WAL id. Rotation
// (closing this file and opening the next id) is the caller's
// responsibility; WAL itself only knows how to
// append to and replay the file it was opened against.
type WAL struct {
	dir   string
	id    uint64
	path  string
	fsync bool

	mu        sync.Mutex
	f         *os.File
	endOffset int64
	codec     *payloadCodec
	closed    bool
}

// Open opens or creates the WAL file for id in dir. fsync controls
// whether Append calls fsync after every write.
func Open(dir string, id uint64, fsync bool) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName(id))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	codec, err := newPayloadCodec()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &WAL{
		dir:       dir,
		id:        id,
		path:      path,
		fsync:     fsync,
		f:         f,
		endOffset: stat.Size(),
		codec:     codec,
	}, nil
}

// Append encodes batch as a record and writes it at the tracked
// end-offset, advancing the offset so no gaps are ever written. It
// returns the new end-offset, used by the caller to decide whether
// rotation is due.
func (w *WAL) Append(batch Batch, keySize int) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrLogClosed
	}

	payload := EncodeBatch(batch, keySize)
	rec := encodeRecord(w.codec, payload)

	if _, err := w.f.WriteAt(rec, w.endOffset); err != nil {
		return 0, err
	}
	w.endOffset += int64(len(rec))

	if w.fsync {
		if err := w.f.Sync(); err != nil {
			return 0, err
		}
	}
	return w.endOffset, nil
}

// EndOffset returns the current tracked end-offset.
func (w *WAL) EndOffset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.endOffset
}

// ID returns this WAL file's id.
func (w *WAL) ID() uint64 { return w.id }

// Path returns the WAL file's path on disk.
func (w *WAL) Path() string { return w.path }

// Sync fsyncs the underlying file regardless of the fsync setting.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrLogClosed
	}
	return w.f.Sync()
}

// Close releases the WAL file handle and its payload codec.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	codecErr := w.codec.Close()
	if err := w.f.Close(); err != nil {
		return err
	}
	return codecErr
}
