// Package pagestore implements the size-classed page allocator (PA)
// and the Level-Page Value Store (LPVS) that routes values to the
// smallest level whose page fits them.
package pagestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/nainya/slabkv/pkg/bitmap"
)

// initialLayer0Bits is the starting capacity of a brand-new level:
// 4096 pages
const initialLayer0Bits = 4096

// ErrAllocationFailed indicates the bitmap reported no free page
// immediately after a growth pass; it should never surface to a
// caller of Allocate in steady operation.
var ErrAllocationFailed = errors.New("pagestore: allocation failed after growth")

// PageAllocator owns one (index-file, data-file) pair for a fixed
// page size. It hands out and reclaims 56-bit page indices (the
// allocator itself does not know about the level tag packed into a
// data-id; that is LevelStore's job).
type PageAllocator struct {
	pageSize int

	indexPath string
	dataPath  string
	indexFile *os.File
	dataFile  *os.File

	hier *bitmap.Hierarchy

	// metaLock serializes the compound expand-then-allocate sequence.
	metaLock sync.Mutex
	// bitLock protects read-modify-write of the in-memory bit layers;
	// ReadPage/WritePage never take it, so page I/O proceeds in
	// parallel with allocation once a bit has been set.
	bitLock sync.RWMutex
}

// OpenPageAllocator opens or creates the index/data file pair at the
// given paths for the given page size.
func OpenPageAllocator(indexPath, dataPath string, pageSize int) (*PageAllocator, error) {
	pa := &PageAllocator{
		pageSize:  pageSize,
		indexPath: indexPath,
		dataPath:  dataPath,
	}

	idxFile, created, err := openOrCreate(indexPath)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open index file: %w", err)
	}
	pa.indexFile = idxFile

	dataFile, _, err := openOrCreate(dataPath)
	if err != nil {
		idxFile.Close()
		return nil, fmt.Errorf("pagestore: open data file: %w", err)
	}
	pa.dataFile = dataFile

	if created {
		if err := pa.initializeFresh(); err != nil {
			return nil, err
		}
	} else {
		if err := pa.loadFromDisk(); err != nil {
			return nil, err
		}
	}

	return pa, nil
}

func openOrCreate(path string) (*os.File, bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, err
	}
	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, err
	}
	return f, !existed, nil
}

// initializeFresh preallocates the files to their starting sizes
// (4096 pages) and builds a zeroed in-memory hierarchy.
func (pa *PageAllocator) initializeFresh() error {
	pa.hier = bitmap.NewHierarchy(initialLayer0Bits)

	indexLen := int64(initialLayer0Bits / 8)
	dataLen := int64(initialLayer0Bits) * int64(pa.pageSize)

	if err := pa.indexFile.Truncate(indexLen); err != nil {
		return err
	}
	if err := zeroRange(pa.indexFile, 0, indexLen); err != nil {
		return err
	}
	if err := pa.dataFile.Truncate(dataLen); err != nil {
		return err
	}
	if err := zeroRange(pa.dataFile, 0, dataLen); err != nil {
		return err
	}
	return nil
}

// loadFromDisk reconstructs the in-memory hierarchy from the
// persisted index file. Summary layers above layer 0 are rebuilt by
// folding, as the on-disk file only ever stores layer 0.
func (pa *PageAllocator) loadFromDisk() error {
	stat, err := pa.indexFile.Stat()
	if err != nil {
		return err
	}
	layer0Bits := int(stat.Size()) * 8
	if layer0Bits < initialLayer0Bits {
		layer0Bits = initialLayer0Bits
	}

	buf := make([]byte, stat.Size())
	if _, err := pa.indexFile.ReadAt(buf, 0); err != nil && err != io.EOF {
		return err
	}

	pa.hier = bitmap.NewHierarchyForReload(layer0Bits)
	pa.hier.Layers[0].LoadBytes(buf)
	pa.hier.RebuildSummaries()
	return nil
}

// Allocate finds and reserves a free page, growing the level if
// needed, and returns its 56-bit page index.
func (pa *PageAllocator) Allocate() (uint64, error) {
	pa.metaLock.Lock()
	defer pa.metaLock.Unlock()

	if err := pa.expandIfNeed(); err != nil {
		return 0, err
	}

	pa.bitLock.Lock()
	idx := pa.hier.Allocate()
	pa.bitLock.Unlock()
	if idx < 0 {
		return 0, ErrAllocationFailed
	}

	if err := pa.persistBit(idx); err != nil {
		return 0, err
	}
	return uint64(idx), nil
}

// Free releases a previously allocated page index.
func (pa *PageAllocator) Free(idx uint64) error {
	pa.bitLock.Lock()
	pa.hier.Free(int(idx))
	pa.bitLock.Unlock()
	return pa.persistBit(int(idx))
}

// persistBit writes the single byte of the index file covering bit i.
func (pa *PageAllocator) persistBit(i int) error {
	byteIdx := i / 8
	pa.bitLock.RLock()
	b := pa.hier.Layers[0].ByteAt(byteIdx)
	pa.bitLock.RUnlock()
	_, err := pa.indexFile.WriteAt([]byte{b}, int64(byteIdx))
	return err
}

// expandIfNeed grows the hierarchy and both backing files when the
// top summary layer is down to its last free bit.
func (pa *PageAllocator) expandIfNeed() error {
	pa.bitLock.RLock()
	needsGrowth := pa.hier.NeedsGrowth()
	pa.bitLock.RUnlock()
	if !needsGrowth {
		return nil
	}

	pa.bitLock.Lock()
	oldLayer0Len := pa.hier.Layers[0].Len()
	pa.hier.Grow()
	newLayer0Len := pa.hier.Layers[0].Len()
	pa.bitLock.Unlock()

	addedBits := newLayer0Len - oldLayer0Len
	if addedBits <= 0 {
		return nil
	}

	newIndexLen := int64(newLayer0Len) / 8
	newDataLen := int64(newLayer0Len) * int64(pa.pageSize)
	oldIndexLen := int64(oldLayer0Len) / 8
	oldDataLen := int64(oldLayer0Len) * int64(pa.pageSize)

	if err := pa.indexFile.Truncate(newIndexLen); err != nil {
		return err
	}
	if err := zeroRange(pa.indexFile, oldIndexLen, newIndexLen-oldIndexLen); err != nil {
		return err
	}
	if err := pa.dataFile.Truncate(newDataLen); err != nil {
		return err
	}
	return zeroRange(pa.dataFile, oldDataLen, newDataLen-oldDataLen)
}

// ReadPage reads the full page-sized slot for idx. No lock is taken
// here: once a bit is set the page index is reserved and positional
// reads/writes on its bytes may proceed concurrently with allocation
// of other pages.
func (pa *PageAllocator) ReadPage(idx uint64) ([]byte, error) {
	buf := make([]byte, pa.pageSize)
	_, err := pa.dataFile.ReadAt(buf, int64(idx)*int64(pa.pageSize))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// WritePage writes data (which must be <= pageSize) at the start of
// the page for idx; the tail of the page is left undefined, per
// .
func (pa *PageAllocator) WritePage(idx uint64, data []byte) error {
	if len(data) > pa.pageSize {
		return fmt.Errorf("pagestore: value length %d exceeds page size %d", len(data), pa.pageSize)
	}
	_, err := pa.dataFile.WriteAt(data, int64(idx)*int64(pa.pageSize))
	return err
}

// PageSize returns the fixed page size this allocator manages.
func (pa *PageAllocator) PageSize() int { return pa.pageSize }

// Close releases the underlying file handles.
func (pa *PageAllocator) Close() error {
	err1 := pa.indexFile.Close()
	err2 := pa.dataFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
