package pagestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// levelTagShift packs the level index into the top 8 bits of a data-id
// and the page index into the low 56 bits.
const (
	levelTagShift  = 56
	pageIndexMask  = (uint64(1) << levelTagShift) - 1
	maxLevelsInTag = 256
)

// LevelsConfig describes the page sizes of every level, in ascending
// search order. Once persisted by the first open of a directory, the
// order is never changed.
type LevelsConfig interface {
	Sizes() []int
}

// Pow2Config generates level sizes start*2^0 .. start*2^(count-1).
// The default configuration is Pow2{32, 8} => {32,64,128,256,512,1024,2048,4096}.
type Pow2Config struct {
	StartPageSize int
	LevelCount    int
}

func (p Pow2Config) Sizes() []int {
	sizes := make([]int, p.LevelCount)
	size := p.StartPageSize
	for i := 0; i < p.LevelCount; i++ {
		sizes[i] = size
		size *= 2
	}
	return sizes
}

// CustomConfig uses an explicit, verbatim list of level page sizes.
type CustomConfig struct {
	LevelPageSizes []int
}

func (c CustomConfig) Sizes() []int { return c.LevelPageSizes }

type levelMetaEntry struct {
	PageSize  int `json:"page_size"`
	FileIndex int `json:"file_index"`
}

type levelMetaFile struct {
	Files []levelMetaEntry `json:"files"`
}

// LevelStore is the Level-Page Value Store: it selects the smallest
// level whose page fits a value, delegates to that level's
// PageAllocator, and encodes/decodes the resulting data-id.
type LevelStore struct {
	dir    string
	levels []*PageAllocator
	cache  *Cache
}

// Open opens (or creates, on first use) the LPVS rooted at dir. The
// first successful open writes meta.json capturing the level layout;
// subsequent opens reuse whatever was persisted, ignoring cfg.
func Open(dir string, cfg LevelsConfig, cacheBytes int) (*LevelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	metaPath := filepath.Join(dir, "meta.json")
	entries, err := loadOrCreateLevelMeta(metaPath, cfg)
	if err != nil {
		return nil, err
	}
	if len(entries) > maxLevelsInTag {
		return nil, fmt.Errorf("pagestore: %d levels exceeds the %d representable in a data-id tag", len(entries), maxLevelsInTag)
	}

	ls := &LevelStore{dir: dir, cache: NewCache(cacheBytes)}
	for _, e := range entries {
		idxPath := filepath.Join(dir, fmt.Sprintf("index_%db_%d.idx", e.PageSize, e.FileIndex))
		dataPath := filepath.Join(dir, fmt.Sprintf("data_%db_%d.dat", e.PageSize, e.FileIndex))
		pa, err := OpenPageAllocator(idxPath, dataPath, e.PageSize)
		if err != nil {
			ls.Close()
			return nil, err
		}
		ls.levels = append(ls.levels, pa)
	}
	return ls, nil
}

func loadOrCreateLevelMeta(metaPath string, cfg LevelsConfig) ([]levelMetaEntry, error) {
	if data, err := os.ReadFile(metaPath); err == nil {
		var mf levelMetaFile
		if err := json.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("pagestore: parse meta.json: %w", err)
		}
		return mf.Files, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	sizes := cfg.Sizes()
	entries := make([]levelMetaEntry, len(sizes))
	for i, s := range sizes {
		entries[i] = levelMetaEntry{PageSize: s, FileIndex: 0}
	}

	data, err := json.MarshalIndent(levelMetaFile{Files: entries}, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return nil, err
	}
	return entries, nil
}

// maxPageSize returns the largest page size across all levels.
func (ls *LevelStore) maxPageSize() int {
	max := 0
	for _, pa := range ls.levels {
		if pa.PageSize() > max {
			max = pa.PageSize()
		}
	}
	return max
}

// Write stores value in the smallest level whose page fits it and
// returns the encoded data-id.
func (ls *LevelStore) Write(value []byte) (uint64, error) {
	if len(value) > ls.maxPageSize() {
		return 0, fmt.Errorf("pagestore: value length %d exceeds max page size %d", len(value), ls.maxPageSize())
	}

	levelIdx := -1
	for i, pa := range ls.levels {
		if pa.PageSize() >= len(value) {
			levelIdx = i
			break
		}
	}
	if levelIdx < 0 {
		return 0, fmt.Errorf("pagestore: no level fits value of length %d", len(value))
	}

	pa := ls.levels[levelIdx]
	pageIdx, err := pa.Allocate()
	if err != nil {
		return 0, err
	}
	if err := pa.WritePage(pageIdx, value); err != nil {
		return 0, err
	}

	dataID := (uint64(levelIdx) << levelTagShift) | pageIdx
	return dataID, nil
}

// Read returns exactly page_size bytes for the level encoded in
// data-id; the caller truncates using the separately stored data_len.
func (ls *LevelStore) Read(dataID uint64) ([]byte, error) {
	levelIdx, pageIdx := decodeDataID(dataID)
	if levelIdx < 0 || levelIdx >= len(ls.levels) {
		return nil, fmt.Errorf("pagestore: data-id %d references unknown level %d", dataID, levelIdx)
	}
	pa := ls.levels[levelIdx]

	if pa.PageSize() <= smallPageCeiling {
		if page, ok := ls.cache.Get(dataID); ok {
			return page, nil
		}
	}

	page, err := pa.ReadPage(pageIdx)
	if err != nil {
		return nil, err
	}
	if pa.PageSize() <= smallPageCeiling {
		ls.cache.Add(dataID, page)
	}
	return page, nil
}

// Free reclaims the page referenced by data-id and drops any cached
// copy.
func (ls *LevelStore) Free(dataID uint64) error {
	levelIdx, pageIdx := decodeDataID(dataID)
	if levelIdx < 0 || levelIdx >= len(ls.levels) {
		return fmt.Errorf("pagestore: data-id %d references unknown level %d", dataID, levelIdx)
	}
	ls.cache.Remove(dataID)
	return ls.levels[levelIdx].Free(pageIdx)
}

func decodeDataID(dataID uint64) (level int, pageIdx uint64) {
	return int(dataID >> levelTagShift), dataID & pageIndexMask
}

// Close releases every level's file handles.
func (ls *LevelStore) Close() error {
	var firstErr error
	for _, pa := range ls.levels {
		if err := pa.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
