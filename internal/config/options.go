// Package config holds the options surface for opening a slabkv
// directory.
package config

import (
	"fmt"

	"github.com/nainya/slabkv/pkg/pagestore"
)

// Options configures a directory at open time. KeySize, BucketCount and
// LevelsConfig are persisted when the directory is first created
// (kv.meta, buckets-index/meta.json, meta.json under the level store),
// and the persisted values win on every subsequent open. The other
// options are not persisted and take effect on each open;
// InitEntryNumForEachBucket only matters when a bucket file is created.
type Options struct {
	KeySize                   int
	BucketCount               int
	InitEntryNumForEachBucket int
	LevelsConfig              pagestore.LevelsConfig
	SmallPageCacheSize        int
	WalFlushSize              int64
	WalFsync                  bool
}

const minSmallPageCacheSize = 64 << 20 // 64 MiB

// Default returns a reasonable option set for a new directory.
func Default() Options {
	return Options{
		KeySize:                   32,
		BucketCount:               32,
		InitEntryNumForEachBucket: 1024,
		LevelsConfig:              pagestore.Pow2Config{StartPageSize: 32, LevelCount: 8},
		SmallPageCacheSize:        minSmallPageCacheSize,
		WalFlushSize:              4 << 20,
		WalFsync:                  true,
	}
}

// Validate rejects option combinations that can never produce a
// working directory, and clamps small_page_cache_size up to the
// documented floor.
func (o *Options) Validate() error {
	if o.KeySize <= 0 {
		return fmt.Errorf("config: key_size must be positive, got %d", o.KeySize)
	}
	if o.BucketCount <= 0 {
		return fmt.Errorf("config: bucket_count must be positive, got %d", o.BucketCount)
	}
	if o.InitEntryNumForEachBucket <= 0 {
		return fmt.Errorf("config: init_entry_num_for_each_bucket must be positive, got %d", o.InitEntryNumForEachBucket)
	}
	if o.LevelsConfig == nil {
		return fmt.Errorf("config: levels_config must be set")
	}
	if len(o.LevelsConfig.Sizes()) == 0 {
		return fmt.Errorf("config: levels_config produced zero levels")
	}
	if o.WalFlushSize <= 0 {
		return fmt.Errorf("config: wal_flush_size must be positive, got %d", o.WalFlushSize)
	}
	if o.SmallPageCacheSize < minSmallPageCacheSize {
		o.SmallPageCacheSize = minSmallPageCacheSize
	}
	return nil
}
