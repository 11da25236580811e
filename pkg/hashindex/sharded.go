package hashindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type shardedMeta struct {
	BucketCount int `json:"bucket_count"`
	KeySize     int `json:"key_size"`
}

// ShardedBuckets is the fan-out of N independently locked hash
// buckets (SB, .4): hash(key) mod bucket_count selects a shard.
type ShardedBuckets struct {
	dir         string
	bucketCount int
	keySize     int
	initEntries int
	shards      []*Bucket
	locks       []sync.RWMutex
}

// Open opens or creates the sharded-bucket directory at dir. On first
// creation it persists {bucket_count, key_size} to meta.json; later
// opens reuse that persisted layout.
func Open(dir string, bucketCount, keySize, initEntriesPerShard int) (*ShardedBuckets, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	metaPath := filepath.Join(dir, "meta.json")
	meta, err := loadOrCreateShardedMeta(metaPath, bucketCount, keySize)
	if err != nil {
		return nil, err
	}

	sb := &ShardedBuckets{
		dir:         dir,
		bucketCount: meta.BucketCount,
		keySize:     meta.KeySize,
		initEntries: initEntriesPerShard,
		shards:      make([]*Bucket, meta.BucketCount),
		locks:       make([]sync.RWMutex, meta.BucketCount),
	}

	for i := 0; i < meta.BucketCount; i++ {
		path := filepath.Join(dir, fmt.Sprintf("bucket_%05d.data", i), "bucket.dat")
		b, err := OpenBucket(path, meta.KeySize, initEntriesPerShard)
		if err != nil {
			sb.Close()
			return nil, err
		}
		sb.shards[i] = b
	}

	return sb, nil
}

func loadOrCreateShardedMeta(path string, bucketCount, keySize int) (shardedMeta, error) {
	if data, err := os.ReadFile(path); err == nil {
		var m shardedMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return shardedMeta{}, fmt.Errorf("hashindex: parse meta.json: %w", err)
		}
		return m, nil
	} else if !os.IsNotExist(err) {
		return shardedMeta{}, err
	}

	m := shardedMeta{BucketCount: bucketCount, KeySize: keySize}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return shardedMeta{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return shardedMeta{}, err
	}
	return m, nil
}

func (sb *ShardedBuckets) shardFor(key []byte) int {
	return int(hashKey(key) % uint64(sb.bucketCount))
}

// Put writes key/info into its shard, triggering Expand (under the
// shard's writer lock) and retrying on ErrMaxSearchReached until it
// succeeds or a non-capacity I/O error occurs.
func (sb *ShardedBuckets) Put(key []byte, info DataInfo) error {
	shard := sb.shardFor(key)
	bucket := sb.shards[shard]
	lock := &sb.locks[shard]

	lock.RLock()
	err := bucket.Put(key, info)
	lock.RUnlock()

	for err == ErrMaxSearchReached {
		lock.Lock()
		expandErr := bucket.Expand()
		lock.Unlock()
		if expandErr != nil {
			return expandErr
		}

		lock.RLock()
		err = bucket.Put(key, info)
		lock.RUnlock()
	}
	return err
}

// Get looks up key in its shard.
func (sb *ShardedBuckets) Get(key []byte) (DataInfo, bool, error) {
	shard := sb.shardFor(key)
	lock := &sb.locks[shard]
	lock.RLock()
	defer lock.RUnlock()
	return sb.shards[shard].Get(key)
}

// Del removes key from its shard, returning its previous value if any.
func (sb *ShardedBuckets) Del(key []byte) (DataInfo, bool, error) {
	shard := sb.shardFor(key)
	lock := &sb.locks[shard]
	lock.RLock()
	defer lock.RUnlock()
	return sb.shards[shard].Del(key)
}

// BucketCount returns the fixed number of shards.
func (sb *ShardedBuckets) BucketCount() int { return sb.bucketCount }

// Close releases every shard's file handle.
func (sb *ShardedBuckets) Close() error {
	var firstErr error
	for _, b := range sb.shards {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
