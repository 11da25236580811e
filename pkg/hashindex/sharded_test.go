package hashindex

import (
	"fmt"
	"testing"
)

func TestShardedBucketsPutGetDel(t *testing.T) {
	dir := t.TempDir()
	sb, err := Open(dir, 4, 8, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sb.Close()

	keys := make([][]byte, 50)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key%05d", i))
		if err := sb.Put(keys[i], DataInfo{DataID: uint64(i), DataLen: uint32(i)}); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}

	for i, k := range keys {
		got, ok, err := sb.Get(k)
		if err != nil || !ok {
			t.Fatalf("Get %d: ok=%v err=%v", i, ok, err)
		}
		if got.DataID != uint64(i) {
			t.Fatalf("key %d: got %+v", i, got)
		}
	}

	old, ok, err := sb.Del(keys[10])
	if err != nil || !ok || old.DataID != 10 {
		t.Fatalf("Del: old=%+v ok=%v err=%v", old, ok, err)
	}
	if _, ok, err := sb.Get(keys[10]); err != nil || ok {
		t.Fatalf("Get after del: ok=%v err=%v", ok, err)
	}
}

func TestShardedBucketsRoutingIsStable(t *testing.T) {
	dir := t.TempDir()
	sb, err := Open(dir, 8, 8, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sb.Close()

	key := []byte("stablekv")
	want := sb.shardFor(key)
	for i := 0; i < 100; i++ {
		if got := sb.shardFor(key); got != want {
			t.Fatalf("shardFor not stable: got %d, want %d", got, want)
		}
	}
}

func TestShardedBucketsMetaPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	sb, err := Open(dir, 6, 10, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := []byte("0123456789")
	if err := sb.Put(key, DataInfo{DataID: 7, DataLen: 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := sb.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen with different requested bucket_count/key_size: meta.json
	// must win, matching the level-store and page-allocator reopen
	// contract elsewhere in the engine.
	sb2, err := Open(dir, 999, 999, 4)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer sb2.Close()

	if sb2.BucketCount() != 6 {
		t.Fatalf("BucketCount after reopen = %d, want 6", sb2.BucketCount())
	}
	got, ok, err := sb2.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got.DataID != 7 {
		t.Fatalf("got %+v after reopen", got)
	}
}

func TestShardedBucketsPutTriggersExpand(t *testing.T) {
	dir := t.TempDir()
	sb, err := Open(dir, 1, 8, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sb.Close()

	before := sb.shards[0].EntryNum()
	for i := 0; i < 40; i++ {
		key := []byte(fmt.Sprintf("k%07d", i))
		if err := sb.Put(key, DataInfo{DataID: uint64(i)}); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	after := sb.shards[0].EntryNum()
	if after <= before {
		t.Fatalf("expected shard to expand: before=%d after=%d", before, after)
	}

	for i := 0; i < 40; i++ {
		key := []byte(fmt.Sprintf("k%07d", i))
		got, ok, err := sb.Get(key)
		if err != nil || !ok {
			t.Fatalf("Get %d after expand: ok=%v err=%v", i, ok, err)
		}
		if got.DataID != uint64(i) {
			t.Fatalf("key %d: got %+v", i, got)
		}
	}
}
