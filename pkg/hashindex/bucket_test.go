package hashindex

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestBucketPutGetDel(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBucket(filepath.Join(dir, "bucket.dat"), 8, 16)
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	defer b.Close()

	key := []byte("12345678")
	info := DataInfo{DataID: 42, DataLen: 7}

	if err := b.Put(key, info); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := b.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get after put: ok=%v err=%v", ok, err)
	}
	if got != info {
		t.Fatalf("Get = %+v, want %+v", got, info)
	}

	old, ok, err := b.Del(key)
	if err != nil || !ok || old != info {
		t.Fatalf("Del: old=%+v ok=%v err=%v", old, ok, err)
	}

	_, ok, err = b.Get(key)
	if err != nil || ok {
		t.Fatalf("Get after del: expected miss, ok=%v err=%v", ok, err)
	}
}

func TestBucketOverwriteSameKey(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBucket(filepath.Join(dir, "bucket.dat"), 8, 16)
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	defer b.Close()

	key := []byte("abcdefgh")
	if err := b.Put(key, DataInfo{DataID: 1, DataLen: 1}); err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	if err := b.Put(key, DataInfo{DataID: 2, DataLen: 2}); err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	got, ok, err := b.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.DataID != 2 {
		t.Fatalf("expected overwritten value, got %+v", got)
	}
}

func TestBucketExpandPreservesContents(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBucket(filepath.Join(dir, "bucket.dat"), 8, 4)
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	defer b.Close()

	keys := make([][]byte, 33)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("k%07d", i))
		err := b.Put(keys[i], DataInfo{DataID: uint64(i), DataLen: uint32(i)})
		for err == ErrMaxSearchReached {
			if expandErr := b.Expand(); expandErr != nil {
				t.Fatalf("Expand: %v", expandErr)
			}
			err = b.Put(keys[i], DataInfo{DataID: uint64(i), DataLen: uint32(i)})
		}
		if err != nil {
			t.Fatalf("Put key %d: %v", i, err)
		}
	}

	for i, k := range keys {
		got, ok, err := b.Get(k)
		if err != nil || !ok {
			t.Fatalf("Get key %d after expand: ok=%v err=%v", i, ok, err)
		}
		if got.DataID != uint64(i) {
			t.Fatalf("key %d: got %+v, want DataID=%d", i, got, i)
		}
	}
}

func TestBucketDeleteKeepsClusterReachable(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBucket(filepath.Join(dir, "bucket.dat"), 8, 8)
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	defer b.Close()

	k1, k2, k3 := []byte("key-one-"), []byte("key-two-"), []byte("keythree")
	for _, k := range [][]byte{k1, k2, k3} {
		if err := b.Put(k, DataInfo{DataID: 1}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if _, ok, err := b.Del(k2); err != nil || !ok {
		t.Fatalf("Del k2: ok=%v err=%v", ok, err)
	}

	// k3 may have probed past k2's now-tombstoned slot; it must still
	// be reachable (tombstones never terminate a probe window).
	if _, ok, err := b.Get(k3); err != nil || !ok {
		t.Fatalf("Get k3 after deleting k2: ok=%v err=%v", ok, err)
	}
	if _, ok, err := b.Get(k1); err != nil || !ok {
		t.Fatalf("Get k1 after deleting k2: ok=%v err=%v", ok, err)
	}
}
