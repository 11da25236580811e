package pagestore

import (
	"bytes"
	"testing"
)

func TestLevelStoreRoutesToSmallestFittingLevel(t *testing.T) {
	dir := t.TempDir()
	ls, err := Open(dir, Pow2Config{StartPageSize: 32, LevelCount: 8}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ls.Close()

	cases := []struct {
		size          int
		expectedLevel int
	}{
		{16, 0},
		{17, 0},
		{33, 1},
		{2048, 6},
		{4096, 7},
	}

	for _, c := range cases {
		value := bytes.Repeat([]byte{0xAB}, c.size)
		dataID, err := ls.Write(value)
		if err != nil {
			t.Fatalf("Write(%d bytes): %v", c.size, err)
		}
		level := int(dataID >> levelTagShift)
		if level != c.expectedLevel {
			t.Fatalf("size %d: level = %d, want %d", c.size, level, c.expectedLevel)
		}
	}
}

func TestLevelStoreWriteReadFree(t *testing.T) {
	dir := t.TempDir()
	ls, err := Open(dir, Pow2Config{StartPageSize: 32, LevelCount: 4}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ls.Close()

	value := []byte("hello, slabkv")
	dataID, err := ls.Write(value)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	page, err := ls.Read(dataID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(page[:len(value)], value) {
		t.Fatalf("Read returned %q, want prefix %q", page[:len(value)], value)
	}

	if err := ls.Free(dataID); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func TestLevelStoreMetaPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ls, err := Open(dir, Pow2Config{StartPageSize: 64, LevelCount: 3}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	value := []byte("persisted value")
	dataID, err := ls.Write(value)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	ls.Close()

	// Reopen with a different (ignored) config; the persisted layout wins.
	ls2, err := Open(dir, Pow2Config{StartPageSize: 999, LevelCount: 1}, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ls2.Close()

	page, err := ls2.Read(dataID)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(page[:len(value)], value) {
		t.Fatalf("Read after reopen returned %q, want prefix %q", page[:len(value)], value)
	}
}

func TestLevelStoreRejectsOversizeValue(t *testing.T) {
	dir := t.TempDir()
	ls, err := Open(dir, Pow2Config{StartPageSize: 32, LevelCount: 2}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ls.Close()

	_, err = ls.Write(bytes.Repeat([]byte{1}, 1000))
	if err == nil {
		t.Fatalf("expected error writing oversize value")
	}
}
