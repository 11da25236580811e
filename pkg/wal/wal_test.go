package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWALAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	batches := []Batch{
		{{Key: []byte("key00001"), Op: OpPut, Value: []byte("v1")}},
		{{Key: []byte("key00002"), Op: OpPut, Value: []byte("v2")}, {Key: []byte("key00001"), Op: OpDel}},
	}
	for _, b := range batches {
		if _, err := w.Append(b, 8); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var replayed []Batch
	err = Replay(filepath.Join(dir, FileName(0)), 8, func(b Batch) error {
		replayed = append(replayed, b)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != len(batches) {
		t.Fatalf("replayed %d batches, want %d", len(replayed), len(batches))
	}
	if string(replayed[1][1].Key) != "key00001" || replayed[1][1].Op != OpDel {
		t.Fatalf("unexpected second batch: %+v", replayed[1])
	}
}

func TestWALReplayStopsAtTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	good := Batch{{Key: []byte("key00001"), Op: OpPut, Value: []byte("v1")}}
	if _, err := w.Append(good, 8); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := w.Append(Batch{{Key: []byte("key00002"), Op: OpPut, Value: []byte("v2")}}, 8); err != nil {
		t.Fatalf("Append second: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, FileName(0))
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	// truncate mid-second-record to simulate a crash during append.
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	var replayed []Batch
	err = Replay(path, 8, func(b Batch) error {
		replayed = append(replayed, b)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 {
		t.Fatalf("replayed %d batches, want 1 (the truncated tail must be dropped, not the whole file)", len(replayed))
	}
}

func TestWALReplayStopsAtCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := w.Append(Batch{{Key: []byte("key00001"), Op: OpPut, Value: []byte("v1")}}, 8); err != nil {
		t.Fatalf("Append: %v", err)
	}
	offsetBeforeSecond := w.EndOffset()
	if _, err := w.Append(Batch{{Key: []byte("key00002"), Op: OpPut, Value: []byte("v2")}}, 8); err != nil {
		t.Fatalf("Append second: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, FileName(0))
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	// flip a byte inside the second record's compressed payload.
	if _, err := f.WriteAt([]byte{0xFF}, offsetBeforeSecond+8); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	var replayed []Batch
	err = Replay(path, 8, func(b Batch) error {
		replayed = append(replayed, b)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 {
		t.Fatalf("replayed %d batches, want 1 (corruption must end replay, not fail it)", len(replayed))
	}
}

func TestListIDsAndRemove(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []uint64{0, 1, 2} {
		w, err := Open(dir, id, false)
		if err != nil {
			t.Fatalf("Open %d: %v", id, err)
		}
		w.Close()
	}
	// a non-WAL file must be ignored.
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ids, err := ListIDs(dir)
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("ListIDs = %v, want [0 1 2]", ids)
	}

	if err := Remove(dir, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	ids, err = ListIDs(dir)
	if err != nil {
		t.Fatalf("ListIDs after remove: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("ListIDs after remove = %v, want [0 2]", ids)
	}
}

func TestListIDsMissingDir(t *testing.T) {
	ids, err := ListIDs(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if ids != nil {
		t.Fatalf("ListIDs on missing dir = %v, want nil", ids)
	}
}
