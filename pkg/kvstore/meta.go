package kvstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// kvMeta is the tiny persistent record of current_wal_id and key_size.
type kvMeta struct {
	CurrentWalID uint64 `json:"current_wal_id"`
	KeySize      int    `json:"key_size"`
}

// loadMeta reads kv.meta if present. ok is false when the file does
// not exist (fresh directory).
func loadMeta(path string) (m kvMeta, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kvMeta{}, false, nil
		}
		return kvMeta{}, false, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return kvMeta{}, false, fmt.Errorf("kvstore: parse kv.meta: %w", err)
	}
	return m, true, nil
}

// saveMeta persists m, writing to a temp file and renaming over the
// target so a crash mid-write never leaves a half-written kv.meta.
func saveMeta(path string, m kvMeta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func metaPath(dir string) string {
	return filepath.Join(dir, "kv.meta")
}
