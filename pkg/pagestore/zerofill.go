package pagestore

import "os"

// zeroRangeFallback implements the non-Linux fallback from .1:
// write a zero byte at offset+length-1 and sync_all. A freshly grown
// region of a regular file already reads as zero; the write only
// forces the file's logical length out to offset+length.
func zeroRangeFallback(f *os.File, offset, length int64) error {
	if length <= 0 {
		return nil
	}
	if _, err := f.WriteAt([]byte{0}, offset+length-1); err != nil {
		return err
	}
	return f.Sync()
}
