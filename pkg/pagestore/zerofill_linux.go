//go:build linux

package pagestore

import (
	"os"

	"golang.org/x/sys/unix"
)

// zeroRange ensures the byte range [offset, offset+length) of f reads
// back as zero, growing the file if necessary. On Linux this is a
// single fallocate(FALLOC_FL_ZERO_RANGE) call; see zerofill_other.go
// for the portable fallback.
func zeroRange(f *os.File, offset, length int64) error {
	if err := unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_ZERO_RANGE, offset, length); err != nil {
		return zeroRangeFallback(f, offset, length)
	}
	return nil
}
