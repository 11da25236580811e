package hashindex

import "github.com/cespare/xxhash/v2"

// fixedSalt is prepended to every key before hashing.  requires
// a hash that is stable across process restarts (on-disk bucket
// contents are only meaningful if put/get/del all land on the same
// slot they did when the file was written); xxhash64 is deterministic
// given the same input, so a fixed salt makes the whole function
// restart-stable without depending on any process-local seed.
var fixedSalt = [8]byte{0x73, 0x6c, 0x61, 0x62, 0x6b, 0x76, 0x01, 0x00} // "slabkv" + version

// hashKey returns a stable 64-bit hash of key, used to pick the
// initial probe slot (HB) and the shard (SB).
func hashKey(key []byte) uint64 {
	d := xxhash.New()
	d.Write(fixedSalt[:])
	d.Write(key)
	return d.Sum64()
}
