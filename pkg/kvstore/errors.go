// Package kvstore implements the KV façade: the write buffer /
// flushing-buffer handoff, the background flusher, and the public
// Put/Delete/DoBatch/Get surface over the WAL, Sharded Buckets, and
// Level-Page Value Store.
package kvstore

import "errors"

// ErrInvalidKeyLength is returned synchronously, without mutating any
// state, when a key's length does not match the directory's key_size.
var ErrInvalidKeyLength = errors.New("kvstore: invalid key length")

// ErrClosed is returned by Put/Delete/DoBatch once Close has been
// called. Get does not check for a closed KV.
var ErrClosed = errors.New("kvstore: closed")
