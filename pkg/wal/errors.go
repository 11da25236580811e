// Package wal implements the append-only write-ahead log: per-WAL-id
// files of length-prefixed, optionally compressed, CRC-checked batch
// records.
package wal

import "errors"

var (
	// ErrCorrupted indicates a record whose CRC32 does not match its
	// payload. Recovery treats it the same as a truncated tail.
	ErrCorrupted = errors.New("wal: corrupted record")

	// ErrTruncated indicates a record whose length prefix promises more
	// bytes than the file actually holds.
	ErrTruncated = errors.New("wal: truncated record")

	// ErrLogClosed is returned by Append/Sync after Close.
	ErrLogClosed = errors.New("wal: log closed")

	// ErrMalformedBatch indicates a batch payload whose total_size
	// header doesn't match the entries that follow it.
	ErrMalformedBatch = errors.New("wal: malformed batch payload")
)
